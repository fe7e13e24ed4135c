package orchestrator

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/crowdfund-client/pkg/ethereum"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum/contracts"
	"github.com/chainsafe/crowdfund-client/pkg/ledger"
)

// CreateCampaignPayload is submitted with ledger.KindCreateCampaign. Goal is in wei.
type CreateCampaignPayload struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Goal         *big.Int `json:"goal"`
	DurationDays int64    `json:"duration_days"`
	Category     string   `json:"category"`
	ImageURL     string   `json:"image_url,omitempty"`
}

// ContributionPayload is submitted with ledger.KindContribute. Amount is in wei.
type ContributionPayload struct {
	CampaignID      uint64         `json:"campaign_id"`
	CampaignAddress common.Address `json:"campaign_address"`
	Amount          *big.Int       `json:"amount"`
	Contributor     common.Address `json:"contributor"`
}

// WithdrawalPayload is submitted with ledger.KindWithdraw
type WithdrawalPayload struct {
	CampaignID      uint64         `json:"campaign_id"`
	CampaignAddress common.Address `json:"campaign_address"`
}

// RefundPayload is submitted with ledger.KindRefund
type RefundPayload struct {
	CampaignID      uint64         `json:"campaign_id"`
	CampaignAddress common.Address `json:"campaign_address"`
}

// campaignID returns the id a confirmed payload refers to, if any
func campaignID(payload any) (uint64, bool) {
	switch p := payload.(type) {
	case ContributionPayload:
		return p.CampaignID, true
	case WithdrawalPayload:
		return p.CampaignID, true
	case RefundPayload:
		return p.CampaignID, true
	}
	return 0, false
}

func campaignRef(addr common.Address) (ethereum.ContractRef, error) {
	if addr == (common.Address{}) {
		return ethereum.ContractRef{}, fmt.Errorf("campaign contract address is unknown")
	}
	return ethereum.ContractRef{Kind: ethereum.ContractCampaign, Address: addr}, nil
}

// buildRequest maps a kind and its payload onto the write call it represents
func buildRequest(factory ethereum.ContractRef, kind ledger.Kind, payload any) (ethereum.WriteRequest, error) {
	switch kind {
	case ledger.KindCreateCampaign:
		p, ok := payload.(CreateCampaignPayload)
		if !ok {
			return ethereum.WriteRequest{}, payloadMismatch(kind, payload)
		}
		if p.Goal == nil || p.Goal.Sign() <= 0 {
			return ethereum.WriteRequest{}, fmt.Errorf("campaign goal must be positive")
		}
		return ethereum.WriteRequest{
			Contract: factory,
			Method:   contracts.MethodCreateCampaign,
			Args: []interface{}{
				p.Title, p.Description, p.Goal, big.NewInt(p.DurationDays), p.Category, p.ImageURL,
			},
		}, nil

	case ledger.KindContribute:
		p, ok := payload.(ContributionPayload)
		if !ok {
			return ethereum.WriteRequest{}, payloadMismatch(kind, payload)
		}
		if p.Amount == nil || p.Amount.Sign() <= 0 {
			return ethereum.WriteRequest{}, fmt.Errorf("contribution amount must be positive")
		}
		ref, err := campaignRef(p.CampaignAddress)
		if err != nil {
			return ethereum.WriteRequest{}, err
		}
		return ethereum.WriteRequest{
			Contract: ref,
			Method:   contracts.MethodContribute,
			Value:    new(big.Int).Set(p.Amount),
		}, nil

	case ledger.KindWithdraw:
		p, ok := payload.(WithdrawalPayload)
		if !ok {
			return ethereum.WriteRequest{}, payloadMismatch(kind, payload)
		}
		ref, err := campaignRef(p.CampaignAddress)
		if err != nil {
			return ethereum.WriteRequest{}, err
		}
		return ethereum.WriteRequest{Contract: ref, Method: contracts.MethodWithdraw}, nil

	case ledger.KindRefund:
		p, ok := payload.(RefundPayload)
		if !ok {
			return ethereum.WriteRequest{}, payloadMismatch(kind, payload)
		}
		ref, err := campaignRef(p.CampaignAddress)
		if err != nil {
			return ethereum.WriteRequest{}, err
		}
		return ethereum.WriteRequest{Contract: ref, Method: contracts.MethodRefund}, nil
	}

	return ethereum.WriteRequest{}, fmt.Errorf("unknown transaction kind %q", kind)
}

func payloadMismatch(kind ledger.Kind, payload any) error {
	return fmt.Errorf("payload %T does not match kind %q", payload, kind)
}
