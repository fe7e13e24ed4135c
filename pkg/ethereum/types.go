package ethereum

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractKind selects which fixed ABI a call is encoded against
type ContractKind string

const (
	ContractFactory  ContractKind = "factory"
	ContractCampaign ContractKind = "campaign"
)

// ContractRef identifies a deployed contract and its ABI
type ContractRef struct {
	Kind    ContractKind
	Address common.Address
}

// WriteRequest describes a state-changing call. Value is the wei amount
// transferred with the call and may be nil.
type WriteRequest struct {
	Contract ContractRef
	Method   string
	Args     []interface{}
	Value    *big.Int
}

// ConfirmationStatus is the settled outcome of a submitted transaction
type ConfirmationStatus string

const (
	ConfirmationSuccess ConfirmationStatus = "success"
	ConfirmationFailure ConfirmationStatus = "failure"
)

// Confirmation is returned by AwaitConfirmation once a transaction settles.
// Reason is set for failures (revert or timeout); Receipt is nil on timeout.
type Confirmation struct {
	Status  ConfirmationStatus
	Reason  string
	Receipt *types.Receipt
}

// Succeeded reports whether the transaction was mined successfully
func (c *Confirmation) Succeeded() bool {
	return c != nil && c.Status == ConfirmationSuccess
}

// CampaignCreatedEvent represents a CampaignCreated event raised by the factory
type CampaignCreatedEvent struct {
	CampaignID      uint64
	Creator         common.Address
	CampaignAddress common.Address
	Title           string
	Goal            *big.Int
	Deadline        uint64
	BlockNumber     uint64
	TxHash          common.Hash
	LogIndex        uint
}
