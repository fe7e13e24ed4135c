// Package contracts holds the fixed ABI surface of the crowdfunding factory
// and the per-campaign contracts it deploys.
package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Factory methods and events
const (
	MethodGetTotalCampaigns  = "getTotalCampaigns"
	MethodCreateCampaign     = "createCampaign"
	MethodGetCampaignDetails = "getCampaignDetails"
	EventCampaignCreated     = "CampaignCreated"
)

// Campaign methods
const (
	MethodContribute  = "contribute"
	MethodWithdraw    = "withdraw"
	MethodRefund      = "refund"
	MethodGetProgress = "getProgress"
)

// CrowdfundingFactoryMetaData contains the ABI of the CrowdfundingFactory contract.
var CrowdfundingFactoryMetaData = &bind.MetaData{
	ABI: "[{\"inputs\":[],\"name\":\"getTotalCampaigns\",\"outputs\":[{\"internalType\":\"uint256\",\"name\":\"\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"string\",\"name\":\"_title\",\"type\":\"string\"},{\"internalType\":\"string\",\"name\":\"_description\",\"type\":\"string\"},{\"internalType\":\"uint256\",\"name\":\"_goal\",\"type\":\"uint256\"},{\"internalType\":\"uint256\",\"name\":\"_durationInDays\",\"type\":\"uint256\"},{\"internalType\":\"string\",\"name\":\"_category\",\"type\":\"string\"},{\"internalType\":\"string\",\"name\":\"_imageUrl\",\"type\":\"string\"}],\"name\":\"createCampaign\",\"outputs\":[{\"internalType\":\"uint256\",\"name\":\"\",\"type\":\"uint256\"}],\"stateMutability\":\"nonpayable\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"_campaignId\",\"type\":\"uint256\"}],\"name\":\"getCampaignAddress\",\"outputs\":[{\"internalType\":\"address\",\"name\":\"\",\"type\":\"address\"}],\"stateMutability\":\"view\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"_campaignId\",\"type\":\"uint256\"}],\"name\":\"getCampaignDetails\",\"outputs\":[{\"internalType\":\"address\",\"name\":\"campaignAddress\",\"type\":\"address\"},{\"internalType\":\"address\",\"name\":\"creator\",\"type\":\"address\"},{\"internalType\":\"string\",\"name\":\"title\",\"type\":\"string\"},{\"internalType\":\"string\",\"name\":\"description\",\"type\":\"string\"},{\"internalType\":\"uint256\",\"name\":\"goal\",\"type\":\"uint256\"},{\"internalType\":\"uint256\",\"name\":\"amountRaised\",\"type\":\"uint256\"},{\"internalType\":\"uint256\",\"name\":\"deadline\",\"type\":\"uint256\"},{\"internalType\":\"string\",\"name\":\"category\",\"type\":\"string\"},{\"internalType\":\"string\",\"name\":\"imageUrl\",\"type\":\"string\"},{\"internalType\":\"bool\",\"name\":\"isActive\",\"type\":\"bool\"},{\"internalType\":\"uint256\",\"name\":\"contributorCount\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"},{\"anonymous\":false,\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"campaignId\",\"type\":\"uint256\",\"indexed\":true},{\"internalType\":\"address\",\"name\":\"creator\",\"type\":\"address\",\"indexed\":true},{\"internalType\":\"address\",\"name\":\"campaignAddress\",\"type\":\"address\",\"indexed\":false},{\"internalType\":\"string\",\"name\":\"title\",\"type\":\"string\",\"indexed\":false},{\"internalType\":\"uint256\",\"name\":\"goal\",\"type\":\"uint256\",\"indexed\":false},{\"internalType\":\"uint256\",\"name\":\"deadline\",\"type\":\"uint256\",\"indexed\":false}],\"name\":\"CampaignCreated\",\"type\":\"event\"}]",
}

// CampaignMetaData contains the ABI of a deployed Campaign contract.
// withdraw and refund are the creator payout and contributor refund entrypoints.
var CampaignMetaData = &bind.MetaData{
	ABI: "[{\"inputs\":[],\"name\":\"contribute\",\"outputs\":[],\"stateMutability\":\"payable\",\"type\":\"function\"},{\"inputs\":[],\"name\":\"withdraw\",\"outputs\":[],\"stateMutability\":\"nonpayable\",\"type\":\"function\"},{\"inputs\":[],\"name\":\"refund\",\"outputs\":[],\"stateMutability\":\"nonpayable\",\"type\":\"function\"},{\"inputs\":[],\"name\":\"getCampaignDetails\",\"outputs\":[{\"internalType\":\"address\",\"name\":\"campaignAddress\",\"type\":\"address\"},{\"internalType\":\"address\",\"name\":\"creator\",\"type\":\"address\"},{\"internalType\":\"string\",\"name\":\"title\",\"type\":\"string\"},{\"internalType\":\"string\",\"name\":\"description\",\"type\":\"string\"},{\"internalType\":\"uint256\",\"name\":\"goal\",\"type\":\"uint256\"},{\"internalType\":\"uint256\",\"name\":\"amountRaised\",\"type\":\"uint256\"},{\"internalType\":\"uint256\",\"name\":\"deadline\",\"type\":\"uint256\"},{\"internalType\":\"string\",\"name\":\"category\",\"type\":\"string\"},{\"internalType\":\"string\",\"name\":\"imageUrl\",\"type\":\"string\"},{\"internalType\":\"bool\",\"name\":\"isActive\",\"type\":\"bool\"},{\"internalType\":\"uint256\",\"name\":\"contributorCount\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"},{\"inputs\":[],\"name\":\"getProgress\",\"outputs\":[{\"internalType\":\"uint256\",\"name\":\"\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"}]",
}

// CampaignDetails is the 11-field tuple returned by getCampaignDetails on both
// the factory (by id) and the campaign contract itself.
type CampaignDetails struct {
	CampaignAddress  common.Address
	Creator          common.Address
	Title            string
	Description      string
	Goal             *big.Int
	AmountRaised     *big.Int
	Deadline         *big.Int
	Category         string
	ImageUrl         string
	IsActive         bool
	ContributorCount *big.Int
}

// CrowdfundingFactoryCampaignCreated represents a CampaignCreated event raised by the factory.
type CrowdfundingFactoryCampaignCreated struct {
	CampaignId      *big.Int
	Creator         common.Address
	CampaignAddress common.Address
	Title           string
	Goal            *big.Int
	Deadline        *big.Int
	Raw             types.Log // Blockchain specific contextual infos
}

// UnpackCampaignDetails converts the raw outputs of getCampaignDetails.
func UnpackCampaignDetails(out []interface{}) (*CampaignDetails, error) {
	if len(out) != 11 {
		return nil, fmt.Errorf("getCampaignDetails: expected 11 outputs, got %d", len(out))
	}

	details := &CampaignDetails{
		CampaignAddress:  *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Creator:          *abi.ConvertType(out[1], new(common.Address)).(*common.Address),
		Title:            *abi.ConvertType(out[2], new(string)).(*string),
		Description:      *abi.ConvertType(out[3], new(string)).(*string),
		Goal:             *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		AmountRaised:     *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		Deadline:         *abi.ConvertType(out[6], new(*big.Int)).(**big.Int),
		Category:         *abi.ConvertType(out[7], new(string)).(*string),
		ImageUrl:         *abi.ConvertType(out[8], new(string)).(*string),
		IsActive:         *abi.ConvertType(out[9], new(bool)).(*bool),
		ContributorCount: *abi.ConvertType(out[10], new(*big.Int)).(**big.Int),
	}
	if details.Goal == nil || details.AmountRaised == nil || details.Deadline == nil {
		return nil, errors.New("getCampaignDetails: missing numeric output")
	}
	return details, nil
}
