package service

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/crowdfund-client/pkg/campaign"
)

// CampaignView is a campaign with the derived figures the API exposes
type CampaignView struct {
	campaign.Campaign

	GoalEth         string          `json:"goal_eth"`
	RaisedEth       string          `json:"raised_eth"`
	ProgressPercent uint64          `json:"progress_percent"`
	DisplayProgress uint64          `json:"display_progress"`
	DaysLeft        int64           `json:"days_left"`
	Status          campaign.Status `json:"status"`
}

func newView(c campaign.Campaign, now time.Time) CampaignView {
	return CampaignView{
		Campaign:        c,
		GoalEth:         campaign.FormatEther(c.Goal),
		RaisedEth:       campaign.FormatEther(c.AmountRaised),
		ProgressPercent: c.ProgressPercent(),
		DisplayProgress: c.DisplayProgress(),
		DaysLeft:        c.DaysLeft(now),
		Status:          c.Status(now),
	}
}

// ProgressResponse carries the on-chain getProgress figure of a campaign
type ProgressResponse struct {
	CampaignID      uint64 `json:"campaign_id"`
	OnChainPercent  string `json:"on_chain_percent"`
	DisplayProgress uint64 `json:"display_progress"`
}

// SubmitResponse is returned for every accepted write
type SubmitResponse struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
}

// DashboardStats aggregates a wallet's activity. Amounts are in wei.
type DashboardStats struct {
	TotalCreated     int    `json:"total_created"`
	TotalBacked      int    `json:"total_backed"`
	ActiveCampaigns  int    `json:"active_campaigns"`
	TotalRaised      string `json:"total_raised"`
	TotalContributed string `json:"total_contributed"`
}

// Dashboard is the per-wallet summary
type Dashboard struct {
	Address common.Address `json:"address"`
	Created []CampaignView `json:"created"`
	Backed  []CampaignView `json:"backed"`
	Stats   DashboardStats `json:"stats"`
}
