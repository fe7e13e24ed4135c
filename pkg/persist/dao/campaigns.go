// Package dao holds the table mappings of the persisted client state.
package dao

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/chainsafe/crowdfund-client/pkg/campaign"
)

// CampaignDao is a data access object that maps directly to the 'campaigns' table in PostgreSQL.
// Wei amounts are stored as decimal strings.
type CampaignDao struct {
	bun.BaseModel    `bun:"table:campaigns" yaml:"-"`
	ID               uint64    `json:"id" yaml:"id" bun:",pk"`
	Title            string    `json:"title" yaml:"title" bun:",notnull,type:varchar(200)"`
	Description      string    `json:"description" yaml:"description" bun:",notnull,type:text"`
	Goal             string    `json:"goal" yaml:"goal" bun:",notnull,type:numeric(78,0)"`
	AmountRaised     string    `json:"amount_raised" yaml:"amount_raised" bun:",notnull,type:numeric(78,0)"`
	Deadline         int64     `json:"deadline" yaml:"deadline" bun:",notnull"`
	Creator          string    `json:"creator" yaml:"creator" bun:",notnull,type:varchar(42)"`
	ContractAddress  string    `json:"contract_address" yaml:"contract_address" bun:",notnull,type:varchar(42)"`
	Category         string    `json:"category" yaml:"category" bun:",notnull,type:varchar(64)"`
	ImageURL         string    `json:"image_url" yaml:"image_url,omitempty" bun:"image_url,type:text"`
	Active           bool      `json:"active" yaml:"active" bun:",notnull,default:false"`
	ContributorCount uint64    `json:"contributor_count" yaml:"contributor_count" bun:",notnull,default:0"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"-" bun:",notnull,nullzero,default:current_timestamp"`
}

// FromCampaign maps a cached campaign onto its table row
func FromCampaign(c campaign.Campaign) *CampaignDao {
	return &CampaignDao{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		Goal:             bigString(c.Goal),
		AmountRaised:     bigString(c.AmountRaised),
		Deadline:         c.Deadline,
		Creator:          c.Creator.Hex(),
		ContractAddress:  c.ContractAddress.Hex(),
		Category:         c.Category,
		ImageURL:         c.ImageURL,
		Active:           c.Active,
		ContributorCount: c.ContributorCount,
	}
}

// ToCampaign converts the row back into a campaign
func (d *CampaignDao) ToCampaign() (campaign.Campaign, error) {
	goal, err := parseBig(d.Goal)
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("campaign %d goal: %w", d.ID, err)
	}
	raised, err := parseBig(d.AmountRaised)
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("campaign %d amount raised: %w", d.ID, err)
	}
	if !common.IsHexAddress(d.Creator) || !common.IsHexAddress(d.ContractAddress) {
		return campaign.Campaign{}, fmt.Errorf("campaign %d has a malformed address", d.ID)
	}

	return campaign.Campaign{
		ID:               d.ID,
		Title:            d.Title,
		Description:      d.Description,
		Goal:             goal,
		AmountRaised:     raised,
		Deadline:         d.Deadline,
		Creator:          common.HexToAddress(d.Creator),
		ContractAddress:  common.HexToAddress(d.ContractAddress),
		Category:         d.Category,
		ImageURL:         d.ImageURL,
		Active:           d.Active,
		ContributorCount: d.ContributorCount,
	}, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
