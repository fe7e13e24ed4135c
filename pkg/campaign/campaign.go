// Package campaign holds the campaign record mirrored from the factory, the
// creation form rules and the progress arithmetic shared by the API.
package campaign

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/crowdfund-client/pkg/ethereum/contracts"
)

const secondsPerDay = 86400

// Status is the derived funding state of a campaign
type Status string

const (
	StatusActive     Status = "active"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// Campaign is the local mirror of an on-chain campaign. Goal and AmountRaised
// are wei amounts; Deadline is unix seconds and never changes after creation.
type Campaign struct {
	ID               uint64         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Goal             *big.Int       `json:"goal"`
	AmountRaised     *big.Int       `json:"amount_raised"`
	Deadline         int64          `json:"deadline"`
	Creator          common.Address `json:"creator"`
	ContractAddress  common.Address `json:"contract_address"`
	Category         string         `json:"category"`
	ImageURL         string         `json:"image_url,omitempty"`
	Active           bool           `json:"active"`
	ContributorCount uint64         `json:"contributor_count"`
}

// FromDetails converts a getCampaignDetails tuple into a Campaign
func FromDetails(id uint64, d *contracts.CampaignDetails) Campaign {
	c := Campaign{
		ID:              id,
		Title:           d.Title,
		Description:     d.Description,
		Goal:            nonNegative(d.Goal),
		AmountRaised:    nonNegative(d.AmountRaised),
		Creator:         d.Creator,
		ContractAddress: d.CampaignAddress,
		Category:        d.Category,
		ImageURL:        d.ImageUrl,
		Active:          d.IsActive,
	}
	if d.Deadline != nil && d.Deadline.IsInt64() {
		c.Deadline = d.Deadline.Int64()
	}
	if d.ContributorCount != nil && d.ContributorCount.IsUint64() {
		c.ContributorCount = d.ContributorCount.Uint64()
	}
	return c
}

func nonNegative(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Clone returns a deep copy so callers can never alias cached amounts
func (c Campaign) Clone() Campaign {
	out := c
	out.Goal = nonNegative(c.Goal)
	out.AmountRaised = nonNegative(c.AmountRaised)
	return out
}

// ProgressPercent is raised*100/goal with integer division. It can exceed 100.
// A zero goal yields 0.
func (c Campaign) ProgressPercent() uint64 {
	if c.Goal == nil || c.Goal.Sign() == 0 || c.AmountRaised == nil {
		return 0
	}
	p := new(big.Int).Mul(c.AmountRaised, big.NewInt(100))
	p.Quo(p, c.Goal)
	if !p.IsUint64() {
		return ^uint64(0)
	}
	return p.Uint64()
}

// DisplayProgress is ProgressPercent clamped to 100
func (c Campaign) DisplayProgress() uint64 {
	return min(c.ProgressPercent(), 100)
}

// DaysLeft returns the whole days until the deadline, floored at zero
func (c Campaign) DaysLeft(now time.Time) int64 {
	return max(0, (c.Deadline-now.Unix())/secondsPerDay)
}

// GoalReached reports whether the raised amount met the goal
func (c Campaign) GoalReached() bool {
	return c.Goal != nil && c.AmountRaised != nil && c.Goal.Sign() > 0 && c.AmountRaised.Cmp(c.Goal) >= 0
}

// Status derives the funding state at now
func (c Campaign) Status(now time.Time) Status {
	switch {
	case c.Active && now.Unix() < c.Deadline:
		return StatusActive
	case c.GoalReached():
		return StatusSuccessful
	default:
		return StatusFailed
	}
}

// Partial lists the mutable fields of a campaign. Nil fields are left untouched.
// The deadline, id and addresses are immutable and cannot be patched.
type Partial struct {
	Title            *string
	Description      *string
	Goal             *big.Int
	AmountRaised     *big.Int
	Category         *string
	ImageURL         *string
	Active           *bool
	ContributorCount *uint64
}

// Apply returns c with the non-nil fields of p merged in
func (p Partial) Apply(c Campaign) Campaign {
	out := c.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Goal != nil {
		out.Goal = nonNegative(p.Goal)
	}
	if p.AmountRaised != nil {
		out.AmountRaised = nonNegative(p.AmountRaised)
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	if p.Active != nil {
		out.Active = *p.Active
	}
	if p.ContributorCount != nil {
		out.ContributorCount = *p.ContributorCount
	}
	return out
}

// Filter selects campaigns in listings
type Filter struct {
	Category string
	Creator  *common.Address
	// ActiveOnly keeps campaigns whose Status is active at Now
	ActiveOnly bool
	Now        time.Time
}

// Match reports whether c passes the filter
func (f Filter) Match(c Campaign) bool {
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Creator != nil && c.Creator != *f.Creator {
		return false
	}
	if f.ActiveOnly && c.Status(f.Now) != StatusActive {
		return false
	}
	return true
}
