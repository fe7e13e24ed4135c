package campaign

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum/contracts"
)

func TestProgress_DisplayClamp(t *testing.T) {
	c := Campaign{Goal: big.NewInt(1_000_000), AmountRaised: big.NewInt(1_500_000)}

	assert.Equal(t, uint64(150), c.ProgressPercent())
	assert.Equal(t, uint64(100), c.DisplayProgress())
	assert.Equal(t, int64(1_500_000), c.AmountRaised.Int64())
}

func TestProgress_Edges(t *testing.T) {
	tests := []struct {
		name   string
		goal   *big.Int
		raised *big.Int
		want   uint64
	}{
		{"zero goal", big.NewInt(0), big.NewInt(10), 0},
		{"nil amounts", nil, nil, 0},
		{"partial", big.NewInt(300), big.NewInt(100), 33},
		{"exact", big.NewInt(5), big.NewInt(5), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Campaign{Goal: tt.goal, AmountRaised: tt.raised}
			assert.Equal(t, tt.want, c.DisplayProgress())
		})
	}
}

func TestDaysLeftAndStatus(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := Campaign{
		Goal:         big.NewInt(100),
		AmountRaised: big.NewInt(10),
		Deadline:     now.Unix() + 3*secondsPerDay + 100,
		Active:       true,
	}

	assert.Equal(t, int64(3), c.DaysLeft(now))
	assert.Equal(t, StatusActive, c.Status(now))

	after := now.Add(10 * 24 * time.Hour)
	assert.Equal(t, int64(0), c.DaysLeft(after))
	assert.Equal(t, StatusFailed, c.Status(after))

	c.AmountRaised = big.NewInt(100)
	assert.Equal(t, StatusSuccessful, c.Status(after))
}

func TestPartialApply(t *testing.T) {
	orig := Campaign{
		ID:           3,
		Title:        "Solar",
		Goal:         big.NewInt(100),
		AmountRaised: big.NewInt(10),
		Deadline:     1234,
		Category:     "Technology",
	}
	title := "Solar Farm"
	active := true

	patched := Partial{Title: &title, AmountRaised: big.NewInt(60), Active: &active}.Apply(orig)

	assert.Equal(t, "Solar Farm", patched.Title)
	assert.Equal(t, int64(60), patched.AmountRaised.Int64())
	assert.True(t, patched.Active)
	assert.Equal(t, orig.Category, patched.Category)
	assert.Equal(t, orig.Deadline, patched.Deadline)
	assert.Equal(t, int64(10), orig.AmountRaised.Int64(), "original must not be aliased")
}

func TestFromDetails(t *testing.T) {
	creator := common.HexToAddress("0x1111111111111111111111111111111111111111")
	c := FromDetails(4, &contracts.CampaignDetails{
		CampaignAddress:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Creator:          creator,
		Title:            "Title",
		Goal:             big.NewInt(100),
		AmountRaised:     big.NewInt(7),
		Deadline:         big.NewInt(99),
		Category:         "Art",
		IsActive:         true,
		ContributorCount: big.NewInt(2),
	})

	assert.Equal(t, uint64(4), c.ID)
	assert.Equal(t, creator, c.Creator)
	assert.Equal(t, int64(99), c.Deadline)
	assert.Equal(t, uint64(2), c.ContributorCount)
}

func TestFilterMatch(t *testing.T) {
	now := time.Unix(1_000, 0)
	creator := common.HexToAddress("0x01")
	c := Campaign{Category: "Art", Creator: creator, Active: true, Deadline: 2_000}

	assert.True(t, Filter{}.Match(c))
	assert.True(t, Filter{Category: "Art", Creator: &creator, ActiveOnly: true, Now: now}.Match(c))
	assert.False(t, Filter{Category: "Health"}.Match(c))
	other := common.HexToAddress("0x02")
	assert.False(t, Filter{Creator: &other}.Match(c))
	assert.False(t, Filter{ActiveOnly: true, Now: time.Unix(3_000, 0)}.Match(c))
}

func validRequest() CreateRequest {
	return CreateRequest{
		Title:        "Community Garden",
		Description:  "Build a garden for the whole neighbourhood.",
		Goal:         "1.5",
		DurationDays: 30,
		Category:     "Environment",
		ImageURL:     "https://example.com/garden.png",
	}
}

func TestCreateRequestValidate(t *testing.T) {
	valid, err := validRequest().Validate()
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", valid.GoalWei.String())
	assert.Equal(t, int64(30), valid.DurationDays)

	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		field   string
		message string
	}{
		{"empty title", func(r *CreateRequest) { r.Title = "   " }, "title", "Title is required"},
		{"short title", func(r *CreateRequest) { r.Title = "Abc" }, "title", "Title must be at least 5 characters"},
		{"short description", func(r *CreateRequest) { r.Description = "too short" }, "description", "Description must be at least 20 characters"},
		{"missing goal", func(r *CreateRequest) { r.Goal = "" }, "goal", "Goal amount is required"},
		{"negative goal", func(r *CreateRequest) { r.Goal = "-1" }, "goal", "Goal must be a positive number"},
		{"garbage goal", func(r *CreateRequest) { r.Goal = "lots" }, "goal", "Goal must be a positive number"},
		{"goal below minimum", func(r *CreateRequest) { r.Goal = "0.001" }, "goal", "Goal must be at least 0.01 ETH"},
		{"goal too precise", func(r *CreateRequest) { r.Goal = "0.0100000000000000001" }, "goal", "Goal supports at most 18 decimal places"},
		{"zero duration", func(r *CreateRequest) { r.DurationDays = 0 }, "duration_days", "Duration must be at least 1 day"},
		{"long duration", func(r *CreateRequest) { r.DurationDays = 366 }, "duration_days", "Duration cannot exceed 365 days"},
		{"missing category", func(r *CreateRequest) { r.Category = "" }, "category", "Category is required"},
		{"bad image url", func(r *CreateRequest) { r.ImageURL = "not a url" }, "image_url", "Image URL must be a valid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			_, err := req.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
			fields := apperrors.FieldErrors(err)
			assert.Equal(t, tt.message, fields[tt.field])
			assert.Len(t, fields, 1)
		})
	}
}

func TestCreateRequestValidate_CollectsAllFields(t *testing.T) {
	_, err := CreateRequest{}.Validate()
	require.Error(t, err)
	fields := apperrors.FieldErrors(err)
	assert.Len(t, fields, 5)
	assert.NotContains(t, fields, "image_url")
}

func TestEtherConversions(t *testing.T) {
	wei, err := ParseEther("0.25")
	require.NoError(t, err)
	assert.Equal(t, "250000000000000000", wei.String())
	assert.Equal(t, "0.25", FormatEther(wei))

	_, err = ParseEther("0")
	assert.Error(t, err)
	_, err = ParseEther("abc")
	assert.Error(t, err)

	_, err = ToWei(decimal.RequireFromString("1.0000000000000000001"))
	assert.Error(t, err)
	assert.Equal(t, "0", FormatEther(nil))
}
