package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
	"github.com/chainsafe/crowdfund-client/pkg/campaign"
	"github.com/chainsafe/crowdfund-client/pkg/campaign/cache"
	"github.com/chainsafe/crowdfund-client/pkg/ledger"
	"github.com/chainsafe/crowdfund-client/pkg/orchestrator"
)

const txHash = "0x00000000000000000000000000000000000000000000000000000000000000aa"

var (
	wallet = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	now    = time.Unix(1_900_000_000, 0)
)

type fixture struct {
	reader    *MockReader
	cache     *cache.Cache
	submitter *fakeSubmitter
	svc       *campaignService
}

func newFixture(t *testing.T, txs ...ledger.Transaction) *fixture {
	t.Helper()
	reader := new(MockReader)
	refresher, c := newTestRefresher(reader, 0)
	sub := &fakeSubmitter{hash: txHash}

	svc := NewService(reader, refresher, c, sub, fakeLister(txs), wallet).(*campaignService)
	svc.now = func() time.Time { return now }
	return &fixture{reader: reader, cache: c, submitter: sub, svc: svc}
}

func seed(c *cache.Cache, campaigns ...campaign.Campaign) {
	c.SetAll(campaigns)
}

func cmp(id uint64, owner common.Address, category string, goal, raised int64, deadline time.Time, active bool) campaign.Campaign {
	return campaign.Campaign{
		ID:              id,
		Title:           "Campaign title",
		Goal:            big.NewInt(goal),
		AmountRaised:    big.NewInt(raised),
		Deadline:        deadline.Unix(),
		Creator:         owner,
		ContractAddress: common.BigToAddress(big.NewInt(int64(1000 + id))),
		Category:        category,
		Active:          active,
	}
}

func TestListCampaigns_Filters(t *testing.T) {
	f := newFixture(t)
	other := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	seed(f.cache,
		cmp(0, wallet, "Art", 100, 10, now.Add(48*time.Hour), true),
		cmp(1, other, "Art", 100, 200, now.Add(-time.Hour), true),
		cmp(2, other, "Health", 100, 0, now.Add(72*time.Hour), true),
	)

	all, err := f.svc.ListCampaigns(context.Background(), campaign.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(0), all[0].ID)
	assert.Equal(t, int64(2), all[0].DaysLeft)
	assert.Equal(t, campaign.StatusSuccessful, all[1].Status)
	assert.Equal(t, uint64(200), all[1].ProgressPercent)
	assert.Equal(t, uint64(100), all[1].DisplayProgress)

	art, err := f.svc.ListCampaigns(context.Background(), campaign.Filter{Category: "Art", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, art, 1)
	assert.Equal(t, uint64(0), art[0].ID)

	mine, err := f.svc.ListCampaigns(context.Background(), campaign.Filter{Creator: &other})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := f.svc.ListCampaigns(context.Background(), campaign.Filter{Category: "Other"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetCampaign_CacheHit(t *testing.T) {
	f := newFixture(t)
	seed(f.cache, cmp(3, wallet, "Art", 1e18, 5e17, now.Add(time.Hour), true))

	view, err := f.svc.GetCampaign(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "1", view.GoalEth)
	assert.Equal(t, "0.5", view.RaisedEth)
	assert.Equal(t, uint64(50), view.ProgressPercent)
	f.reader.AssertNotCalled(t, "TotalCampaigns", mock.Anything)
}

func TestGetCampaign_SelectsCampaign(t *testing.T) {
	f := newFixture(t)
	seed(f.cache, cmp(3, wallet, "Art", 1e18, 0, now.Add(time.Hour), true))

	_, err := f.svc.Selected(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))

	_, err = f.svc.GetCampaign(context.Background(), 3)
	require.NoError(t, err)

	// later writes to the selected id are visible through Selected
	f.cache.Patch(3, campaign.Partial{AmountRaised: big.NewInt(5e17)})
	view, err := f.svc.Selected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), view.ID)
	assert.Equal(t, "0.5", view.RaisedEth)
}

func TestGetCampaign_MissReadsFromChain(t *testing.T) {
	f := newFixture(t)
	f.reader.On("TotalCampaigns", mock.Anything).Return(uint64(5), nil)
	f.reader.On("CampaignDetails", mock.Anything, uint64(4)).
		Return(details(4, wallet, 100, 0, now.Add(time.Hour).Unix(), true), nil)

	view, err := f.svc.GetCampaign(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), view.ID)

	_, cached := f.cache.GetByID(4)
	assert.True(t, cached)
}

func TestGetCampaign_OutOfRange(t *testing.T) {
	f := newFixture(t)
	f.reader.On("TotalCampaigns", mock.Anything).Return(uint64(2), nil)

	_, err := f.svc.GetCampaign(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
	f.reader.AssertNotCalled(t, "CampaignDetails", mock.Anything, mock.Anything)
}

func TestGetCampaign_ChainUnavailable(t *testing.T) {
	f := newFixture(t)
	f.reader.On("TotalCampaigns", mock.Anything).Return(uint64(0), errors.New("connection refused"))

	_, err := f.svc.GetCampaign(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDependencyFailure))
}

func TestGetProgress(t *testing.T) {
	f := newFixture(t)
	c := cmp(1, wallet, "Art", 100, 150, now.Add(time.Hour), true)
	seed(f.cache, c)
	f.reader.On("CampaignProgress", mock.Anything, c.ContractAddress).Return(big.NewInt(150), nil)

	resp, err := f.svc.GetProgress(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "150", resp.OnChainPercent)
	assert.Equal(t, uint64(100), resp.DisplayProgress)
}

func TestGetProgress_Timeout(t *testing.T) {
	f := newFixture(t)
	c := cmp(1, wallet, "Art", 100, 0, now.Add(time.Hour), true)
	seed(f.cache, c)
	f.reader.On("CampaignProgress", mock.Anything, c.ContractAddress).Return(nil, context.DeadlineExceeded)

	_, err := f.svc.GetProgress(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryConnectionTimeout))
}

func TestCreateCampaign_ValidationFailsLocally(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCampaign(context.Background(), campaign.CreateRequest{
		Title:        "Hi",
		Description:  "short",
		Goal:         "0.001",
		DurationDays: 0,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	fields := apperrors.FieldErrors(err)
	for _, k := range []string{"title", "description", "goal", "duration_days", "category"} {
		assert.Contains(t, fields, k)
	}
	assert.Empty(t, f.submitter.kinds)
}

func TestCreateCampaign_Submits(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreateCampaign(context.Background(), campaign.CreateRequest{
		Title:        "Solar panels",
		Description:  "Fund solar panels for the school roof",
		Goal:         "1.5",
		DurationDays: 30,
		Category:     "Environment",
	})
	require.NoError(t, err)
	assert.Equal(t, txHash, resp.TxHash)
	assert.Equal(t, string(ledger.StatusPending), resp.Status)

	require.Len(t, f.submitter.kinds, 1)
	assert.Equal(t, ledger.KindCreateCampaign, f.submitter.kinds[0])
	p := f.submitter.payloads[0].(orchestrator.CreateCampaignPayload)
	assert.Equal(t, "1500000000000000000", p.Goal.String())
	assert.Equal(t, int64(30), p.DurationDays)
}

func TestContribute(t *testing.T) {
	f := newFixture(t)
	c := cmp(2, wallet, "Art", 100, 0, now.Add(time.Hour), true)
	seed(f.cache, c)

	resp, err := f.svc.Contribute(context.Background(), 2, "0.1")
	require.NoError(t, err)
	assert.Equal(t, txHash, resp.TxHash)

	p := f.submitter.payloads[0].(orchestrator.ContributionPayload)
	assert.Equal(t, uint64(2), p.CampaignID)
	assert.Equal(t, c.ContractAddress, p.CampaignAddress)
	assert.Equal(t, "100000000000000000", p.Amount.String())
	assert.Equal(t, wallet, p.Contributor)
}

func TestContribute_InvalidAmount(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []string{"", "abc", "0", "-1"} {
		_, err := f.svc.Contribute(context.Background(), 2, amount)
		require.Error(t, err, amount)
		assert.Contains(t, apperrors.FieldErrors(err), "amount")
	}
	assert.Empty(t, f.submitter.kinds)
}

func TestWithdrawAndRefund(t *testing.T) {
	f := newFixture(t)
	c := cmp(1, wallet, "Art", 100, 0, now.Add(-time.Hour), false)
	seed(f.cache, c)

	_, err := f.svc.Withdraw(context.Background(), 1)
	require.NoError(t, err)
	_, err = f.svc.Refund(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []ledger.Kind{ledger.KindWithdraw, ledger.KindRefund}, f.submitter.kinds)
	assert.Equal(t, orchestrator.WithdrawalPayload{CampaignID: 1, CampaignAddress: c.ContractAddress}, f.submitter.payloads[0])
	assert.Equal(t, orchestrator.RefundPayload{CampaignID: 1, CampaignAddress: c.ContractAddress}, f.submitter.payloads[1])
}

func TestSubmit_PropagatesSubmissionError(t *testing.T) {
	f := newFixture(t)
	seed(f.cache, cmp(1, wallet, "Art", 100, 0, now.Add(time.Hour), true))
	f.submitter.err = apperrors.SubmissionError(errors.New("insufficient funds"), "transaction rejected")

	_, err := f.svc.Withdraw(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategorySubmission))
}

func TestDashboard(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	contribution := func(hash string, id uint64, amount int64, from common.Address, status ledger.Status) ledger.Transaction {
		return ledger.Transaction{
			Hash:   hash,
			Kind:   ledger.KindContribute,
			Status: status,
			Payload: orchestrator.ContributionPayload{
				CampaignID:  id,
				Amount:      big.NewInt(amount),
				Contributor: from,
			},
		}
	}

	f := newFixture(t,
		contribution("0x1", 2, 30, wallet, ledger.StatusConfirmed),
		contribution("0x2", 2, 20, wallet, ledger.StatusConfirmed),
		contribution("0x3", 3, 99, wallet, ledger.StatusFailed),
		contribution("0x4", 3, 99, wallet, ledger.StatusPending),
		contribution("0x5", 3, 99, other, ledger.StatusConfirmed),
		ledger.Transaction{Hash: "0x6", Kind: ledger.KindWithdraw, Status: ledger.StatusConfirmed},
	)
	seed(f.cache,
		cmp(0, wallet, "Art", 100, 40, now.Add(time.Hour), true),
		cmp(1, wallet, "Art", 100, 60, now.Add(-time.Hour), true),
		cmp(2, other, "Art", 100, 50, now.Add(time.Hour), true),
		cmp(3, other, "Art", 100, 99, now.Add(time.Hour), true),
	)

	d, err := f.svc.Dashboard(context.Background(), wallet)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Stats.TotalCreated)
	assert.Equal(t, 1, d.Stats.ActiveCampaigns)
	assert.Equal(t, "100", d.Stats.TotalRaised)
	assert.Equal(t, 1, d.Stats.TotalBacked)
	assert.Equal(t, "50", d.Stats.TotalContributed)
	require.Len(t, d.Backed, 1)
	assert.Equal(t, uint64(2), d.Backed[0].ID)
}

func TestDashboard_EmptyWallet(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.Dashboard(context.Background(), wallet)
	require.NoError(t, err)
	assert.NotNil(t, d.Created)
	assert.NotNil(t, d.Backed)
	assert.Equal(t, "0", d.Stats.TotalRaised)
	assert.Equal(t, "0", d.Stats.TotalContributed)
}
