package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/pkg/campaign"
	"github.com/chainsafe/crowdfund-client/pkg/campaign/cache"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum/contracts"
)

var creator = common.HexToAddress("0x00000000000000000000000000000000000000c1")

func newTestRefresher(reader ChainReader, firstID uint64) (*Refresher, *cache.Cache) {
	c := cache.New(0, zap.NewNop())
	r := NewRefresher(reader, c, RefreshConfig{
		FirstCampaignID:      firstID,
		Concurrency:          2,
		RetryInitialInterval: time.Millisecond,
		RetryMaxElapsed:      200 * time.Millisecond,
	}, zap.NewNop())
	return r, c
}

func TestNewRefresher_AppliesDefaults(t *testing.T) {
	r := NewRefresher(new(MockReader), cache.New(0, zap.NewNop()), RefreshConfig{}, zap.NewNop())
	assert.Equal(t, 8, r.cfg.Concurrency)
	assert.Equal(t, 200*time.Millisecond, r.cfg.RetryInitialInterval)
	assert.Equal(t, 30*time.Second, r.cfg.RetryMaxElapsed)
}

func TestRefreshAll_ReadsEveryID(t *testing.T) {
	reader := new(MockReader)
	reader.On("TotalCampaigns", mock.Anything).Return(uint64(3), nil)
	for id := int64(1); id <= 3; id++ {
		reader.On("CampaignDetails", mock.Anything, uint64(id)).
			Return(details(id, creator, 100, 10*id, 2_000_000_000, true), nil)
	}

	r, c := newTestRefresher(reader, 1)
	n, err := r.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, c.Len())

	got, ok := c.GetByID(2)
	require.True(t, ok)
	assert.Equal(t, int64(20), got.AmountRaised.Int64())
	reader.AssertExpectations(t)
}

func TestRefreshAll_EmptyFactory(t *testing.T) {
	reader := new(MockReader)
	reader.On("TotalCampaigns", mock.Anything).Return(uint64(0), nil)

	r, c := newTestRefresher(reader, 0)
	c.SetAll([]campaign.Campaign{{ID: 7}})

	n, err := r.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, c.Len())
	reader.AssertNotCalled(t, "CampaignDetails", mock.Anything, mock.Anything)
}

func TestRefreshAll_FailedReadLeavesCacheUntouched(t *testing.T) {
	reader := new(MockReader)
	reader.On("TotalCampaigns", mock.Anything).Return(uint64(2), nil)
	reader.On("CampaignDetails", mock.Anything, uint64(0)).
		Return(details(0, creator, 100, 0, 2_000_000_000, true), nil)
	reader.On("CampaignDetails", mock.Anything, uint64(1)).
		Return(nil, errors.New("execution reverted"))

	r, c := newTestRefresher(reader, 0)
	c.SetAll([]campaign.Campaign{{ID: 42}})

	_, err := r.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
	_, ok := c.GetByID(42)
	assert.True(t, ok)
}

func TestRefreshAll_KeepsCampaignRefreshedDuringBulkRead(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	reader := &funcReader{
		Total: 1,
		DetailsFunc: func(_ context.Context, id uint64) (*contracts.CampaignDetails, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return details(int64(id), creator, 100, 10, 2_000_000_000, true), nil
			}
			return details(int64(id), creator, 100, 20, 2_000_000_000, true), nil
		},
	}
	r, c := newTestRefresher(reader, 1)

	done := make(chan error, 1)
	go func() {
		_, err := r.RefreshAll(context.Background())
		done <- err
	}()

	<-started
	require.NoError(t, r.RefreshCampaign(context.Background(), 1))
	close(release)
	require.NoError(t, <-done)

	got, ok := c.GetByID(1)
	require.True(t, ok)
	assert.Equal(t, int64(20), got.AmountRaised.Int64())
}

func TestRetryRead_RetriesConnectivityErrors(t *testing.T) {
	reader := new(MockReader)
	reader.On("TotalCampaigns", mock.Anything).Return(uint64(0), errors.New("connection refused")).Twice()
	reader.On("TotalCampaigns", mock.Anything).Return(uint64(0), nil).Once()

	r, _ := newTestRefresher(reader, 0)
	_, err := r.RefreshAll(context.Background())
	require.NoError(t, err)
	reader.AssertNumberOfCalls(t, "TotalCampaigns", 3)
}

func TestRetryRead_DoesNotRetryPermanentErrors(t *testing.T) {
	for name, readErr := range map[string]error{
		"revert":         errors.New("execution reverted: campaign not found"),
		"unknown method": ethereum.ErrUnknownMethod,
	} {
		t.Run(name, func(t *testing.T) {
			reader := new(MockReader)
			reader.On("CampaignDetails", mock.Anything, uint64(5)).Return(nil, readErr)

			r, _ := newTestRefresher(reader, 0)
			err := r.RefreshCampaign(context.Background(), 5)
			require.Error(t, err)
			reader.AssertNumberOfCalls(t, "CampaignDetails", 1)
		})
	}
}

func TestRetryRead_GivesUpAfterMaxElapsed(t *testing.T) {
	reader := new(MockReader)
	reader.On("TotalCampaigns", mock.Anything).Return(uint64(0), errors.New("dial tcp: i/o timeout"))

	r, _ := newTestRefresher(reader, 0)
	_, err := r.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get total campaigns")
}

func TestRefreshCampaign_KeepsDeadline(t *testing.T) {
	reader := new(MockReader)
	reader.On("CampaignDetails", mock.Anything, uint64(1)).
		Return(details(1, creator, 100, 50, 3_000_000_000, true), nil)

	r, c := newTestRefresher(reader, 0)
	c.SetAll([]campaign.Campaign{campaign.FromDetails(1, details(1, creator, 100, 0, 2_000_000_000, true))})

	require.NoError(t, r.RefreshCampaign(context.Background(), 1))
	got, ok := c.GetByID(1)
	require.True(t, ok)
	assert.Equal(t, int64(50), got.AmountRaised.Int64())
	assert.Equal(t, int64(2_000_000_000), got.Deadline)
}

func TestOnCampaignCreated(t *testing.T) {
	reader := new(MockReader)
	reader.On("CampaignDetails", mock.Anything, uint64(4)).
		Return(details(4, creator, 100, 0, 2_000_000_000, true), nil).Once()

	r, c := newTestRefresher(reader, 0)
	handler := r.OnCampaignCreated(context.Background())

	require.NoError(t, handler(&ethereum.CampaignCreatedEvent{CampaignID: 4}))
	_, ok := c.GetByID(4)
	assert.True(t, ok)

	// already cached, no second read
	require.NoError(t, handler(&ethereum.CampaignCreatedEvent{CampaignID: 4}))
	reader.AssertNumberOfCalls(t, "CampaignDetails", 1)
}

var _ ChainReader = (*MockReader)(nil)
