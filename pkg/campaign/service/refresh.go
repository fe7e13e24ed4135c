package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/crowdfund-client/internal/metrics"
	"github.com/chainsafe/crowdfund-client/pkg/campaign"
	"github.com/chainsafe/crowdfund-client/pkg/campaign/cache"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum/contracts"
)

// ChainReader is the read side of the chain client adapter
type ChainReader interface {
	TotalCampaigns(ctx context.Context) (uint64, error)
	CampaignDetails(ctx context.Context, id uint64) (*contracts.CampaignDetails, error)
	CampaignProgress(ctx context.Context, campaign common.Address) (*big.Int, error)
}

// RefreshConfig controls bulk and single campaign reads
type RefreshConfig struct {
	// FirstCampaignID is the id the factory assigned to its first campaign
	FirstCampaignID uint64
	// Concurrency bounds parallel getCampaignDetails calls during RefreshAll
	Concurrency          int           `default:"8"`
	RetryInitialInterval time.Duration `default:"200ms"`
	RetryMaxElapsed      time.Duration `default:"30s"`
}

// Refresher mirrors on-chain campaigns into the cache
type Refresher struct {
	reader ChainReader
	cache  *cache.Cache
	cfg    RefreshConfig
	logger *zap.Logger
}

// NewRefresher creates a Refresher. Zero config fields take their defaults.
func NewRefresher(reader ChainReader, c *cache.Cache, cfg RefreshConfig, logger *zap.Logger) *Refresher {
	if err := defaults.Set(&cfg); err != nil {
		logger.Warn("Failed to apply refresh defaults", zap.Error(err))
	}
	return &Refresher{reader: reader, cache: c, cfg: cfg, logger: logger}
}

// RefreshAll enumerates every campaign id, batch-reads the details with
// bounded concurrency and replaces the cache content. The cache is left
// untouched if any read fails. Campaigns written to the cache while the bulk
// read is in flight are newer than what it read and are kept.
func (r *Refresher) RefreshAll(ctx context.Context) (int, error) {
	since := r.cache.Version()
	total, err := retryRead(ctx, r, contracts.MethodGetTotalCampaigns, func() (uint64, error) {
		return r.reader.TotalCampaigns(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("get total campaigns: %w", err)
	}

	campaigns := make([]campaign.Campaign, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i := range total {
		id := r.cfg.FirstCampaignID + i
		g.Go(func() error {
			details, err := retryRead(gctx, r, contracts.MethodGetCampaignDetails, func() (*contracts.CampaignDetails, error) {
				return r.reader.CampaignDetails(gctx, id)
			})
			if err != nil {
				return fmt.Errorf("read campaign %d: %w", id, err)
			}
			campaigns[i] = campaign.FromDetails(id, details)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	r.cache.SetAllSince(campaigns, since)
	r.logger.Info("Campaign cache refreshed", zap.Uint64("count", total))
	return len(campaigns), nil
}

// RefreshCampaign re-reads a single campaign and upserts it
func (r *Refresher) RefreshCampaign(ctx context.Context, id uint64) error {
	details, err := retryRead(ctx, r, contracts.MethodGetCampaignDetails, func() (*contracts.CampaignDetails, error) {
		return r.reader.CampaignDetails(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("read campaign %d: %w", id, err)
	}

	r.cache.Upsert(campaign.FromDetails(id, details))
	r.logger.Debug("Campaign refreshed", zap.Uint64("campaign_id", id))
	return nil
}

// Run refreshes the whole cache on interval until ctx is canceled
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RefreshAll(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("Periodic campaign refresh failed", zap.Error(err))
			}
		}
	}
}

// OnCampaignCreated upserts a campaign announced by a CampaignCreated event
func (r *Refresher) OnCampaignCreated(ctx context.Context) func(*ethereum.CampaignCreatedEvent) error {
	return func(ev *ethereum.CampaignCreatedEvent) error {
		if _, ok := r.cache.GetByID(ev.CampaignID); ok {
			return nil
		}
		return r.RefreshCampaign(ctx, ev.CampaignID)
	}
}

// retryRead retries connectivity failures with exponential backoff. Reverts,
// ABI mismatches and cancellation are not retried.
func retryRead[T any](ctx context.Context, r *Refresher, method string, op func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.RetryInitialInterval

	notify := func(err error, next time.Duration) {
		r.logger.Warn("Chain read failed, retrying",
			zap.String("method", method),
			zap.Duration("backoff", next),
			zap.Error(err))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err == nil {
			metrics.ChainReads.WithLabelValues(method, "success").Inc()
			return v, nil
		}
		metrics.ChainReads.WithLabelValues(method, "error").Inc()
		if isPermanent(ctx, err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(r.cfg.RetryMaxElapsed),
		backoff.WithNotify(notify))
}

func isPermanent(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, ethereum.ErrUnknownMethod) || errors.Is(err, ethereum.ErrUnknownContract) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "abi:")
}
