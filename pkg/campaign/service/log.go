package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
	"github.com/chainsafe/crowdfund-client/pkg/campaign"
)

const serviceName = "CampaignService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the campaign Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// observe logs the start of method and returns a func that logs its outcome.
// Client errors (validation, not found) are logged at warn level.
func (ls *logService) observe(method string, fields ...zap.Field) func(err error, extra ...zap.Field) {
	start := time.Now()
	base := append([]zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
	}, fields...)

	ls.logger.Debug(method+" started", base...)

	return func(err error, extra ...zap.Field) {
		all := append(append(base, zap.Duration("duration", time.Since(start))), extra...)
		switch {
		case err == nil:
			ls.logger.Info(method+" completed", all...)
		case apperrors.Is(err, apperrors.CategoryDataError), apperrors.Is(err, apperrors.CategoryResourceNotFound):
			ls.logger.Warn(method+" rejected", append(all, zap.Error(err))...)
		default:
			ls.logger.Error(method+" failed", append(all, zap.Error(err))...)
		}
	}
}

// RefreshAll wraps the service method with logging
func (ls *logService) RefreshAll(ctx context.Context) (n int, err error) {
	done := ls.observe("RefreshAll")
	defer func() { done(err, zap.Int("count", n)) }()
	return ls.svc.RefreshAll(ctx)
}

// RefreshCampaign wraps the service method with logging
func (ls *logService) RefreshCampaign(ctx context.Context, id uint64) (err error) {
	done := ls.observe("RefreshCampaign", zap.Uint64("campaign_id", id))
	defer func() { done(err) }()
	return ls.svc.RefreshCampaign(ctx, id)
}

// ListCampaigns wraps the service method with logging
func (ls *logService) ListCampaigns(ctx context.Context, filter campaign.Filter) (views []CampaignView, err error) {
	done := ls.observe("ListCampaigns",
		zap.String("category", filter.Category),
		zap.Bool("active_only", filter.ActiveOnly))
	defer func() { done(err, zap.Int("count", len(views))) }()
	return ls.svc.ListCampaigns(ctx, filter)
}

// GetCampaign wraps the service method with logging
func (ls *logService) GetCampaign(ctx context.Context, id uint64) (view *CampaignView, err error) {
	done := ls.observe("GetCampaign", zap.Uint64("campaign_id", id))
	defer func() { done(err) }()
	return ls.svc.GetCampaign(ctx, id)
}

// Selected wraps the service method with logging
func (ls *logService) Selected(ctx context.Context) (view *CampaignView, err error) {
	done := ls.observe("Selected")
	defer func() { done(err) }()
	return ls.svc.Selected(ctx)
}

// GetProgress wraps the service method with logging
func (ls *logService) GetProgress(ctx context.Context, id uint64) (resp *ProgressResponse, err error) {
	done := ls.observe("GetProgress", zap.Uint64("campaign_id", id))
	defer func() { done(err) }()
	return ls.svc.GetProgress(ctx, id)
}

// Dashboard wraps the service method with logging
func (ls *logService) Dashboard(ctx context.Context, address common.Address) (d *Dashboard, err error) {
	done := ls.observe("Dashboard", zap.String("address", address.Hex()))
	defer func() { done(err) }()
	return ls.svc.Dashboard(ctx, address)
}

// CreateCampaign wraps the service method with logging
func (ls *logService) CreateCampaign(ctx context.Context, req campaign.CreateRequest) (resp *SubmitResponse, err error) {
	done := ls.observe("CreateCampaign",
		zap.String("title", req.Title),
		zap.String("goal", req.Goal),
		zap.Int64("duration_days", req.DurationDays))
	defer func() { done(err, txHashField(resp)) }()
	return ls.svc.CreateCampaign(ctx, req)
}

// Contribute wraps the service method with logging
func (ls *logService) Contribute(ctx context.Context, id uint64, amountEth string) (resp *SubmitResponse, err error) {
	done := ls.observe("Contribute", zap.Uint64("campaign_id", id), zap.String("amount_eth", amountEth))
	defer func() { done(err, txHashField(resp)) }()
	return ls.svc.Contribute(ctx, id, amountEth)
}

// Withdraw wraps the service method with logging
func (ls *logService) Withdraw(ctx context.Context, id uint64) (resp *SubmitResponse, err error) {
	done := ls.observe("Withdraw", zap.Uint64("campaign_id", id))
	defer func() { done(err, txHashField(resp)) }()
	return ls.svc.Withdraw(ctx, id)
}

// Refund wraps the service method with logging
func (ls *logService) Refund(ctx context.Context, id uint64) (resp *SubmitResponse, err error) {
	done := ls.observe("Refund", zap.Uint64("campaign_id", id))
	defer func() { done(err, txHashField(resp)) }()
	return ls.svc.Refund(ctx, id)
}

func txHashField(resp *SubmitResponse) zap.Field {
	if resp == nil {
		return zap.Skip()
	}
	return zap.String("tx_hash", resp.TxHash)
}
