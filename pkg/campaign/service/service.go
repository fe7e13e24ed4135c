package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
	"github.com/chainsafe/crowdfund-client/pkg/campaign"
	"github.com/chainsafe/crowdfund-client/pkg/campaign/cache"
	"github.com/chainsafe/crowdfund-client/pkg/ledger"
	"github.com/chainsafe/crowdfund-client/pkg/orchestrator"
)

// Submitter hands write requests to the transaction orchestrator
type Submitter interface {
	Submit(ctx context.Context, kind ledger.Kind, payload any) (string, error)
}

// TransactionLister exposes the ledger entries used by the dashboard
type TransactionLister interface {
	List() []ledger.Transaction
}

// Service defines the campaign reads, aggregation and write entrypoints
type Service interface {
	RefreshAll(ctx context.Context) (int, error)
	RefreshCampaign(ctx context.Context, id uint64) error
	ListCampaigns(ctx context.Context, filter campaign.Filter) ([]CampaignView, error)
	GetCampaign(ctx context.Context, id uint64) (*CampaignView, error)
	Selected(ctx context.Context) (*CampaignView, error)
	GetProgress(ctx context.Context, id uint64) (*ProgressResponse, error)
	Dashboard(ctx context.Context, address common.Address) (*Dashboard, error)
	CreateCampaign(ctx context.Context, req campaign.CreateRequest) (*SubmitResponse, error)
	Contribute(ctx context.Context, id uint64, amountEth string) (*SubmitResponse, error)
	Withdraw(ctx context.Context, id uint64) (*SubmitResponse, error)
	Refund(ctx context.Context, id uint64) (*SubmitResponse, error)
}

type campaignService struct {
	reader    ChainReader
	refresher *Refresher
	cache     *cache.Cache
	submitter Submitter
	ledger    TransactionLister
	wallet    common.Address
	firstID   uint64
	now       func() time.Time
}

// NewService creates the campaign service. wallet is the address that signs
// writes and is recorded as the contributor of submitted contributions.
func NewService(
	reader ChainReader,
	refresher *Refresher,
	c *cache.Cache,
	submitter Submitter,
	l TransactionLister,
	wallet common.Address,
) Service {
	return &campaignService{
		reader:    reader,
		refresher: refresher,
		cache:     c,
		submitter: submitter,
		ledger:    l,
		wallet:    wallet,
		firstID:   refresher.cfg.FirstCampaignID,
		now:       time.Now,
	}
}

// chainError maps a failed chain read onto the error taxonomy
func chainError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.TimeoutError(err, message)
	}
	return apperrors.DependencyError(err, message)
}

func (s *campaignService) RefreshAll(ctx context.Context) (int, error) {
	n, err := s.refresher.RefreshAll(ctx)
	if err != nil {
		return 0, chainError(err, "failed to refresh campaigns")
	}
	return n, nil
}

func (s *campaignService) RefreshCampaign(ctx context.Context, id uint64) error {
	if err := s.refresher.RefreshCampaign(ctx, id); err != nil {
		return chainError(err, fmt.Sprintf("failed to refresh campaign %d", id))
	}
	return nil
}

func (s *campaignService) ListCampaigns(_ context.Context, filter campaign.Filter) ([]CampaignView, error) {
	now := s.now()
	if filter.Now.IsZero() {
		filter.Now = now
	}

	views := []CampaignView{}
	for c := range s.cache.Select(filter.Match) {
		views = append(views, newView(c, now))
	}
	return views, nil
}

// lookup returns the cached campaign, reading it from chain on a miss
func (s *campaignService) lookup(ctx context.Context, id uint64) (campaign.Campaign, error) {
	if c, ok := s.cache.GetByID(id); ok {
		return c, nil
	}

	total, err := s.reader.TotalCampaigns(ctx)
	if err != nil {
		return campaign.Campaign{}, chainError(err, "failed to read campaign count")
	}
	if id < s.firstID || id-s.firstID >= total {
		return campaign.Campaign{}, apperrors.ResourceNotFoundError(nil, fmt.Sprintf("campaign %d not found", id))
	}

	if err := s.RefreshCampaign(ctx, id); err != nil {
		return campaign.Campaign{}, err
	}
	c, ok := s.cache.GetByID(id)
	if !ok {
		return campaign.Campaign{}, apperrors.ResourceNotFoundError(nil, fmt.Sprintf("campaign %d not found", id))
	}
	return c, nil
}

func (s *campaignService) GetCampaign(ctx context.Context, id uint64) (*CampaignView, error) {
	c, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SelectCampaign(id)
	view := newView(c, s.now())
	return &view, nil
}

// Selected returns the campaign last opened with GetCampaign, with its latest cached figures
func (s *campaignService) Selected(_ context.Context) (*CampaignView, error) {
	c, ok := s.cache.Selected()
	if !ok {
		return nil, apperrors.ResourceNotFoundError(nil, "no campaign selected")
	}
	view := newView(c, s.now())
	return &view, nil
}

func (s *campaignService) GetProgress(ctx context.Context, id uint64) (*ProgressResponse, error) {
	c, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	pct, err := s.reader.CampaignProgress(ctx, c.ContractAddress)
	if err != nil {
		return nil, chainError(err, fmt.Sprintf("failed to read progress of campaign %d", id))
	}

	display := uint64(100)
	if pct.IsUint64() {
		display = min(pct.Uint64(), 100)
	}
	return &ProgressResponse{
		CampaignID:      id,
		OnChainPercent:  pct.String(),
		DisplayProgress: display,
	}, nil
}

// Dashboard aggregates the campaigns created by address and those it backed
// through confirmed contributions recorded in this session's ledger.
func (s *campaignService) Dashboard(_ context.Context, address common.Address) (*Dashboard, error) {
	now := s.now()
	d := &Dashboard{Address: address, Created: []CampaignView{}, Backed: []CampaignView{}}

	raised := new(big.Int)
	for c := range s.cache.Select(func(c campaign.Campaign) bool { return c.Creator == address }) {
		v := newView(c, now)
		d.Created = append(d.Created, v)
		raised.Add(raised, c.AmountRaised)
		if v.Status == campaign.StatusActive {
			d.Stats.ActiveCampaigns++
		}
	}

	contributed := new(big.Int)
	var backed []uint64
	for _, tx := range s.ledger.List() {
		if tx.Kind != ledger.KindContribute || tx.Status != ledger.StatusConfirmed {
			continue
		}
		p, ok := tx.Payload.(orchestrator.ContributionPayload)
		if !ok || p.Contributor != address || p.Amount == nil {
			continue
		}
		contributed.Add(contributed, p.Amount)
		if !slices.Contains(backed, p.CampaignID) {
			backed = append(backed, p.CampaignID)
		}
	}
	slices.Sort(backed)
	for _, id := range backed {
		if c, ok := s.cache.GetByID(id); ok {
			d.Backed = append(d.Backed, newView(c, now))
		}
	}

	d.Stats.TotalCreated = len(d.Created)
	d.Stats.TotalBacked = len(backed)
	d.Stats.TotalRaised = raised.String()
	d.Stats.TotalContributed = contributed.String()
	return d, nil
}

func (s *campaignService) CreateCampaign(ctx context.Context, req campaign.CreateRequest) (*SubmitResponse, error) {
	valid, err := req.Validate()
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, ledger.KindCreateCampaign, orchestrator.CreateCampaignPayload{
		Title:        valid.Title,
		Description:  valid.Description,
		Goal:         valid.GoalWei,
		DurationDays: valid.DurationDays,
		Category:     valid.Category,
		ImageURL:     valid.ImageURL,
	})
}

func (s *campaignService) Contribute(ctx context.Context, id uint64, amountEth string) (*SubmitResponse, error) {
	amount, err := campaign.ParseEther(amountEth)
	if err != nil {
		return nil, apperrors.ValidationError(map[string]string{"amount": "Amount must be a positive ETH value with at most 18 decimals"})
	}

	c, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, ledger.KindContribute, orchestrator.ContributionPayload{
		CampaignID:      id,
		CampaignAddress: c.ContractAddress,
		Amount:          amount,
		Contributor:     s.wallet,
	})
}

func (s *campaignService) Withdraw(ctx context.Context, id uint64) (*SubmitResponse, error) {
	c, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, ledger.KindWithdraw, orchestrator.WithdrawalPayload{
		CampaignID:      id,
		CampaignAddress: c.ContractAddress,
	})
}

func (s *campaignService) Refund(ctx context.Context, id uint64) (*SubmitResponse, error) {
	c, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, ledger.KindRefund, orchestrator.RefundPayload{
		CampaignID:      id,
		CampaignAddress: c.ContractAddress,
	})
}

func (s *campaignService) submit(ctx context.Context, kind ledger.Kind, payload any) (*SubmitResponse, error) {
	hash, err := s.submitter.Submit(ctx, kind, payload)
	if err != nil {
		return nil, err
	}
	return &SubmitResponse{TxHash: hash, Status: string(ledger.StatusPending)}, nil
}
