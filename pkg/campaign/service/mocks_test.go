package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/chainsafe/crowdfund-client/pkg/campaign"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum/contracts"
	"github.com/chainsafe/crowdfund-client/pkg/ledger"
)

// MockReader is a testify mock of ChainReader
type MockReader struct {
	mock.Mock
}

func (m *MockReader) TotalCampaigns(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockReader) CampaignDetails(ctx context.Context, id uint64) (*contracts.CampaignDetails, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*contracts.CampaignDetails)
	return d, args.Error(1)
}

func (m *MockReader) CampaignProgress(ctx context.Context, addr common.Address) (*big.Int, error) {
	args := m.Called(ctx, addr)
	p, _ := args.Get(0).(*big.Int)
	return p, args.Error(1)
}

// funcReader is a ChainReader whose detail reads are served by DetailsFunc
type funcReader struct {
	Total       uint64
	DetailsFunc func(ctx context.Context, id uint64) (*contracts.CampaignDetails, error)
}

func (f *funcReader) TotalCampaigns(context.Context) (uint64, error) { return f.Total, nil }

func (f *funcReader) CampaignDetails(ctx context.Context, id uint64) (*contracts.CampaignDetails, error) {
	return f.DetailsFunc(ctx, id)
}

func (f *funcReader) CampaignProgress(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

// fakeSubmitter records every submission and returns a fixed hash or error
type fakeSubmitter struct {
	mu       sync.Mutex
	hash     string
	err      error
	kinds    []ledger.Kind
	payloads []any
}

func (f *fakeSubmitter) Submit(_ context.Context, kind ledger.Kind, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	f.payloads = append(f.payloads, payload)
	return f.hash, f.err
}

type fakeLister []ledger.Transaction

func (f fakeLister) List() []ledger.Transaction { return f }

// MockService is a testify mock of Service used by the HTTP tests
type MockService struct {
	mock.Mock
}

func (m *MockService) RefreshAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockService) RefreshCampaign(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockService) ListCampaigns(ctx context.Context, filter campaign.Filter) ([]CampaignView, error) {
	args := m.Called(ctx, filter)
	v, _ := args.Get(0).([]CampaignView)
	return v, args.Error(1)
}

func (m *MockService) GetCampaign(ctx context.Context, id uint64) (*CampaignView, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*CampaignView)
	return v, args.Error(1)
}

func (m *MockService) Selected(ctx context.Context) (*CampaignView, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).(*CampaignView)
	return v, args.Error(1)
}

func (m *MockService) GetProgress(ctx context.Context, id uint64) (*ProgressResponse, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*ProgressResponse)
	return v, args.Error(1)
}

func (m *MockService) Dashboard(ctx context.Context, address common.Address) (*Dashboard, error) {
	args := m.Called(ctx, address)
	v, _ := args.Get(0).(*Dashboard)
	return v, args.Error(1)
}

func (m *MockService) CreateCampaign(ctx context.Context, req campaign.CreateRequest) (*SubmitResponse, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(*SubmitResponse)
	return v, args.Error(1)
}

func (m *MockService) Contribute(ctx context.Context, id uint64, amountEth string) (*SubmitResponse, error) {
	args := m.Called(ctx, id, amountEth)
	v, _ := args.Get(0).(*SubmitResponse)
	return v, args.Error(1)
}

func (m *MockService) Withdraw(ctx context.Context, id uint64) (*SubmitResponse, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*SubmitResponse)
	return v, args.Error(1)
}

func (m *MockService) Refund(ctx context.Context, id uint64) (*SubmitResponse, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*SubmitResponse)
	return v, args.Error(1)
}

func details(n int64, creator common.Address, goalWei, raisedWei, deadline int64, active bool) *contracts.CampaignDetails {
	return &contracts.CampaignDetails{
		CampaignAddress:  common.BigToAddress(big.NewInt(1000 + n)),
		Creator:          creator,
		Title:            "Campaign title",
		Description:      "A campaign description long enough",
		Goal:             big.NewInt(goalWei),
		AmountRaised:     big.NewInt(raisedWei),
		Deadline:         big.NewInt(deadline),
		Category:         "Technology",
		IsActive:         active,
		ContributorCount: big.NewInt(1),
	}
}
