package orchestrator

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainsafe/crowdfund-client/pkg/ethereum"
)

var testFactoryRef = ethereum.ContractRef{
	Kind:    ethereum.ContractFactory,
	Address: common.HexToAddress("0x00000000000000000000000000000000000000fa"),
}

// MockChain is a mock implementation of Chain
type MockChain struct {
	WriteCallFunc            func(ctx context.Context, req ethereum.WriteRequest) (common.Hash, error)
	AwaitConfirmationFunc    func(ctx context.Context, txHash common.Hash) (*ethereum.Confirmation, error)
	ParseCampaignCreatedFunc func(logs []*types.Log) (*ethereum.CampaignCreatedEvent, error)
}

func (m *MockChain) FactoryRef() ethereum.ContractRef {
	return testFactoryRef
}

func (m *MockChain) WriteCall(ctx context.Context, req ethereum.WriteRequest) (common.Hash, error) {
	if m.WriteCallFunc != nil {
		return m.WriteCallFunc(ctx, req)
	}
	return common.Hash{}, nil
}

func (m *MockChain) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*ethereum.Confirmation, error) {
	if m.AwaitConfirmationFunc != nil {
		return m.AwaitConfirmationFunc(ctx, txHash)
	}
	return &ethereum.Confirmation{Status: ethereum.ConfirmationSuccess, Receipt: &types.Receipt{}}, nil
}

func (m *MockChain) ParseCampaignCreated(logs []*types.Log) (*ethereum.CampaignCreatedEvent, error) {
	if m.ParseCampaignCreatedFunc != nil {
		return m.ParseCampaignCreatedFunc(logs)
	}
	return nil, ethereum.ErrEventNotFound
}

// MockRefresher records refreshed campaign ids
type MockRefresher struct {
	mu                  sync.Mutex
	ids                 []uint64
	RefreshCampaignFunc func(ctx context.Context, id uint64) error
}

func (m *MockRefresher) RefreshCampaign(ctx context.Context, id uint64) error {
	m.mu.Lock()
	m.ids = append(m.ids, id)
	m.mu.Unlock()
	if m.RefreshCampaignFunc != nil {
		return m.RefreshCampaignFunc(ctx, id)
	}
	return nil
}

func (m *MockRefresher) Refreshed() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.ids...)
}

// gatedChain hands out sequential hashes and lets the test settle each one
type gatedChain struct {
	MockChain

	mu    sync.Mutex
	next  int
	gates map[common.Hash]chan *ethereum.Confirmation
	reqs  []ethereum.WriteRequest
}

func newGatedChain() *gatedChain {
	g := &gatedChain{gates: map[common.Hash]chan *ethereum.Confirmation{}}
	g.WriteCallFunc = func(_ context.Context, req ethereum.WriteRequest) (common.Hash, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.next++
		hash := common.BigToHash(big.NewInt(int64(g.next)))
		g.gates[hash] = make(chan *ethereum.Confirmation, 1)
		g.reqs = append(g.reqs, req)
		return hash, nil
	}
	g.AwaitConfirmationFunc = func(ctx context.Context, hash common.Hash) (*ethereum.Confirmation, error) {
		g.mu.Lock()
		gate := g.gates[hash]
		g.mu.Unlock()
		select {
		case conf := <-gate:
			return conf, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g
}

func (g *gatedChain) settle(hash string, conf *ethereum.Confirmation) {
	g.mu.Lock()
	gate := g.gates[common.HexToHash(hash)]
	g.mu.Unlock()
	gate <- conf
}

func (g *gatedChain) requests() []ethereum.WriteRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ethereum.WriteRequest(nil), g.reqs...)
}
