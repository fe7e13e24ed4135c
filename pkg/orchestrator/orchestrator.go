// Package orchestrator submits write transactions, tracks them in the ledger
// and settles them in the background once the chain confirms or rejects them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/internal/metrics"
	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum"
	"github.com/chainsafe/crowdfund-client/pkg/ledger"
	"github.com/chainsafe/crowdfund-client/pkg/notification"
)

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("orchestrator is closed")

// Chain is the chain client adapter surface used for writes
type Chain interface {
	FactoryRef() ethereum.ContractRef
	WriteCall(ctx context.Context, req ethereum.WriteRequest) (common.Hash, error)
	AwaitConfirmation(ctx context.Context, txHash common.Hash) (*ethereum.Confirmation, error)
	ParseCampaignCreated(logs []*types.Log) (*ethereum.CampaignCreatedEvent, error)
}

// Refresher re-reads a campaign into the cache after a confirmed write
type Refresher interface {
	RefreshCampaign(ctx context.Context, id uint64) error
}

// Orchestrator turns submissions into ledger entries and notifications.
// Writes are sent one at a time; no per-campaign locking is done.
type Orchestrator struct {
	chain         Chain
	ledger        *ledger.Ledger
	notifications *notification.Center
	refresher     Refresher
	logger        *zap.Logger

	// background confirmation tasks outlive the submitting request
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// held from WriteCall through Record so ledger order matches nonce order
	submitMu sync.Mutex
}

// New creates an orchestrator. refresher may be nil.
func New(chain Chain, l *ledger.Ledger, n *notification.Center, refresher Refresher, logger *zap.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		chain:         chain,
		ledger:        l,
		notifications: n,
		refresher:     refresher,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Submit forwards the write described by kind and payload to the chain and
// records it as pending. It returns the transaction hash without waiting for
// confirmation. If the chain rejects the write before a hash exists, no ledger
// entry is created, one error notification is pushed and a submission error
// is returned.
func (o *Orchestrator) Submit(ctx context.Context, kind ledger.Kind, payload any) (string, error) {
	req, err := buildRequest(o.chain.FactoryRef(), kind, payload)
	if err != nil {
		return "", apperrors.BadRequestError(err, err.Error())
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return "", apperrors.SubmissionError(ErrClosed, "service is shutting down")
	}

	o.submitMu.Lock()
	hash, err := o.chain.WriteCall(ctx, req)
	if err != nil {
		o.submitMu.Unlock()
		metrics.TransactionsSubmitted.WithLabelValues(string(kind), "rejected").Inc()
		o.logger.Warn("Transaction submission rejected",
			zap.String("kind", string(kind)),
			zap.Error(err))
		o.notifications.Push(notification.Notification{
			Severity: notification.SeverityError,
			Title:    fmt.Sprintf("%s not submitted", kindLabel(kind)),
			Message:  err.Error(),
		})
		return "", apperrors.SubmissionError(err, fmt.Sprintf("%s submission failed: %v", kindLabel(kind), err))
	}

	submittedAt := time.Now()
	tx := ledger.Transaction{
		Hash:        hash.Hex(),
		Kind:        kind,
		Status:      ledger.StatusPending,
		SubmittedAt: submittedAt,
		Payload:     payload,
	}
	err = o.ledger.Record(tx)
	o.submitMu.Unlock()
	if err != nil {
		// The chain accepted it, so the hash is still returned; settlement is skipped
		// because an entry with this hash is already being tracked.
		o.logger.Error("Failed to record transaction",
			zap.String("tx_hash", tx.Hash),
			zap.Error(err))
		return tx.Hash, nil
	}
	metrics.TransactionsSubmitted.WithLabelValues(string(kind), "submitted").Inc()

	o.logger.Info("Transaction pending",
		zap.String("tx_hash", tx.Hash),
		zap.String("kind", string(kind)))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.settle(hash, tx)
	}()

	return tx.Hash, nil
}

// settle awaits the confirmation of one transaction and resolves it exactly once
func (o *Orchestrator) settle(hash common.Hash, tx ledger.Transaction) {
	conf, err := o.chain.AwaitConfirmation(o.ctx, hash)
	if err != nil {
		if o.ctx.Err() != nil {
			o.logger.Warn("Stopped awaiting confirmation on shutdown",
				zap.String("tx_hash", tx.Hash))
			return
		}
		conf = &ethereum.Confirmation{Status: ethereum.ConfirmationFailure, Reason: err.Error()}
	}

	kind := string(tx.Kind)
	metrics.ConfirmationDuration.WithLabelValues(kind).Observe(time.Since(tx.SubmittedAt).Seconds())
	if conf.Receipt != nil {
		metrics.GasUsed.WithLabelValues(kind).Observe(float64(conf.Receipt.GasUsed))
	}

	if !conf.Succeeded() {
		o.resolve(tx, ledger.Patch{Status: ledger.StatusFailed, Error: conf.Reason})
		o.notifications.Push(notification.Notification{
			Severity:    notification.SeverityError,
			Title:       fmt.Sprintf("%s failed", kindLabel(tx.Kind)),
			Message:     conf.Reason,
			ActionURL:   "/api/v1/transactions/" + tx.Hash,
			ActionLabel: "View transaction",
		})
		return
	}

	o.resolve(tx, ledger.Patch{Status: ledger.StatusConfirmed})
	o.notifications.Push(notification.Notification{
		Severity:    notification.SeveritySuccess,
		Title:       fmt.Sprintf("%s confirmed", kindLabel(tx.Kind)),
		Message:     fmt.Sprintf("Transaction %s was confirmed", tx.Hash),
		ActionURL:   "/api/v1/transactions/" + tx.Hash,
		ActionLabel: "View transaction",
	})

	o.refresh(tx, conf)
}

func (o *Orchestrator) resolve(tx ledger.Transaction, patch ledger.Patch) {
	if err := o.ledger.Update(tx.Hash, patch); err != nil {
		o.logger.Error("Failed to resolve transaction",
			zap.String("tx_hash", tx.Hash),
			zap.String("status", string(patch.Status)),
			zap.Error(err))
		return
	}
	metrics.TransactionsResolved.WithLabelValues(string(tx.Kind), string(patch.Status)).Inc()

	o.logger.Info("Transaction resolved",
		zap.String("tx_hash", tx.Hash),
		zap.String("kind", string(tx.Kind)),
		zap.String("status", string(patch.Status)),
		zap.String("error", patch.Error))
}

// refresh re-reads the campaign touched by a confirmed write
func (o *Orchestrator) refresh(tx ledger.Transaction, conf *ethereum.Confirmation) {
	if o.refresher == nil {
		return
	}

	var id uint64
	switch tx.Kind {
	case ledger.KindCreateCampaign:
		if conf.Receipt == nil {
			return
		}
		ev, err := o.chain.ParseCampaignCreated(conf.Receipt.Logs)
		if err != nil {
			o.logger.Warn("Confirmed creation without CampaignCreated event",
				zap.String("tx_hash", tx.Hash),
				zap.Error(err))
			return
		}
		id = ev.CampaignID
	default:
		var ok bool
		if id, ok = campaignID(tx.Payload); !ok {
			return
		}
	}

	if err := o.refresher.RefreshCampaign(o.ctx, id); err != nil {
		o.logger.Warn("Failed to refresh campaign after confirmation",
			zap.String("tx_hash", tx.Hash),
			zap.Uint64("campaign_id", id),
			zap.Error(err))
	}
}

// Close stops accepting submissions and waits for in-flight confirmations.
// When ctx ends first the remaining waits are abandoned and their ledger
// entries stay pending.
func (o *Orchestrator) Close(ctx context.Context) {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		o.logger.Warn("Abandoning in-flight confirmations",
			zap.Int("pending", o.ledger.PendingCount()))
		o.cancel()
		<-done
	}
	o.cancel()
}

func kindLabel(kind ledger.Kind) string {
	switch kind {
	case ledger.KindCreateCampaign:
		return "Campaign creation"
	case ledger.KindContribute:
		return "Contribution"
	case ledger.KindWithdraw:
		return "Withdrawal"
	case ledger.KindRefund:
		return "Refund"
	default:
		return "Transaction"
	}
}
