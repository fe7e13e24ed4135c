// Package ledger keeps the session-scoped record of write transactions
// submitted to the chain and their settlement status.
package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/internal/metrics"
)

var (
	// ErrDuplicate is returned by Record when the hash is already present
	ErrDuplicate = errors.New("transaction already recorded")
	// ErrNotFound is returned when the hash is unknown
	ErrNotFound = errors.New("transaction not found")
	// ErrAlreadyResolved is returned by Update when the entry is already terminal
	ErrAlreadyResolved = errors.New("transaction already resolved")
	// ErrInvalidTransition is returned by Update when the patch does not carry a terminal status
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidTransaction is returned by Record for entries that are not pending or lack a hash
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Kind is the closed set of write operations tracked by the ledger
type Kind string

const (
	KindCreateCampaign Kind = "create_campaign"
	KindContribute     Kind = "contribute"
	KindWithdraw       Kind = "withdraw"
	KindRefund         Kind = "refund"
)

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindCreateCampaign, KindContribute, KindWithdraw, KindRefund:
		return true
	}
	return false
}

// Status is the lifecycle state of a transaction
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed from s
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Transaction is a single ledger entry
type Transaction struct {
	Hash        string     `json:"hash"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Payload     any        `json:"payload,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Patch is the terminal change applied by Update
type Patch struct {
	Status Status
	Error  string
}

// Config holds ledger settings
type Config struct {
	// Retention is how long resolved entries are kept. Pending entries are never pruned.
	Retention     time.Duration `default:"24h"`
	PruneInterval time.Duration `default:"10m"`
}

// EventType describes a ledger change
type EventType string

const (
	EventRecorded EventType = "recorded"
	EventUpdated  EventType = "updated"
	EventPruned   EventType = "pruned"
	EventRemoved  EventType = "removed"
)

// Event is delivered to subscribers after every mutation
type Event struct {
	Type        EventType   `json:"type"`
	Transaction Transaction `json:"transaction"`
}

// state is an immutable snapshot; mutations build a new one and swap it in.
type state struct {
	txs     []Transaction // submission order
	index   map[string]int
	pending int
}

// Ledger is a process-wide transaction ledger. Reads are lock-free against the
// current snapshot; writers are serialized.
type Ledger struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	current atomic.Pointer[state]

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates an empty ledger. Zero config fields take their defaults.
func New(cfg Config, logger *zap.Logger) *Ledger {
	if err := defaults.Set(&cfg); err != nil {
		logger.Warn("Failed to apply ledger defaults", zap.Error(err))
	}

	l := &Ledger{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]chan Event),
	}
	l.current.Store(&state{index: map[string]int{}})
	return l
}

func (s *state) clone() *state {
	next := &state{
		txs:     slices.Clone(s.txs),
		index:   make(map[string]int, len(s.index)),
		pending: s.pending,
	}
	for k, v := range s.index {
		next.index[k] = v
	}
	return next
}

// Record accepts a new pending transaction
func (l *Ledger) Record(tx Transaction) error {
	if tx.Hash == "" || !tx.Kind.Valid() {
		return ErrInvalidTransaction
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	if tx.Status != StatusPending {
		return ErrInvalidTransaction
	}
	if tx.SubmittedAt.IsZero() {
		tx.SubmittedAt = l.now()
	}

	l.mu.Lock()
	cur := l.current.Load()
	if _, ok := cur.index[tx.Hash]; ok {
		l.mu.Unlock()
		l.logger.Warn("Duplicate transaction ignored", zap.String("tx_hash", tx.Hash))
		return ErrDuplicate
	}

	next := cur.clone()
	next.index[tx.Hash] = len(next.txs)
	next.txs = append(next.txs, tx)
	next.pending++
	l.current.Store(next)
	l.mu.Unlock()

	metrics.PendingTransactions.Set(float64(next.pending))
	l.logger.Debug("Transaction recorded",
		zap.String("tx_hash", tx.Hash),
		zap.String("kind", string(tx.Kind)))
	l.publish(Event{Type: EventRecorded, Transaction: tx})
	return nil
}

// Update applies a terminal status to a pending entry. Unknown and already
// resolved entries are left untouched.
func (l *Ledger) Update(hash string, patch Patch) error {
	if !patch.Status.Terminal() {
		l.logger.Warn("Rejected non-terminal ledger update",
			zap.String("tx_hash", hash),
			zap.String("status", string(patch.Status)))
		return ErrInvalidTransition
	}

	l.mu.Lock()
	cur := l.current.Load()
	i, ok := cur.index[hash]
	if !ok {
		l.mu.Unlock()
		l.logger.Warn("Update for unknown transaction ignored", zap.String("tx_hash", hash))
		return ErrNotFound
	}
	if cur.txs[i].Status.Terminal() {
		l.mu.Unlock()
		l.logger.Warn("Update for resolved transaction ignored",
			zap.String("tx_hash", hash),
			zap.String("status", string(cur.txs[i].Status)))
		return ErrAlreadyResolved
	}

	next := cur.clone()
	resolvedAt := l.now()
	tx := next.txs[i]
	tx.Status = patch.Status
	tx.Error = patch.Error
	tx.ResolvedAt = &resolvedAt
	next.txs[i] = tx
	next.pending--
	l.current.Store(next)
	l.mu.Unlock()

	metrics.PendingTransactions.Set(float64(next.pending))
	l.logger.Debug("Transaction resolved",
		zap.String("tx_hash", hash),
		zap.String("status", string(tx.Status)))
	l.publish(Event{Type: EventUpdated, Transaction: tx})
	return nil
}

// List returns all entries, newest submission first
func (l *Ledger) List() []Transaction {
	txs := slices.Clone(l.current.Load().txs)
	slices.Reverse(txs)
	return txs
}

// Get returns the entry for hash
func (l *Ledger) Get(hash string) (Transaction, bool) {
	cur := l.current.Load()
	i, ok := cur.index[hash]
	if !ok {
		return Transaction{}, false
	}
	return cur.txs[i], true
}

// Pending returns the pending entries, newest first
func (l *Ledger) Pending() []Transaction {
	var out []Transaction
	txs := l.current.Load().txs
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Status == StatusPending {
			out = append(out, txs[i])
		}
	}
	return out
}

// PendingCount returns the number of entries with status pending
func (l *Ledger) PendingCount() int {
	return l.current.Load().pending
}

// Prune drops resolved entries submitted before now minus the retention
// window and returns how many were removed.
func (l *Ledger) Prune(now time.Time) int {
	horizon := now.Add(-l.cfg.Retention)

	l.mu.Lock()
	cur := l.current.Load()
	next := &state{index: make(map[string]int, len(cur.index)), pending: cur.pending}
	var pruned []Transaction
	for _, tx := range cur.txs {
		if tx.Status.Terminal() && tx.SubmittedAt.Before(horizon) {
			pruned = append(pruned, tx)
			continue
		}
		next.index[tx.Hash] = len(next.txs)
		next.txs = append(next.txs, tx)
	}
	if len(pruned) == 0 {
		l.mu.Unlock()
		return 0
	}
	l.current.Store(next)
	l.mu.Unlock()

	for _, tx := range pruned {
		l.publish(Event{Type: EventPruned, Transaction: tx})
	}
	l.logger.Info("Pruned resolved transactions", zap.Int("count", len(pruned)))
	return len(pruned)
}

// Remove drops the entry for hash regardless of its status
func (l *Ledger) Remove(hash string) error {
	l.mu.Lock()
	cur := l.current.Load()
	i, ok := cur.index[hash]
	if !ok {
		l.mu.Unlock()
		return ErrNotFound
	}

	tx := cur.txs[i]
	next := &state{
		txs:     slices.Delete(slices.Clone(cur.txs), i, i+1),
		index:   make(map[string]int, len(cur.index)-1),
		pending: cur.pending,
	}
	for j, t := range next.txs {
		next.index[t.Hash] = j
	}
	if tx.Status == StatusPending {
		next.pending--
	}
	l.current.Store(next)
	l.mu.Unlock()

	metrics.PendingTransactions.Set(float64(next.pending))
	l.logger.Info("Transaction removed",
		zap.String("tx_hash", hash),
		zap.String("status", string(tx.Status)))
	l.publish(Event{Type: EventRemoved, Transaction: tx})
	return nil
}

// Run prunes the ledger on the configured interval until ctx is canceled
func (l *Ledger) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune(l.now())
		}
	}
}

// Subscribe registers a listener for ledger changes. Events are dropped for
// subscribers whose buffer is full. The returned func unsubscribes.
func (l *Ledger) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subMu.Lock()
			delete(l.subs, id)
			l.subMu.Unlock()
			close(ch)
		})
	}
}

func (l *Ledger) publish(ev Event) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			l.logger.Warn("Ledger subscriber is lagging, event dropped",
				zap.String("tx_hash", ev.Transaction.Hash),
				zap.String("event", string(ev.Type)))
		}
	}
}
