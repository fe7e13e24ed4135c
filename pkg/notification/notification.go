// Package notification implements the user-facing alert queue with read state
// and auto-expiry for transient severities.
package notification

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/internal/metrics"
)

// ErrNotFound is returned when a notification id is unknown
var ErrNotFound = errors.New("notification not found")

// Severity of a notification
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Transient reports whether notifications of this severity expire on their own
func (s Severity) Transient() bool {
	return s == SeveritySuccess || s == SeverityInfo
}

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	switch s {
	case SeveritySuccess, SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Notification is a single user-facing alert
type Notification struct {
	ID          string    `json:"id" yaml:"id"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	Title       string    `json:"title" yaml:"title"`
	Message     string    `json:"message" yaml:"message"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	Read        bool      `json:"read" yaml:"read"`
	ActionURL   string    `json:"action_url,omitempty" yaml:"action_url,omitempty"`
	ActionLabel string    `json:"action_label,omitempty" yaml:"action_label,omitempty"`
}

// Store persists the notification queue between sessions
type Store interface {
	LoadNotifications(ctx context.Context) ([]Notification, error)
	SaveNotifications(ctx context.Context, items []Notification) error
}

// Config holds notification center settings
type Config struct {
	// Expiry is how long success and info notifications live
	Expiry time.Duration `default:"10s"`
}

type state struct {
	items  []Notification // newest first
	unread int
}

// Center is the process-wide notification queue
type Center struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	current atomic.Pointer[state]
	timers  map[string]*time.Timer
	closed  bool
}

// NewCenter creates an empty notification center
func NewCenter(cfg Config, logger *zap.Logger) *Center {
	if err := defaults.Set(&cfg); err != nil {
		logger.Warn("Failed to apply notification defaults", zap.Error(err))
	}

	c := &Center{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		timers: make(map[string]*time.Timer),
	}
	c.current.Store(&state{})
	return c
}

// Push assigns an id and timestamp to n, prepends it as unread and, for
// transient severities, schedules its removal after the configured expiry.
func (c *Center) Push(n Notification) Notification {
	n.ID = uuid.NewString()
	n.CreatedAt = c.now()
	n.Read = false
	if !n.Severity.Valid() {
		n.Severity = SeverityInfo
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	items := make([]Notification, 0, len(cur.items)+1)
	items = append(items, n)
	items = append(items, cur.items...)
	c.swap(&state{items: items, unread: cur.unread + 1})

	if n.Severity.Transient() && !c.closed {
		c.arm(n.ID, c.cfg.Expiry)
	}

	c.logger.Debug("Notification pushed",
		zap.String("id", n.ID),
		zap.String("severity", string(n.Severity)),
		zap.String("title", n.Title))
	return n
}

// MarkRead flips the read flag of id. The unread count only changes if the
// entry was unread.
func (c *Center) MarkRead(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	i := indexOf(cur.items, id)
	if i < 0 {
		return ErrNotFound
	}
	if cur.items[i].Read {
		return nil
	}

	items := slices.Clone(cur.items)
	items[i].Read = true
	c.swap(&state{items: items, unread: max(0, cur.unread-1)})
	return nil
}

// MarkAllRead marks every notification read
func (c *Center) MarkAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := slices.Clone(c.current.Load().items)
	for i := range items {
		items[i].Read = true
	}
	c.swap(&state{items: items})
}

// Remove deletes id and cancels its pending expiry
func (c *Center) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.remove(id) {
		return ErrNotFound
	}
	return nil
}

// ClearAll drops every notification
func (c *Center) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.swap(&state{})
}

// List returns the notifications, newest first
func (c *Center) List() []Notification {
	return slices.Clone(c.current.Load().items)
}

// UnreadCount returns the number of unread notifications
func (c *Center) UnreadCount() int {
	return c.current.Load().unread
}

// Restore loads a persisted queue, replacing the current one. Transient
// entries get their remaining lifetime re-armed; already expired ones are dropped.
func (c *Center) Restore(ctx context.Context, store Store) error {
	items, err := store.LoadNotifications(ctx)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}

	now := c.now()
	kept := make([]Notification, 0, len(items))
	unread := 0
	for _, n := range items {
		if n.ID == "" || indexOf(kept, n.ID) >= 0 {
			continue
		}
		if n.Severity.Transient() {
			remaining := c.cfg.Expiry - now.Sub(n.CreatedAt)
			if remaining <= 0 {
				continue
			}
			c.arm(n.ID, remaining)
		}
		if !n.Read {
			unread++
		}
		kept = append(kept, n)
	}
	slices.SortStableFunc(kept, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	c.swap(&state{items: kept, unread: unread})

	c.logger.Info("Restored notifications", zap.Int("count", len(kept)), zap.Int("unread", unread))
	return nil
}

// Persist saves the current queue
func (c *Center) Persist(ctx context.Context, store Store) error {
	items := c.List()
	if err := store.SaveNotifications(ctx, items); err != nil {
		return fmt.Errorf("save notifications: %w", err)
	}
	c.logger.Info("Persisted notifications", zap.Int("count", len(items)))
	return nil
}

// Close stops all expiry timers. Notifications pushed afterwards never expire.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

// arm must be called with mu held
func (c *Center) arm(id string, after time.Duration) {
	c.timers[id] = time.AfterFunc(after, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if _, ok := c.timers[id]; !ok {
			return
		}
		if c.remove(id) {
			c.logger.Debug("Notification expired", zap.String("id", id))
		}
	})
}

// remove must be called with mu held
func (c *Center) remove(id string) bool {
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}

	cur := c.current.Load()
	i := indexOf(cur.items, id)
	if i < 0 {
		return false
	}

	unread := cur.unread
	if !cur.items[i].Read {
		unread = max(0, unread-1)
	}
	c.swap(&state{items: slices.Delete(slices.Clone(cur.items), i, i+1), unread: unread})
	return true
}

func (c *Center) swap(next *state) {
	c.current.Store(next)
	metrics.UnreadNotifications.Set(float64(next.unread))
}

func indexOf(items []Notification, id string) int {
	return slices.IndexFunc(items, func(n Notification) bool { return n.ID == id })
}
