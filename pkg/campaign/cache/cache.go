// Package cache is the process-wide store of campaign records fetched from chain.
package cache

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/internal/metrics"
	"github.com/chainsafe/crowdfund-client/pkg/campaign"
)

// Store persists campaign snapshots between sessions
type Store interface {
	LoadCampaigns(ctx context.Context) ([]campaign.Campaign, error)
	SaveCampaigns(ctx context.Context, campaigns []campaign.Campaign) error
}

type snapshot struct {
	byID     map[uint64]campaign.Campaign
	selected *uint64
}

// Cache holds immutable snapshots of the campaign set. Every mutation builds
// a new snapshot so readers never observe a half-applied change.
type Cache struct {
	maxEntries int
	logger     *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	// version counts writes; written holds the version of the last write per id.
	// Both are guarded by mu.
	version uint64
	written map[uint64]uint64
}

// New creates an empty cache. maxEntries bounds what Persist writes; zero means unbounded.
func New(maxEntries int, logger *zap.Logger) *Cache {
	c := &Cache{maxEntries: maxEntries, logger: logger, written: map[uint64]uint64{}}
	c.current.Store(&snapshot{byID: map[uint64]campaign.Campaign{}})
	return c
}

func (c *Cache) store(next *snapshot) {
	c.current.Store(next)
	metrics.CachedCampaigns.Set(float64(len(next.byID)))
}

// SetAll replaces the full set, typically after a bulk refresh. The selection
// is kept if its id is still present and cached deadlines are never changed.
func (c *Cache) SetAll(campaigns []campaign.Campaign) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace(campaigns, c.version)
}

// Version returns the current write version. Pass it to SetAllSince to
// protect writes made after this point.
func (c *Cache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// SetAllSince is SetAll for a bulk read that started at version since.
// Entries written after since are newer than the bulk read and are kept as is.
func (c *Cache) SetAllSince(campaigns []campaign.Campaign, since uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace(campaigns, since)
}

// replace must be called with mu held
func (c *Cache) replace(campaigns []campaign.Campaign, since uint64) {
	cur := c.current.Load()
	c.version++

	next := &snapshot{byID: make(map[uint64]campaign.Campaign, len(campaigns))}
	written := make(map[uint64]uint64, len(campaigns))
	for id, v := range c.written {
		if v > since {
			next.byID[id] = cur.byID[id]
			written[id] = v
		}
	}
	kept := len(written)

	for _, cp := range campaigns {
		if _, newer := written[cp.ID]; newer {
			continue
		}
		next.byID[cp.ID] = c.keepDeadline(cur, cp).Clone()
		written[cp.ID] = c.version
	}
	if kept > 0 {
		c.logger.Debug("Kept campaigns written during bulk refresh", zap.Int("count", kept))
	}

	if sel := cur.selected; sel != nil {
		if _, ok := next.byID[*sel]; ok {
			next.selected = sel
		}
	}
	c.written = written
	c.store(next)
}

// keepDeadline returns cp with the deadline already cached for its id, if any
func (c *Cache) keepDeadline(cur *snapshot, cp campaign.Campaign) campaign.Campaign {
	old, ok := cur.byID[cp.ID]
	if !ok || old.Deadline == 0 || old.Deadline == cp.Deadline {
		return cp
	}
	c.logger.Warn("Campaign deadline changed on chain read, keeping cached value",
		zap.Uint64("campaign_id", cp.ID),
		zap.Int64("cached", old.Deadline),
		zap.Int64("read", cp.Deadline))
	cp.Deadline = old.Deadline
	return cp
}

// Upsert inserts or replaces a campaign by id
func (c *Cache) Upsert(cp campaign.Campaign) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	next := &snapshot{byID: maps.Clone(cur.byID), selected: cur.selected}
	next.byID[cp.ID] = c.keepDeadline(cur, cp).Clone()
	c.version++
	c.written[cp.ID] = c.version
	c.store(next)
}

// Patch merges p into the campaign with id. It reports false and changes
// nothing when the id is absent.
func (c *Cache) Patch(id uint64, p campaign.Partial) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	old, ok := cur.byID[id]
	if !ok {
		return false
	}

	next := &snapshot{byID: maps.Clone(cur.byID), selected: cur.selected}
	next.byID[id] = p.Apply(old)
	c.version++
	c.written[id] = c.version
	c.store(next)
	return true
}

// GetByID returns a copy of the campaign with id
func (c *Cache) GetByID(id uint64) (campaign.Campaign, bool) {
	cp, ok := c.current.Load().byID[id]
	if !ok {
		return campaign.Campaign{}, false
	}
	return cp.Clone(), true
}

// Select lazily yields the campaigns matching pred in ascending id order.
// The snapshot is taken when Select is called; later writes are not observed.
func (c *Cache) Select(pred func(campaign.Campaign) bool) iter.Seq[campaign.Campaign] {
	snap := c.current.Load()
	ids := slices.Sorted(maps.Keys(snap.byID))

	return func(yield func(campaign.Campaign) bool) {
		for _, id := range ids {
			cp := snap.byID[id]
			if pred != nil && !pred(cp) {
				continue
			}
			if !yield(cp.Clone()) {
				return
			}
		}
	}
}

// All returns every cached campaign in ascending id order
func (c *Cache) All() []campaign.Campaign {
	return slices.Collect(c.Select(nil))
}

// Len returns the number of cached campaigns
func (c *Cache) Len() int {
	return len(c.current.Load().byID)
}

// SelectCampaign points the selection at id. It reports false and clears the
// selection when the id is absent.
func (c *Cache) SelectCampaign(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	next := &snapshot{byID: cur.byID}
	_, ok := cur.byID[id]
	if ok {
		next.selected = &id
	}
	c.current.Store(next)
	return ok
}

// Selected returns the currently selected campaign. It always reflects the
// latest Patch or Upsert of that id because it is resolved through the same map.
func (c *Cache) Selected() (campaign.Campaign, bool) {
	snap := c.current.Load()
	if snap.selected == nil {
		return campaign.Campaign{}, false
	}
	cp, ok := snap.byID[*snap.selected]
	if !ok {
		return campaign.Campaign{}, false
	}
	return cp.Clone(), true
}

// Restore replaces the cache content with the persisted snapshot
func (c *Cache) Restore(ctx context.Context, store Store) error {
	campaigns, err := store.LoadCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("load campaigns: %w", err)
	}
	c.SetAll(campaigns)
	c.logger.Info("Restored campaign cache", zap.Int("count", len(campaigns)))
	return nil
}

// Persist writes the cache to store. When more than maxEntries campaigns are
// cached only the newest ids are written.
func (c *Cache) Persist(ctx context.Context, store Store) error {
	all := c.All()
	if c.maxEntries > 0 && len(all) > c.maxEntries {
		c.logger.Info("Evicting oldest campaigns from persisted snapshot",
			zap.Int("cached", len(all)),
			zap.Int("max_entries", c.maxEntries))
		all = all[len(all)-c.maxEntries:]
	}

	if err := store.SaveCampaigns(ctx, all); err != nil {
		return fmt.Errorf("save campaigns: %w", err)
	}
	c.logger.Info("Persisted campaign cache", zap.Int("count", len(all)))
	return nil
}
