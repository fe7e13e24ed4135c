// Package persist snapshots the campaign cache, the notification queue and the
// watcher cursor between sessions, either in Postgres or in YAML files.
package persist

import (
	"context"
	"errors"

	"github.com/chainsafe/crowdfund-client/pkg/campaign"
	"github.com/chainsafe/crowdfund-client/pkg/campaign/cache"
	"github.com/chainsafe/crowdfund-client/pkg/notification"
)

// ErrNoCursor is returned when no watcher cursor was saved for the chain
var ErrNoCursor = errors.New("no watcher cursor saved")

// CursorStore keeps the last block scanned by the CampaignCreated watcher
type CursorStore interface {
	LoadCursor(ctx context.Context, chainID int64) (uint64, error)
	SaveCursor(ctx context.Context, chainID int64, block uint64) error
}

// Store is everything the service snapshots at stop and restores at start
type Store interface {
	cache.Store
	notification.Store
	CursorStore
	Close() error
}

// nopStore keeps nothing. It backs the "none" persistence driver.
type nopStore struct{}

// NewNop returns a Store that loads empty snapshots and discards saves
func NewNop() Store { return nopStore{} }

func (nopStore) LoadCampaigns(context.Context) ([]campaign.Campaign, error) { return nil, nil }

func (nopStore) SaveCampaigns(context.Context, []campaign.Campaign) error { return nil }

func (nopStore) LoadNotifications(context.Context) ([]notification.Notification, error) {
	return nil, nil
}

func (nopStore) SaveNotifications(context.Context, []notification.Notification) error { return nil }

func (nopStore) LoadCursor(context.Context, int64) (uint64, error) { return 0, ErrNoCursor }

func (nopStore) SaveCursor(context.Context, int64, uint64) error { return nil }

func (nopStore) Close() error { return nil }
