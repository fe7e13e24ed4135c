package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/pkg/campaign"
	"github.com/chainsafe/crowdfund-client/pkg/notification"
	"github.com/chainsafe/crowdfund-client/pkg/persist/dao"
)

type pgStore struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPGStore returns a Store backed by the campaigns, notifications and
// chain_state tables. The schema is managed by cmd/crowdfund/migrate.
func NewPGStore(db *bun.DB, logger *zap.Logger) Store {
	return &pgStore{db: db, logger: logger}
}

func (s *pgStore) LoadCampaigns(ctx context.Context) ([]campaign.Campaign, error) {
	var rows []dao.CampaignDao
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select campaigns: %w", err)
	}

	out := make([]campaign.Campaign, 0, len(rows))
	for i := range rows {
		c, err := rows[i].ToCampaign()
		if err != nil {
			s.logger.Warn("Skipping unreadable campaign row", zap.Uint64("campaign_id", rows[i].ID), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveCampaigns replaces the stored snapshot in a single transaction
func (s *pgStore) SaveCampaigns(ctx context.Context, campaigns []campaign.Campaign) error {
	rows := make([]*dao.CampaignDao, 0, len(campaigns))
	now := time.Now().UTC()
	for _, c := range campaigns {
		row := dao.FromCampaign(c)
		row.UpdatedAt = now
		rows = append(rows, row)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*dao.CampaignDao)(nil)).Where("1=1").Exec(ctx); err != nil {
			return fmt.Errorf("clear campaigns: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert campaigns: %w", err)
		}
		return nil
	})
}

func (s *pgStore) LoadNotifications(ctx context.Context) ([]notification.Notification, error) {
	var rows []dao.NotificationDao
	if err := s.db.NewSelect().Model(&rows).Order("seq ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}

	out := make([]notification.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToNotification())
	}
	return out, nil
}

// SaveNotifications replaces the stored queue in a single transaction
func (s *pgStore) SaveNotifications(ctx context.Context, items []notification.Notification) error {
	rows := make([]*dao.NotificationDao, 0, len(items))
	for i, n := range items {
		rows = append(rows, dao.FromNotification(i, n))
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*dao.NotificationDao)(nil)).Where("1=1").Exec(ctx); err != nil {
			return fmt.Errorf("clear notifications: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert notifications: %w", err)
		}
		return nil
	})
}

func (s *pgStore) LoadCursor(ctx context.Context, chainID int64) (uint64, error) {
	row := new(dao.ChainStateDao)
	err := s.db.NewSelect().Model(row).Where("chain_id = ?", chainID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoCursor
	}
	if err != nil {
		return 0, fmt.Errorf("select chain state: %w", err)
	}
	return row.LastBlock, nil
}

func (s *pgStore) SaveCursor(ctx context.Context, chainID int64, block uint64) error {
	row := &dao.ChainStateDao{ChainID: chainID, LastBlock: block, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (chain_id) DO UPDATE").
		Set("last_block = EXCLUDED.last_block").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert chain state: %w", err)
	}
	return nil
}

func (s *pgStore) Close() error {
	return s.db.Close()
}
