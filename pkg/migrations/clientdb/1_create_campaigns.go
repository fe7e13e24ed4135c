package clientdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/crowdfund-client/pkg/persist/dao"
	mghelper "github.com/chainsafe/crowdfund-client/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating campaigns table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.CampaignDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.CampaignDao{}, "creator", "category")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping campaigns table...")
		return mghelper.DropTables(ctx, db, &dao.CampaignDao{})
	})
}
