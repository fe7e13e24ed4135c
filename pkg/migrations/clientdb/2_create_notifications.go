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
		log.Println("creating notifications table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.NotificationDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.NotificationDao{}, "seq")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping notifications table...")
		return mghelper.DropTables(ctx, db, &dao.NotificationDao{})
	})
}
