package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/pkg/migrations/clientdb"
	"github.com/chainsafe/crowdfund-client/pkg/pgutil"
)

func TestPGStore(t *testing.T) {
	db := pgutil.SetupTestDB(t)
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, clientdb.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	exerciseStore(t, NewPGStore(db, zap.NewNop()))
	pgutil.AssertRowCount(t, db, "chain_state", 2)
}
