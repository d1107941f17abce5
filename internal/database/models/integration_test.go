package models_test

import (
	"database/sql"
	"os"
	"testing"

	"github.com/robalyx/reciprocal/internal/database/migrations"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// testDSNEnv names the variable holding a DSN for a disposable Postgres database.
const testDSNEnv = "RECIPROCAL_TEST_POSTGRES"

// setupDB connects to the test database, applies migrations and empties
// every table. Tests using it share one database and must not run in parallel.
func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set, skipping Postgres test", testDSNEnv)
	}

	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := t.Context()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	_, err = db.NewRaw(`TRUNCATE friends_ids, followers_ids, profiles, whitelist,
		action_queue, confirmation_queue RESTART IDENTITY`).Exec(ctx)
	require.NoError(t, err)

	return db
}
