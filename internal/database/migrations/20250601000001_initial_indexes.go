package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Watermark reads filter on confirmed_at
			CREATE INDEX IF NOT EXISTS idx_friends_ids_confirmed_at
			ON friends_ids (confirmed_at);

			CREATE INDEX IF NOT EXISTS idx_followers_ids_confirmed_at
			ON followers_ids (confirmed_at);

			-- Profile sync looks for stale or missing profiles
			CREATE INDEX IF NOT EXISTS idx_profiles_updated_at
			ON profiles (updated_at);
		`).Exec(ctx)

		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_friends_ids_confirmed_at;
			DROP INDEX IF EXISTS idx_followers_ids_confirmed_at;
			DROP INDEX IF EXISTS idx_profiles_updated_at;
		`).Exec(ctx)

		return err
	})
}
