package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		// One id set table per relation kind
		for _, kind := range enum.RelationKindValues() {
			_, err := db.NewCreateTable().
				Model((*types.UserIDEntry)(nil)).
				ModelTableExpr(kind.Table()).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %s: %w", kind.Table(), err)
			}
		}

		models := []any{
			(*types.Profile)(nil),
			(*types.WhitelistEntry)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		// Queue ids must fit the int4 key of pg_try_advisory_lock(int, int)
		for _, table := range []string{types.ActionQueueTable, types.ConfirmationQueueTable} {
			_, err := db.NewRaw(`
				CREATE TABLE IF NOT EXISTS ? (
					id SERIAL PRIMARY KEY,
					data JSONB NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT now()
				)`, bun.Ident(table)).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create queue table %s: %w", table, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		tables := []string{
			types.ConfirmationQueueTable,
			types.ActionQueueTable,
			"whitelist",
			"profiles",
		}
		for _, kind := range enum.RelationKindValues() {
			tables = append(tables, kind.Table())
		}

		for _, table := range tables {
			_, err := db.NewDropTable().
				Table(table).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %s: %w", table, err)
			}
		}

		return nil
	})
}
