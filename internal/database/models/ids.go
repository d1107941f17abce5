package models

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/robalyx/reciprocal/internal/database/dbretry"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/pkg/utils"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"
)

// UpsertChunkSize is the number of ids written per statement.
const UpsertChunkSize = 1000

// UserIDModel handles the friend and follower id sets.
type UserIDModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUserID creates a new user id model instance.
func NewUserID(db *bun.DB, logger *zap.Logger) *UserIDModel {
	return &UserIDModel{
		db:     db,
		logger: logger.Named("db_user_ids"),
	}
}

// PutUserIDs records ids as present at confirmedAt. Existing rows keep the
// later of their stored and the new confirmation time, so confirmed_at never
// moves backwards. Rows are never deleted.
func (m *UserIDModel) PutUserIDs(
	ctx context.Context, kind enum.RelationKind, ids []int64, confirmedAt time.Time,
) error {
	if len(ids) == 0 {
		return nil
	}

	// A chunk may not touch the same row twice
	ids = utils.UniqueIDs(ids)
	ts := confirmedAt.Unix()

	for chunk := range slices.Chunk(ids, UpsertChunkSize) {
		err := dbretry.NoResult(ctx, func(ctx context.Context) error {
			_, err := m.db.NewRaw(`
				INSERT INTO ? AS t (id, confirmed_at, created_at)
				SELECT u.id, ?, ? FROM UNNEST(?::bigint[]) AS u(id)
				ON CONFLICT (id) DO UPDATE
				SET confirmed_at = GREATEST(t.confirmed_at, EXCLUDED.confirmed_at)
			`, bun.Ident(kind.Table()), ts, ts, pgdialect.Array(chunk)).Exec(ctx)

			return err
		})
		if err != nil {
			return fmt.Errorf("failed to upsert %s ids: %w", kind, err)
		}
	}

	m.logger.Debug("Upserted user ids",
		zap.String("kind", kind.String()),
		zap.Int("count", len(ids)),
		zap.Int64("confirmedAt", ts))

	return nil
}

// GetUserIDs returns the ids of the given kind confirmed strictly after confirmedAfter.
func (m *UserIDModel) GetUserIDs(
	ctx context.Context, kind enum.RelationKind, confirmedAfter time.Time,
) ([]int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]int64, error) {
		var ids []int64

		err := m.db.NewSelect().
			Table(kind.Table()).
			Column("id").
			Where("confirmed_at > ?", confirmedAfter.Unix()).
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s ids: %w", kind, err)
		}

		return ids, nil
	})
}

// GetUserIDsWithoutProfile returns up to limit ids of either kind confirmed
// after confirmedAfter that have no cached profile.
func (m *UserIDModel) GetUserIDsWithoutProfile(
	ctx context.Context, confirmedAfter time.Time, limit int,
) ([]int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]int64, error) {
		var ids []int64

		ts := confirmedAfter.Unix()

		err := m.db.NewRaw(`
			SELECT ids.id FROM (
				SELECT id FROM friends_ids WHERE confirmed_at > ?
				UNION
				SELECT id FROM followers_ids WHERE confirmed_at > ?
			) AS ids
			WHERE NOT EXISTS (SELECT 1 FROM profiles p WHERE p.id = ids.id)
			LIMIT ?
		`, ts, ts, limit).Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get ids without profile: %w", err)
		}

		return ids, nil
	})
}
