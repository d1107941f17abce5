package models

import (
	"context"
	"fmt"

	"github.com/robalyx/reciprocal/internal/database/dbretry"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ProfileModel handles the profile cache.
type ProfileModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewProfile creates a new profile model instance.
func NewProfile(db *bun.DB, logger *zap.Logger) *ProfileModel {
	return &ProfileModel{
		db:     db,
		logger: logger.Named("db_profile"),
	}
}

// GetProfiles returns the cached profiles for ids, keyed by id.
// Ids without a cached profile are absent from the map.
func (m *ProfileModel) GetProfiles(ctx context.Context, ids []int64) (map[int64]*types.Profile, error) {
	if len(ids) == 0 {
		return map[int64]*types.Profile{}, nil
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (map[int64]*types.Profile, error) {
		var profiles []*types.Profile

		err := m.db.NewSelect().
			Model(&profiles).
			Where("id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get profiles: %w", err)
		}

		result := make(map[int64]*types.Profile, len(profiles))
		for _, profile := range profiles {
			result[profile.ID] = profile
		}

		return result, nil
	})
}

// PutProfiles inserts or refreshes cached profiles.
func (m *ProfileModel) PutProfiles(ctx context.Context, profiles []*types.Profile) error {
	if len(profiles) == 0 {
		return nil
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&profiles).
			On("CONFLICT (id) DO UPDATE").
			Set("screen_name = EXCLUDED.screen_name").
			Set("name = EXCLUDED.name").
			Set("friends_count = EXCLUDED.friends_count").
			Set("followers_count = EXCLUDED.followers_count").
			Set("protected = EXCLUDED.protected").
			Set("last_status_at = EXCLUDED.last_status_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert profiles: %w", err)
	}

	m.logger.Debug("Upserted profiles", zap.Int("count", len(profiles)))

	return nil
}
