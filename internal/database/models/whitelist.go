package models

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/reciprocal/internal/database/dbretry"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/pkg/utils"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// WhitelistModel handles accounts that must never be unfollowed.
type WhitelistModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewWhitelist creates a new whitelist model instance.
func NewWhitelist(db *bun.DB, logger *zap.Logger) *WhitelistModel {
	return &WhitelistModel{
		db:     db,
		logger: logger.Named("db_whitelist"),
	}
}

// AddToWhitelist whitelists an account. Adding an existing entry is a no-op.
func (m *WhitelistModel) AddToWhitelist(ctx context.Context, userID int64) error {
	entry := &types.WhitelistEntry{
		ID:        userID,
		CreatedAt: time.Now(),
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(entry).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to whitelist user %d: %w", userID, err)
	}

	m.logger.Info("Whitelisted user", zap.Int64("userID", userID))

	return nil
}

// IsWhitelisted reports whether the account is whitelisted.
func (m *WhitelistModel) IsWhitelisted(ctx context.Context, userID int64) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := m.db.NewSelect().
			Model((*types.WhitelistEntry)(nil)).
			Where("id = ?", userID).
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check whitelist for user %d: %w", userID, err)
		}

		return exists, nil
	})
}

// FilterWhitelisted returns the ids that are not whitelisted, preserving order.
func (m *WhitelistModel) FilterWhitelisted(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return ids, nil
	}

	whitelisted, err := dbretry.Operation(ctx, func(ctx context.Context) ([]int64, error) {
		var found []int64

		err := m.db.NewSelect().
			Model((*types.WhitelistEntry)(nil)).
			Column("id").
			Where("id IN (?)", bun.In(ids)).
			Scan(ctx, &found)
		if err != nil {
			return nil, fmt.Errorf("failed to filter whitelisted users: %w", err)
		}

		return found, nil
	})
	if err != nil {
		return nil, err
	}

	return utils.ExcludeIDs(ids, whitelisted), nil
}
