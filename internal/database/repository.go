package database

import (
	"github.com/robalyx/reciprocal/internal/database/models"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	userID     *models.UserIDModel
	profile    *models.ProfileModel
	whitelist  *models.WhitelistModel
	actions    *models.QueueModel[types.Action]
	candidates *models.QueueModel[types.RemoveCandidate]
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		userID:     models.NewUserID(db, logger),
		profile:    models.NewProfile(db, logger),
		whitelist:  models.NewWhitelist(db, logger),
		actions:    models.NewQueue[types.Action](db, types.ActionQueueTable, logger),
		candidates: models.NewQueue[types.RemoveCandidate](db, types.ConfirmationQueueTable, logger),
	}
}

// UserID returns the id set model.
func (r *Repository) UserID() *models.UserIDModel {
	return r.userID
}

// Profile returns the profile cache model.
func (r *Repository) Profile() *models.ProfileModel {
	return r.profile
}

// Whitelist returns the whitelist model.
func (r *Repository) Whitelist() *models.WhitelistModel {
	return r.whitelist
}

// Actions returns the action queue.
func (r *Repository) Actions() *models.QueueModel[types.Action] {
	return r.actions
}

// RemoveCandidates returns the confirmation queue.
func (r *Repository) RemoveCandidates() *models.QueueModel[types.RemoveCandidate] {
	return r.candidates
}
