package database

import (
	"context"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/queue"
)

// UserIDStore persists the friend and follower id sets.
type UserIDStore interface {
	// PutUserIDs records ids as present at confirmedAt. confirmed_at of an
	// existing id never decreases.
	PutUserIDs(ctx context.Context, kind enum.RelationKind, ids []int64, confirmedAt time.Time) error
	// GetUserIDs returns ids confirmed strictly after confirmedAfter.
	GetUserIDs(ctx context.Context, kind enum.RelationKind, confirmedAfter time.Time) ([]int64, error)
	// GetUserIDsWithoutProfile returns up to limit recently confirmed ids
	// of either kind that have no cached profile.
	GetUserIDsWithoutProfile(ctx context.Context, confirmedAfter time.Time, limit int) ([]int64, error)
}

// ProfileStore is a read-through profile cache.
type ProfileStore interface {
	GetProfiles(ctx context.Context, ids []int64) (map[int64]*types.Profile, error)
	PutProfiles(ctx context.Context, profiles []*types.Profile) error
}

// WhitelistStore tracks accounts that are never remove candidates.
type WhitelistStore interface {
	AddToWhitelist(ctx context.Context, userID int64) error
	IsWhitelisted(ctx context.Context, userID int64) (bool, error)
	// FilterWhitelisted returns the ids that are not whitelisted.
	FilterWhitelisted(ctx context.Context, ids []int64) ([]int64, error)
}

// Store is the persistence capability handed to workers and handlers.
type Store interface {
	UserIDs() UserIDStore
	Profiles() ProfileStore
	Whitelist() WhitelistStore
	Actions() queue.Queue[types.Action]
	RemoveCandidates() queue.Queue[types.RemoveCandidate]
}
