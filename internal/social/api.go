// Package social talks to the external relationship API: id pagination,
// relationship lookup, profile lookup and the follow/unfollow actions.
package social

import (
	"context"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
)

const (
	// CursorStart is the cursor that begins a full pagination pass.
	CursorStart int64 = -1
	// CursorEnd is the continuation cursor returned with the last page.
	CursorEnd int64 = 0
	// IDPageSize is the number of ids requested per page.
	IDPageSize = 5000
	// MaxLookupBatch is the maximum number of ids per lookup request.
	MaxLookupBatch = 100
)

// IDPage is one page of relation ids.
type IDPage struct {
	IDs        []int64
	NextCursor int64
}

// Done reports whether this is the last page of the pass.
func (p *IDPage) Done() bool {
	return p.NextCursor == CursorEnd
}

// Relation is the relationship between the operated account and another one.
type Relation struct {
	ID         int64
	IsFriend   bool // The operated account follows this account
	IsFollower bool // This account follows the operated account
	IsPending  bool // A follow request from the operated account is pending
}

// ShouldFollow reports whether the account follows us and we have neither
// followed it back nor requested to.
func (r Relation) ShouldFollow() bool {
	return r.IsFollower && !r.IsFriend && !r.IsPending
}

// IsOneSided reports whether we follow the account and it does not follow back.
func (r Relation) IsOneSided() bool {
	return r.IsFriend && !r.IsFollower
}

// API is the external relationship API. Every method may return a
// *RateLimitError.
type API interface {
	// FetchIDs returns one page of friend or follower ids starting at cursor.
	FetchIDs(ctx context.Context, kind enum.RelationKind, cursor int64) (*IDPage, error)
	// LookupRelations returns the relationship for up to MaxLookupBatch ids.
	LookupRelations(ctx context.Context, ids []int64) ([]Relation, error)
	// FetchProfiles returns the profiles of up to MaxLookupBatch ids.
	FetchProfiles(ctx context.Context, ids []int64) ([]*types.Profile, error)
	// Follow follows the account and returns its profile.
	Follow(ctx context.Context, id int64) (*types.Profile, error)
	// Unfollow unfollows the account and returns its profile.
	Unfollow(ctx context.Context, id int64) (*types.Profile, error)
}
