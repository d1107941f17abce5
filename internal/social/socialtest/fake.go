// Package socialtest provides an in-memory social.API for tests.
package socialtest

import (
	"context"
	"slices"
	"sync"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/social"
)

// API is a scripted social.API. Relations and profiles are looked up from
// the maps, id pages are served from Pages, and every action is recorded.
type API struct {
	mu sync.Mutex

	Pages     map[enum.RelationKind]map[int64]*social.IDPage
	Relations map[int64]social.Relation
	Profiles  map[int64]*types.Profile

	// Errors are returned once, in order, before any call succeeds.
	Errors []error

	followed   []int64
	unfollowed []int64
	lookups    [][]int64
	fetches    [][]int64
	calls      int
}

var _ social.API = (*API)(nil)

// New creates an empty fake.
func New() *API {
	return &API{
		Pages: map[enum.RelationKind]map[int64]*social.IDPage{
			enum.RelationKindFriend:   {},
			enum.RelationKindFollower: {},
		},
		Relations: make(map[int64]social.Relation),
		Profiles:  make(map[int64]*types.Profile),
	}
}

// SetRelation records the relation for an id.
func (a *API) SetRelation(r social.Relation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Relations[r.ID] = r
}

// SetProfile records the profile for an id.
func (a *API) SetProfile(p *types.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Profiles[p.ID] = p
}

// SetPage records the page served for a cursor.
func (a *API) SetPage(kind enum.RelationKind, cursor int64, page *social.IDPage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Pages[kind][cursor] = page
}

// PushError queues an error for the next call.
func (a *API) PushError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Errors = append(a.Errors, err)
}

// Followed returns the ids passed to Follow.
func (a *API) Followed() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Clone(a.followed)
}

// Unfollowed returns the ids passed to Unfollow.
func (a *API) Unfollowed() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Clone(a.unfollowed)
}

// Lookups returns the id batches passed to LookupRelations.
func (a *API) Lookups() [][]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Clone(a.lookups)
}

// Fetches returns the id batches passed to FetchProfiles.
func (a *API) Fetches() [][]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Clone(a.fetches)
}

// Calls returns the total number of calls, failed ones included.
func (a *API) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.calls
}

// next must be called with the lock held.
func (a *API) next() error {
	a.calls++

	if len(a.Errors) == 0 {
		return nil
	}

	err := a.Errors[0]
	a.Errors = a.Errors[1:]

	return err
}

// FetchIDs implements social.API. Unknown cursors return an empty last page.
func (a *API) FetchIDs(_ context.Context, kind enum.RelationKind, cursor int64) (*social.IDPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.next(); err != nil {
		return nil, err
	}

	page, ok := a.Pages[kind][cursor]
	if !ok {
		return &social.IDPage{NextCursor: social.CursorEnd}, nil
	}

	return &social.IDPage{IDs: slices.Clone(page.IDs), NextCursor: page.NextCursor}, nil
}

// LookupRelations implements social.API. Unknown ids have no relation.
func (a *API) LookupRelations(_ context.Context, ids []int64) ([]social.Relation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.next(); err != nil {
		return nil, err
	}

	if len(ids) > social.MaxLookupBatch {
		return nil, social.ErrTooManyIDs
	}

	a.lookups = append(a.lookups, slices.Clone(ids))

	relations := make([]social.Relation, 0, len(ids))
	for _, id := range ids {
		r, ok := a.Relations[id]
		if !ok {
			r = social.Relation{ID: id}
		}

		relations = append(relations, r)
	}

	return relations, nil
}

// FetchProfiles implements social.API. Unknown ids are omitted.
func (a *API) FetchProfiles(_ context.Context, ids []int64) ([]*types.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.next(); err != nil {
		return nil, err
	}

	if len(ids) > social.MaxLookupBatch {
		return nil, social.ErrTooManyIDs
	}

	a.fetches = append(a.fetches, slices.Clone(ids))

	profiles := make([]*types.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := a.Profiles[id]; ok {
			profile := *p
			profiles = append(profiles, &profile)
		}
	}

	return profiles, nil
}

// Follow implements social.API.
func (a *API) Follow(_ context.Context, id int64) (*types.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.next(); err != nil {
		return nil, err
	}

	a.followed = append(a.followed, id)

	r := a.Relations[id]
	r.ID = id
	r.IsFriend = true
	a.Relations[id] = r

	return a.profile(id), nil
}

// Unfollow implements social.API.
func (a *API) Unfollow(_ context.Context, id int64) (*types.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.next(); err != nil {
		return nil, err
	}

	a.unfollowed = append(a.unfollowed, id)

	r := a.Relations[id]
	r.ID = id
	r.IsFriend = false
	a.Relations[id] = r

	return a.profile(id), nil
}

func (a *API) profile(id int64) *types.Profile {
	if p, ok := a.Profiles[id]; ok {
		profile := *p
		return &profile
	}

	return &types.Profile{ID: id}
}
