// Package memory provides an in-process database.Store used by worker and
// handler tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/database"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/queue"
)

// Store implements database.Store in memory.
type Store struct {
	mu         sync.RWMutex
	ids        map[enum.RelationKind]map[int64]*types.UserIDEntry
	profiles   map[int64]*types.Profile
	whitelist  map[int64]time.Time
	clock      clockwork.Clock
	actions    *queue.Memory[types.Action]
	candidates *queue.Memory[types.RemoveCandidate]
}

var _ database.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		ids: map[enum.RelationKind]map[int64]*types.UserIDEntry{
			enum.RelationKindFriend:   {},
			enum.RelationKindFollower: {},
		},
		profiles:   make(map[int64]*types.Profile),
		whitelist:  make(map[int64]time.Time),
		clock:      clock,
		actions:    queue.NewMemory[types.Action](clock),
		candidates: queue.NewMemory[types.RemoveCandidate](clock),
	}
}

func (s *Store) UserIDs() database.UserIDStore { return s }
func (s *Store) Profiles() database.ProfileStore { return s }
func (s *Store) Whitelist() database.WhitelistStore { return s }

func (s *Store) Actions() queue.Queue[types.Action] { return s.actions }

func (s *Store) RemoveCandidates() queue.Queue[types.RemoveCandidate] { return s.candidates }

// ActionQueue exposes the concrete action queue for assertions.
func (s *Store) ActionQueue() *queue.Memory[types.Action] { return s.actions }

// CandidateQueue exposes the concrete confirmation queue for assertions.
func (s *Store) CandidateQueue() *queue.Memory[types.RemoveCandidate] { return s.candidates }

// Entry returns a copy of the stored id entry.
func (s *Store) Entry(kind enum.RelationKind, id int64) (types.UserIDEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.ids[kind][id]
	if !ok {
		return types.UserIDEntry{}, false
	}

	return *entry, true
}

// PutUserIDs implements database.UserIDStore.
func (s *Store) PutUserIDs(ctx context.Context, kind enum.RelationKind, ids []int64, confirmedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := confirmedAt.Unix()
	set := s.ids[kind]

	for _, id := range ids {
		entry, ok := set[id]
		if !ok {
			set[id] = &types.UserIDEntry{ID: id, ConfirmedAt: ts, CreatedAt: ts}
			continue
		}

		entry.ConfirmedAt = max(entry.ConfirmedAt, ts)
	}

	return nil
}

// GetUserIDs implements database.UserIDStore.
func (s *Store) GetUserIDs(ctx context.Context, kind enum.RelationKind, confirmedAfter time.Time) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	after := confirmedAfter.Unix()
	ids := make([]int64, 0, len(s.ids[kind]))

	for id, entry := range s.ids[kind] {
		if entry.ConfirmedAt > after {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	return ids, nil
}

// GetUserIDsWithoutProfile implements database.UserIDStore.
func (s *Store) GetUserIDsWithoutProfile(ctx context.Context, confirmedAfter time.Time, limit int) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	after := confirmedAfter.Unix()
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)

	for _, set := range s.ids {
		for id, entry := range set {
			if entry.ConfirmedAt <= after {
				continue
			}

			if _, ok := s.profiles[id]; ok {
				continue
			}

			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	if len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}

// GetProfiles implements database.ProfileStore.
func (s *Store) GetProfiles(ctx context.Context, ids []int64) (map[int64]*types.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]*types.Profile, len(ids))

	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			profile := *p
			result[id] = &profile
		}
	}

	return result, nil
}

// PutProfiles implements database.ProfileStore.
func (s *Store) PutProfiles(ctx context.Context, profiles []*types.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range profiles {
		profile := *p
		s.profiles[p.ID] = &profile
	}

	return nil
}

// AddToWhitelist implements database.WhitelistStore.
func (s *Store) AddToWhitelist(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.whitelist[userID]; !ok {
		s.whitelist[userID] = s.clock.Now()
	}

	return nil
}

// IsWhitelisted implements database.WhitelistStore.
func (s *Store) IsWhitelisted(ctx context.Context, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.whitelist[userID]

	return ok, nil
}

// FilterWhitelisted implements database.WhitelistStore.
func (s *Store) FilterWhitelisted(ctx context.Context, ids []int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.DeleteFunc(slices.Clone(ids), func(id int64) bool {
		_, ok := s.whitelist[id]
		return ok
	}), nil
}
