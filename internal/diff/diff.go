// Package diff computes asymmetric differences between the friend and
// follower id sets.
package diff

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/sourcegraph/conc/pool"
)

// Direction selects which set is subtracted from which.
type Direction int

const (
	// FriendsMinusFollowers yields accounts we follow that do not follow back.
	FriendsMinusFollowers Direction = iota
	// FollowersMinusFriends yields accounts following us that we do not follow.
	FollowersMinusFriends
)

func (d Direction) String() string {
	switch d {
	case FriendsMinusFollowers:
		return "friends_minus_followers"
	case FollowersMinusFriends:
		return "followers_minus_friends"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// IDReader reads an id set filtered by confirmation time.
type IDReader interface {
	GetUserIDs(ctx context.Context, kind enum.RelationKind, confirmedAfter time.Time) ([]int64, error)
}

// Result holds both directions computed from one read of the sets.
type Result struct {
	FriendsOnly   []int64
	FollowersOnly []int64
}

// Compute returns the unique ids of from that are absent from exclude,
// sorted ascending.
func Compute(from, exclude []int64) []int64 {
	excluded := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	result := make([]int64, 0, len(from))
	for _, id := range from {
		if _, ok := excluded[id]; ok {
			continue
		}

		excluded[id] = struct{}{}
		result = append(result, id)
	}

	slices.Sort(result)

	return result
}

// Difference reads both sets confirmed after the watermark and returns the
// difference in the given direction.
func Difference(ctx context.Context, store IDReader, confirmedAfter time.Time, dir Direction) ([]int64, error) {
	result, err := Both(ctx, store, confirmedAfter)
	if err != nil {
		return nil, err
	}

	if dir == FriendsMinusFollowers {
		return result.FriendsOnly, nil
	}

	return result.FollowersOnly, nil
}

// Both reads the two sets in parallel and returns both directions.
func Both(ctx context.Context, store IDReader, confirmedAfter time.Time) (*Result, error) {
	var friends, followers []int64

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()

	p.Go(func(ctx context.Context) error {
		ids, err := store.GetUserIDs(ctx, enum.RelationKindFriend, confirmedAfter)
		if err != nil {
			return fmt.Errorf("failed to read friend ids: %w", err)
		}

		friends = ids

		return nil
	})

	p.Go(func(ctx context.Context) error {
		ids, err := store.GetUserIDs(ctx, enum.RelationKindFollower, confirmedAfter)
		if err != nil {
			return fmt.Errorf("failed to read follower ids: %w", err)
		}

		followers = ids

		return nil
	})

	if err := p.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		FriendsOnly:   Compute(friends, followers),
		FollowersOnly: Compute(followers, friends),
	}, nil
}
