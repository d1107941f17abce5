package diff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/database/memory"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    []int64
		exclude []int64
		want    []int64
	}{
		{name: "empty", want: []int64{}},
		{name: "nothing excluded", from: []int64{3, 1, 2}, want: []int64{1, 2, 3}},
		{name: "all excluded", from: []int64{1, 2}, exclude: []int64{2, 1, 9}, want: []int64{}},
		{name: "duplicates collapse", from: []int64{5, 5, 4, 4, 1}, exclude: []int64{1}, want: []int64{4, 5}},
		{name: "partial overlap", from: []int64{10, 20, 30}, exclude: []int64{20, 40}, want: []int64{10, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, diff.Compute(tt.from, tt.exclude))
		})
	}
}

func TestDifferenceRespectsWatermark(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	store := memory.NewStore(clock)

	now := clock.Now()
	watermark := now.Add(-time.Hour)

	// Friends 1,2,3 are current; 4 was last seen before the watermark.
	require.NoError(t, store.PutUserIDs(ctx, enum.RelationKindFriend, []int64{1, 2, 3}, now))
	require.NoError(t, store.PutUserIDs(ctx, enum.RelationKindFriend, []int64{4}, now.Add(-2*time.Hour)))
	// Followers 2,5 are current; 3 is stale so it no longer counts as a follower.
	require.NoError(t, store.PutUserIDs(ctx, enum.RelationKindFollower, []int64{2, 5}, now))
	require.NoError(t, store.PutUserIDs(ctx, enum.RelationKindFollower, []int64{3}, now.Add(-3*time.Hour)))

	friendsOnly, err := diff.Difference(ctx, store, watermark, diff.FriendsMinusFollowers)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, friendsOnly)

	followersOnly, err := diff.Difference(ctx, store, watermark, diff.FollowersMinusFriends)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, followersOnly)
}

func TestDifferenceIsSymmetric(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	clock := clockwork.NewFakeClock()
	a := memory.NewStore(clock)
	b := memory.NewStore(clock)

	friends := []int64{1, 2, 3, 7}
	followers := []int64{3, 4, 5, 7}

	require.NoError(t, a.PutUserIDs(ctx, enum.RelationKindFriend, friends, clock.Now()))
	require.NoError(t, a.PutUserIDs(ctx, enum.RelationKindFollower, followers, clock.Now()))

	// Same sets with the roles swapped.
	require.NoError(t, b.PutUserIDs(ctx, enum.RelationKindFriend, followers, clock.Now()))
	require.NoError(t, b.PutUserIDs(ctx, enum.RelationKindFollower, friends, clock.Now()))

	watermark := clock.Now().Add(-time.Hour)

	ra, err := diff.Both(ctx, a, watermark)
	require.NoError(t, err)

	rb, err := diff.Both(ctx, b, watermark)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, ra.FriendsOnly)
	assert.Equal(t, []int64{4, 5}, ra.FollowersOnly)
	assert.Equal(t, ra.FriendsOnly, rb.FollowersOnly)
	assert.Equal(t, ra.FollowersOnly, rb.FriendsOnly)
}

type failingReader struct {
	err error
}

func (f failingReader) GetUserIDs(context.Context, enum.RelationKind, time.Time) ([]int64, error) {
	return nil, f.err
}

func TestDifferenceReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	_, err := diff.Difference(t.Context(), failingReader{err: boom}, time.Now(), diff.FollowersMinusFriends)
	require.ErrorIs(t, err, boom)
}
