package relation_test

import (
	"errors"
	"testing"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/relation"
	"github.com/robalyx/reciprocal/internal/worker/workertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnqueuesFollowCandidates(t *testing.T) {
	t.Parallel()

	env := workertest.New()
	ctx := t.Context()
	seen := env.Clock.Now()

	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFollower, []int64{1, 2, 3, 4}, seen))
	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFriend, []int64{4}, seen))

	env.API.SetRelation(social.Relation{ID: 1, IsFollower: true})
	env.API.SetRelation(social.Relation{ID: 2, IsFollower: true, IsPending: true})
	env.API.SetRelation(social.Relation{ID: 3, IsFollower: true, IsFriend: true})

	w := relation.New(env.Deps, zap.NewNop())
	require.NoError(t, w.RunOnce(ctx))

	payloads := env.Store.ActionQueue().Payloads()
	assert.Equal(t, []types.Action{{Type: enum.ActionTypeFollow, UserID: 1}}, payloads)

	n, err := env.Store.CandidateQueue().Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnqueuesRemoveCandidatesSkippingWhitelist(t *testing.T) {
	t.Parallel()

	env := workertest.New()
	ctx := t.Context()
	seen := env.Clock.Now()

	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFriend, []int64{10, 11, 12}, seen))
	require.NoError(t, env.Store.AddToWhitelist(ctx, 11))

	env.API.SetRelation(social.Relation{ID: 10, IsFriend: true})
	env.API.SetRelation(social.Relation{ID: 11, IsFriend: true})
	env.API.SetRelation(social.Relation{ID: 12, IsFriend: true, IsFollower: true})

	w := relation.New(env.Deps, zap.NewNop())
	require.NoError(t, w.RunOnce(ctx))

	assert.Equal(t, []types.RemoveCandidate{{UserID: 10}}, env.Store.CandidateQueue().Payloads())

	for _, batch := range env.API.Lookups() {
		assert.NotContains(t, batch, int64(11))
	}
}

func TestIgnoresStaleIDs(t *testing.T) {
	t.Parallel()

	env := workertest.New()
	ctx := t.Context()

	// Neither id was re-observed by the last hour of ingestion passes.
	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFollower, []int64{5}, env.Clock.Now().Add(-time.Hour)))
	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFriend, []int64{6}, env.Clock.Now().Add(-3*time.Hour)))

	w := relation.New(env.Deps, zap.NewNop())
	require.NoError(t, w.RunOnce(ctx))

	assert.Empty(t, env.API.Lookups())
	assert.Empty(t, env.Store.ActionQueue().Payloads())
}

func TestSamplesBoundedBatch(t *testing.T) {
	t.Parallel()

	env := workertest.New()
	ctx := t.Context()

	followers := make([]int64, 250)
	for i := range followers {
		followers[i] = int64(i + 1)
		env.API.SetRelation(social.Relation{ID: int64(i + 1), IsFollower: true})
	}

	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFollower, followers, env.Clock.Now()))
	env.Clock.Advance(time.Minute)

	w := relation.New(env.Deps, zap.NewNop())
	require.NoError(t, w.RunOnce(ctx))

	lookups := env.API.Lookups()
	require.Len(t, lookups, 1)
	assert.Len(t, lookups[0], 100)
	assert.Len(t, env.Store.ActionQueue().Payloads(), 100)
}

func TestLookupErrorFailsPass(t *testing.T) {
	t.Parallel()

	env := workertest.New()
	ctx := t.Context()

	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFollower, []int64{1}, env.Clock.Now()))

	boom := errors.New("lookup failed")
	env.API.PushError(boom)

	w := relation.New(env.Deps, zap.NewNop())
	require.ErrorIs(t, w.RunOnce(ctx), boom)
	assert.Empty(t, env.Store.ActionQueue().Payloads())
}
