package listener_test

import (
	"testing"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/diff"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/listener"
	"github.com/robalyx/reciprocal/internal/worker/relation"
	"github.com/robalyx/reciprocal/internal/worker/workertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFollowBackPipeline(t *testing.T) {
	t.Parallel()

	env := workertest.New()
	ctx := t.Context()

	// Follower 42 was confirmed at T and is not a friend.
	confirmedAt := env.Clock.Now()
	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFollower, []int64{42}, confirmedAt))
	env.API.SetRelation(social.Relation{ID: 42, IsFollower: true})

	ids, err := diff.Difference(ctx, env.Store, confirmedAt.Add(-time.Hour), diff.FollowersMinusFriends)
	require.NoError(t, err)
	require.Equal(t, []int64{42}, ids)

	require.NoError(t, relation.New(env.Deps, zap.NewNop()).RunOnce(ctx))
	assert.Equal(t, []types.Action{{Type: enum.ActionTypeFollow, UserID: 42}}, env.Store.ActionQueue().Payloads())

	executor := listener.New(env.Deps, zap.NewNop())
	require.NoError(t, executor.RunOnce(ctx))
	require.NoError(t, executor.RunOnce(ctx))

	assert.Equal(t, []int64{42}, env.API.Followed())
	assert.Empty(t, env.Store.ActionQueue().Payloads())
}
