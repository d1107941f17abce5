package profile_test

import (
	"testing"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/worker/profile"
	"github.com/robalyx/reciprocal/internal/worker/workertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBatchSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		missing   int
		wantBatch int
	}{
		{name: "large backlog fetches a full batch", missing: 250, wantBatch: 100},
		{name: "small backlog trickles", missing: 40, wantBatch: 1},
		{name: "exactly one batch trickles", missing: 100, wantBatch: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := workertest.New()
			ctx := t.Context()

			ids := make([]int64, tt.missing)
			for i := range ids {
				ids[i] = int64(i + 1)
				env.API.SetProfile(&types.Profile{ID: ids[i]})
			}

			require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFollower, ids, env.Clock.Now()))

			w := profile.New(env.Deps, zap.NewNop())
			require.NoError(t, w.RunOnce(ctx))

			fetches := env.API.Fetches()
			require.Len(t, fetches, 1)
			assert.Len(t, fetches[0], tt.wantBatch)

			remaining, err := env.Store.GetUserIDsWithoutProfile(ctx, env.Clock.Now().AddDate(0, 0, -1), 1000)
			require.NoError(t, err)
			assert.Len(t, remaining, tt.missing-tt.wantBatch)
		})
	}
}

func TestNoMissingProfiles(t *testing.T) {
	t.Parallel()

	env := workertest.New()
	ctx := t.Context()

	require.NoError(t, env.Store.PutUserIDs(ctx, enum.RelationKindFriend, []int64{1}, env.Clock.Now()))
	require.NoError(t, env.Store.PutProfiles(ctx, []*types.Profile{{ID: 1}}))

	w := profile.New(env.Deps, zap.NewNop())
	require.NoError(t, w.RunOnce(ctx))

	assert.Zero(t, env.API.Calls())
}
