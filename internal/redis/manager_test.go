package redis_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/robalyx/reciprocal/internal/redis"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerReusesClients(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	manager := redis.NewManager(&config.Redis{Host: mr.Host(), Port: mr.Server().Addr().Port}, zap.NewNop())
	t.Cleanup(manager.Close)

	first, err := manager.GetClient(redis.WorkerStatusDBIndex)
	require.NoError(t, err)

	second, err := manager.GetClient(redis.WorkerStatusDBIndex)
	require.NoError(t, err)
	assert.Same(t, first, second)

	ctx := t.Context()
	require.NoError(t, first.Do(ctx, first.B().Set().Key("k").Value("v").Build()).Error())

	mr.Select(redis.WorkerStatusDBIndex)
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	manager.Close()
	manager.Close()
}
