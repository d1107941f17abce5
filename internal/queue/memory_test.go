package queue_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPushPop(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	q := queue.NewMemory[int64](clockwork.NewFakeClock())

	id, err := q.Push(ctx, 42)
	require.NoError(t, err)

	item, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, item.ID)
	assert.Equal(t, int64(42), item.Payload)

	_, err = q.Pop(ctx)
	require.ErrorIs(t, err, queue.ErrEmpty)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryConcurrentClaimSingleWinner(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	q := queue.NewMemory[int64](clockwork.NewFakeClock())

	_, err := q.Push(ctx, 7)
	require.NoError(t, err)

	const consumers = 32

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		empties atomic.Int32
	)

	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			item, err := q.Pop(ctx)
			switch {
			case err == nil:
				assert.Equal(t, int64(7), item.Payload)
				winners.Add(1)
			case assert.ErrorIs(t, err, queue.ErrEmpty):
				empties.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(consumers-1), empties.Load())
}

func TestMemoryClaimHidesLeasedItem(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	q := queue.NewMemory[string](clockwork.NewFakeClock())

	_, err := q.Push(ctx, "a")
	require.NoError(t, err)
	_, err = q.Push(ctx, "b")
	require.NoError(t, err)

	first, err := q.Claim(ctx)
	require.NoError(t, err)

	second, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Item().ID, second.Item().ID)

	_, err = q.Claim(ctx)
	require.ErrorIs(t, err, queue.ErrEmpty)

	// Leased items still count as stored
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryAbandonRedelivers(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	q := queue.NewMemory[int64](clockwork.NewFakeClock())

	id, err := q.Push(ctx, 99)
	require.NoError(t, err)

	// Consumer dies between claim and commit
	lease, err := q.Claim(ctx)
	require.NoError(t, err)
	lease.Abandon()

	item, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, item.ID)
	assert.Equal(t, int64(99), item.Payload)
}

func TestMemoryLeaseClosed(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	q := queue.NewMemory[int64](clockwork.NewFakeClock())

	_, err := q.Push(ctx, 1)
	require.NoError(t, err)

	lease, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, lease.Commit(ctx))
	require.ErrorIs(t, lease.Commit(ctx), queue.ErrLeaseClosed)

	// Abandon after commit must not resurrect the item
	lease.Abandon()

	_, err = q.Pop(ctx)
	require.ErrorIs(t, err, queue.ErrEmpty)
}

func TestDrain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pushed int
		limit  int
		want   int
	}{
		{name: "fewer items than limit", pushed: 3, limit: 10, want: 3},
		{name: "more items than limit", pushed: 10, limit: 4, want: 4},
		{name: "empty queue", pushed: 0, limit: 5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			q := queue.NewMemory[int](clockwork.NewFakeClock())

			for i := range tt.pushed {
				_, err := q.Push(ctx, i)
				require.NoError(t, err)
			}

			items, err := queue.Drain[int](ctx, q, tt.limit)
			require.NoError(t, err)
			assert.Len(t, items, tt.want)

			left, err := q.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.pushed-tt.want, left)
		})
	}
}
