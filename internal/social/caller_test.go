package social_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scripted returns the given errors in order, then succeeds with "ok".
func scripted(errs ...error) (func(context.Context) (string, error), *int) {
	calls := 0

	return func(context.Context) (string, error) {
		calls++
		if len(errs) > 0 {
			err := errs[0]
			errs = errs[1:]

			return "", err
		}

		return "ok", nil
	}, &calls
}

func TestCallBlockUntilResetWaitsOnClock(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	caller := social.NewCaller(clock, zap.NewNop())
	op, calls := scripted(&social.RateLimitError{Endpoint: "ids", ResetAt: clock.Now().Add(2 * time.Minute)})

	type outcome struct {
		result string
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		result, err := social.Call(t.Context(), caller, social.BlockUntilReset, "ids", op)
		done <- outcome{result, err}
	}()

	clock.BlockUntil(1)

	clock.Advance(2*time.Minute - time.Second)

	select {
	case <-done:
		t.Fatal("call returned before the reset time")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Second)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, "ok", out.result)
		assert.Equal(t, 2, *calls)
	case <-time.After(time.Second):
		t.Fatal("call did not return after the reset time")
	}
}

func TestCallBlockUntilResetWallTime(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewRealClock()
	caller := social.NewCaller(clock, zap.NewNop())
	op, calls := scripted(&social.RateLimitError{Endpoint: "lookup", ResetAt: clock.Now().Add(2 * time.Second)})

	start := time.Now()
	result, err := social.Call(t.Context(), caller, social.BlockUntilReset, "lookup", op)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, *calls)
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second-10*time.Millisecond)
}

func TestCallPastResetWaitsMinimum(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	caller := social.NewCaller(clock, zap.NewNop())
	op, calls := scripted(&social.RateLimitError{Endpoint: "ids", ResetAt: clock.Now().Add(-time.Hour)})

	done := make(chan error, 1)

	go func() {
		_, err := social.Call(t.Context(), caller, social.BlockUntilReset, "ids", op)
		done <- err
	}()

	clock.BlockUntil(1)
	assert.Equal(t, 1, *calls)

	clock.Advance(social.MinRateLimitWait)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("call did not return after the minimum wait")
	}
}

func TestCallFailFast(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	caller := social.NewCaller(clock, zap.NewNop())
	resetAt := clock.Now().Add(time.Minute)
	op, calls := scripted(&social.RateLimitError{Endpoint: "lookup", ResetAt: resetAt})

	_, err := social.Call(t.Context(), caller, social.FailFast, "lookup", op)

	require.ErrorIs(t, err, social.ErrRateLimited)

	var rateErr *social.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, resetAt, rateErr.ResetAt)
	assert.Equal(t, 1, *calls)
}

func TestCallOtherErrorsNotRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode social.WaitMode
	}{
		{name: "fail fast", mode: social.FailFast},
		{name: "block until reset", mode: social.BlockUntilReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			remote := &social.RemoteError{Endpoint: "follow", Status: 403, Body: "forbidden"}
			op, calls := scripted(remote)

			_, err := social.Call(t.Context(), social.NewCaller(clockwork.NewFakeClock(), zap.NewNop()), tt.mode, "follow", op)

			require.ErrorIs(t, err, remote)
			assert.False(t, errors.Is(err, social.ErrRateLimited))
			assert.Equal(t, 1, *calls)
		})
	}
}

func TestCallCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	caller := social.NewCaller(clock, zap.NewNop())
	op, _ := scripted(&social.RateLimitError{Endpoint: "ids", ResetAt: clock.Now().Add(time.Hour)})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() {
		_, err := social.Call(ctx, caller, social.BlockUntilReset, "ids", op)
		done <- err
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("call did not stop after cancellation")
	}
}
