package core_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTask struct {
	runs     atomic.Int32
	passes   chan struct{}
	run      func(n int32) error
	interval time.Duration
	backoff  time.Duration
}

func newFakeTask(run func(n int32) error) *fakeTask {
	return &fakeTask{
		passes:   make(chan struct{}, 16),
		run:      run,
		interval: 10 * time.Second,
		backoff:  time.Minute,
	}
}

func (f *fakeTask) Name() string { return "fake" }
func (f *fakeTask) Interval() time.Duration { return f.interval }
func (f *fakeTask) ErrorBackoff() time.Duration { return f.backoff }

func (f *fakeTask) RunOnce(context.Context) error {
	n := f.runs.Add(1)
	defer func() { f.passes <- struct{}{} }()

	return f.run(n)
}

func waitPass(t *testing.T, task *fakeTask) {
	t.Helper()

	select {
	case <-task.passes:
	case <-time.After(time.Second):
		t.Fatal("worker pass did not run")
	}
}

func TestStepStates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	tests := []struct {
		name    string
		run     func(int32) error
		want    core.StateKind
		after   time.Duration
		wantErr error
	}{
		{name: "success goes idle", run: func(int32) error { return nil }, want: core.StateIdle, after: 10 * time.Second},
		{name: "error backs off", run: func(int32) error { return boom }, want: core.StateBackoff, after: time.Minute, wantErr: boom},
		{name: "panic backs off", run: func(int32) error { panic("bad") }, want: core.StateBackoff, after: time.Minute, wantErr: core.ErrPanic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := clockwork.NewFakeClock()
			runner := core.NewRunner(newFakeTask(tt.run), clock, zap.NewNop())

			state := runner.Step(t.Context())

			assert.Equal(t, tt.want, state.Kind)
			assert.Equal(t, clock.Now().Add(tt.after), state.Until)
			assert.Equal(t, state, runner.State())
			assert.Equal(t, int64(1), runner.Iterations())

			if tt.wantErr != nil {
				require.ErrorIs(t, runner.LastError(), tt.wantErr)
			} else {
				require.NoError(t, runner.LastError())
			}
		})
	}
}

func TestRunSleepsBetweenPasses(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	task := newFakeTask(func(n int32) error {
		if n == 2 {
			return errors.New("second pass fails")
		}

		return nil
	})
	runner := core.NewRunner(task, clock, zap.NewNop())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})

	go func() {
		runner.Run(ctx)
		close(done)
	}()

	waitPass(t, task)
	clock.BlockUntil(1)
	assert.Equal(t, core.StateIdle, runner.State().Kind)

	// Not yet due.
	clock.Advance(task.interval - time.Second)
	assert.Equal(t, int32(1), task.runs.Load())

	clock.Advance(time.Second)
	waitPass(t, task)
	clock.BlockUntil(1)
	assert.Equal(t, core.StateBackoff, runner.State().Kind)

	clock.Advance(task.backoff)
	waitPass(t, task)
	clock.BlockUntil(1)
	assert.Equal(t, core.StateIdle, runner.State().Kind)
	assert.Equal(t, int32(3), task.runs.Load())

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	task := newFakeTask(func(int32) error { return nil })
	runner := core.NewRunner(task, clockwork.NewFakeClock(), zap.NewNop())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	runner.Run(ctx)
	assert.Zero(t, task.runs.Load())
}
