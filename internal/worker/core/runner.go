package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/robalyx/reciprocal/pkg/utils"
	"go.uber.org/zap"
)

// Task is one pass of a worker. The Runner calls RunOnce repeatedly and
// never overlaps two passes of the same task.
type Task interface {
	Name() string
	RunOnce(ctx context.Context) error
	// Interval is the sleep after a successful pass.
	Interval() time.Duration
	// ErrorBackoff is the sleep after a failed pass.
	ErrorBackoff() time.Duration
}

// StateKind is the phase of a runner.
type StateKind int

const (
	// StateIdle means the last pass succeeded and the runner waits for Until.
	StateIdle StateKind = iota
	// StateRunning means a pass is in progress.
	StateRunning
	// StateBackoff means the last pass failed and the runner waits for Until.
	StateBackoff
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// State is the observable state of a runner.
type State struct {
	Kind  StateKind
	Until time.Time // zero while running or before the first pass
}

// Runner drives a Task in a poll, act, pace loop.
type Runner struct {
	task     Task
	clock    clockwork.Clock
	logger   *zap.Logger
	reporter *StatusReporter

	mu         sync.Mutex
	state      State
	iterations int64
	lastErr    error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithReporter publishes the runner state through a status reporter.
func WithReporter(reporter *StatusReporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// NewRunner creates a runner for the task.
func NewRunner(task Task, clock clockwork.Clock, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		task:   task,
		clock:  clock,
		logger: logger.Named(task.Name()),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// State returns the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Iterations returns the number of completed passes.
func (r *Runner) Iterations() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.iterations
}

// LastError returns the error of the last pass, if any.
func (r *Runner) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastErr
}

// Run loops until ctx is cancelled. Failed passes are logged and followed
// by the task's error backoff; they never stop the loop.
func (r *Runner) Run(ctx context.Context) {
	if r.reporter != nil {
		r.logger.Info("Worker started", zap.String("workerID", r.reporter.GetWorkerID()))
		r.reporter.Start(ctx)
		defer r.reporter.Stop()
	} else {
		r.logger.Info("Worker started")
	}

	for {
		if utils.ContextGuardWithLog(ctx, r.logger, "Context cancelled, stopping "+r.task.Name()) {
			return
		}

		next := r.Step(ctx)

		result := utils.ContextSleepUntil(ctx, r.clock, next.Until)
		if result == utils.SleepCancelled {
			r.logger.Info("Context cancelled during sleep, stopping " + r.task.Name())
			return
		}
	}
}

// Step runs one pass and returns the state the runner sleeps in afterwards.
func (r *Runner) Step(ctx context.Context) State {
	r.setState(State{Kind: StateRunning}, nil, false)

	start := r.clock.Now()
	err := r.runOnce(ctx)
	elapsed := r.clock.Since(start)

	metrics.WorkerIterations.WithLabelValues(r.task.Name(), metrics.Outcome(err)).Inc()

	var next State
	if err != nil {
		next = State{Kind: StateBackoff, Until: r.clock.Now().Add(r.task.ErrorBackoff())}

		r.logger.Error("Worker pass failed",
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
			zap.Duration("backoff", r.task.ErrorBackoff()))
	} else {
		next = State{Kind: StateIdle, Until: r.clock.Now().Add(r.task.Interval())}

		r.logger.Debug("Worker pass completed", zap.Duration("elapsed", elapsed))
	}

	r.setState(next, err, true)

	return next
}

// runOnce calls the task and turns a panic into an error.
func (r *Runner) runOnce(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Worker pass panicked", zap.Any("panic", rec), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()

	return r.task.RunOnce(ctx)
}

func (r *Runner) setState(state State, err error, finished bool) {
	r.mu.Lock()
	r.state = state

	if finished {
		r.iterations++
		r.lastErr = err
	}

	iterations := r.iterations
	lastErr := r.lastErr
	r.mu.Unlock()

	metrics.WorkerState.WithLabelValues(r.task.Name()).Set(float64(state.Kind))

	if r.reporter != nil {
		r.reporter.Update(state, iterations, lastErr)
	}
}
