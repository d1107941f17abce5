package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// StatusReporter handles automatic status reporting for workers.
type StatusReporter struct {
	monitor  *Monitor
	clock    clockwork.Clock
	status   Status
	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewStatusReporter creates a new status reporter for a worker.
func NewStatusReporter(
	client rueidis.Client, clock clockwork.Clock, workerType, subType string, logger *zap.Logger,
) *StatusReporter {
	return &StatusReporter{
		monitor: NewMonitor(client, clock, logger),
		clock:   clock,
		status: Status{
			WorkerID:   uuid.New().String(),
			WorkerType: workerType,
			SubType:    subType,
			State:      StateIdle.String(),
			IsHealthy:  true,
		},
		stopChan: make(chan struct{}),
		logger:   logger.Named("status_reporter"),
	}
}

// Start begins periodic status reporting.
func (r *StatusReporter) Start(ctx context.Context) {
	r.mu.Lock()

	if r.stopped {
		r.mu.Unlock()
		return
	}

	r.mu.Unlock()

	go func() {
		ticker := r.clock.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		r.report(ctx)

		for {
			select {
			case <-ticker.Chan():
				r.report(ctx)
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			}
		}
	}()
}

// Stop ends status reporting.
func (r *StatusReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.stopped {
		close(r.stopChan)
		r.stopped = true
	}
}

// Update records the runner state and the outcome of the last pass.
func (r *StatusReporter) Update(state State, iterations int64, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.State = state.Kind.String()
	r.status.Iterations = iterations
	r.status.IsHealthy = lastErr == nil
	r.status.LastError = ""
	r.status.Until = nil

	if lastErr != nil {
		r.status.LastError = lastErr.Error()
	}

	if !state.Until.IsZero() {
		until := state.Until
		r.status.Until = &until
	}
}

// GetWorkerID returns the unique worker ID.
func (r *StatusReporter) GetWorkerID() string {
	return r.status.WorkerID
}

func (r *StatusReporter) report(ctx context.Context) {
	r.mu.Lock()
	status := r.status
	r.mu.Unlock()

	if err := r.monitor.ReportStatus(ctx, status); err != nil {
		r.logger.Error("Failed to report status", zap.Error(err))
	}
}
