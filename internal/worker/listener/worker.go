// Package listener executes queued actions one at a time.
package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/robalyx/reciprocal/internal/queue"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"go.uber.org/zap"
)

// Worker pops one action per pass. The action is removed from the queue
// before it runs, so a failed action is logged and not retried.
type Worker struct {
	deps   *core.Deps
	logger *zap.Logger
}

// New creates an action executor.
func New(deps *core.Deps, logger *zap.Logger) *Worker {
	return &Worker{
		deps:   deps,
		logger: logger.Named("message_listener"),
	}
}

// Name implements core.Task.
func (w *Worker) Name() string { return "message_listener" }

// Interval implements core.Task.
func (w *Worker) Interval() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.Listener)
}

// ErrorBackoff implements core.Task.
func (w *Worker) ErrorBackoff() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.ListenerBackoff)
}

// RunOnce implements core.Task. Only a failed dequeue is returned as an error.
func (w *Worker) RunOnce(ctx context.Context) error {
	item, err := w.deps.Store.Actions().Pop(ctx)
	if errors.Is(err, queue.ErrEmpty) {
		w.logger.Info("Action queue is empty")
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to pop action: %w", err)
	}

	metrics.QueueOps.WithLabelValues(types.ActionQueueTable, "pop").Inc()

	action := item.Payload
	logger := w.logger.With(
		zap.Int64("itemID", item.ID),
		zap.Int64("userID", action.UserID),
		zap.Stringer("type", action.Type))

	switch action.Type {
	case enum.ActionTypeFollow:
		profile, err := social.Call(ctx, w.deps.Caller, social.BlockUntilReset, "follow",
			func(ctx context.Context) (*types.Profile, error) {
				return w.deps.API.Follow(ctx, action.UserID)
			})

		metrics.Actions.WithLabelValues(action.Type.String(), metrics.Outcome(err)).Inc()

		if err != nil {
			logger.Error("Failed to follow user", zap.Error(err))
			return nil
		}

		logger.Info("Followed user", zap.String("screenName", profile.ScreenName))

	case enum.ActionTypeRemove:
		logger.Warn("Remove actions are not executed from the queue")

	default:
		logger.Warn("Unknown action type")
	}

	return nil
}
