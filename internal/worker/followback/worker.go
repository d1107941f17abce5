// Package followback follows back followers directly, without the action
// queue. The queue-based path through the relation worker and the message
// listener is the one deployed by default.
package followback

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/diff"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"github.com/robalyx/reciprocal/pkg/utils"
	"go.uber.org/zap"
)

// Worker follows every follower we do not follow yet, pausing between follows.
type Worker struct {
	deps   *core.Deps
	logger *zap.Logger
}

// New creates a follow-back worker.
func New(deps *core.Deps, logger *zap.Logger) *Worker {
	return &Worker{
		deps:   deps,
		logger: logger.Named("follow_back"),
	}
}

// Name implements core.Task.
func (w *Worker) Name() string { return "follow_back" }

// Interval implements core.Task.
func (w *Worker) Interval() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.FollowBack)
}

// ErrorBackoff implements core.Task.
func (w *Worker) ErrorBackoff() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.FollowBackBackoff)
}

// RunOnce implements core.Task.
func (w *Worker) RunOnce(ctx context.Context) error {
	w.logger.Info("Loading data")

	shouldFollow, err := diff.Difference(ctx, w.deps.Store.UserIDs(), w.deps.Watermark(), diff.FollowersMinusFriends)
	if err != nil {
		return err
	}

	shouldFollow = utils.SampleIDs(w.deps.Rand, shouldFollow, len(shouldFollow))

	profiles, err := w.deps.FetchMissingProfiles(ctx, shouldFollow, w.deps.Config.BatchSizes.ProfileFetch)
	if err != nil {
		return err
	}

	w.logger.Info("Following users", zap.Int("count", len(profiles)))

	pacing := config.Seconds(w.deps.Config.Pacing.FollowBack)

	for _, id := range shouldFollow {
		profile, ok := profiles[id]
		if !ok {
			continue
		}

		_, err := social.Call(ctx, w.deps.Caller, social.BlockUntilReset, "follow",
			func(ctx context.Context) (*types.Profile, error) {
				return w.deps.API.Follow(ctx, id)
			})

		metrics.Actions.WithLabelValues("Follow", metrics.Outcome(err)).Inc()

		if err != nil {
			return fmt.Errorf("failed to follow %d: %w", id, err)
		}

		w.logger.Info("Followed user", zap.Int64("userID", id), zap.String("screenName", profile.ScreenName))

		if !utils.PacingSleep(ctx, w.deps.Clock, pacing, w.logger, w.Name()) {
			return ctx.Err()
		}
	}

	return nil
}
