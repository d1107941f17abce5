// Package remover unfollows inactive friends that do not follow back.
package remover

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

// Worker acts directly, without the confirmation queue.
type Worker struct {
	deps   *core.Deps
	logger *zap.Logger
}

// New creates an invalid user remover.
func New(deps *core.Deps, logger *zap.Logger) *Worker {
	return &Worker{
		deps:   deps,
		logger: logger.Named("invalid_user_remover"),
	}
}

// Name implements core.Task.
func (w *Worker) Name() string { return "invalid_user_remover" }

// Interval implements core.Task.
func (w *Worker) Interval() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.Remover)
}

// ErrorBackoff implements core.Task.
func (w *Worker) ErrorBackoff() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.RemoverBackoff)
}

// RunOnce implements core.Task.
func (w *Worker) RunOnce(ctx context.Context) error {
	candidates, err := w.inactiveCandidates(ctx)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		w.logger.Info("No inactive friends to remove")
		return nil
	}

	// Relations may have changed since the id sets were ingested.
	ids, err := core.Classify(ctx, w.deps.API, w.deps.Caller, social.BlockUntilReset, candidates,
		social.Relation.IsOneSided)
	if err != nil {
		return fmt.Errorf("failed to re-verify candidates: %w", err)
	}

	w.logger.Info("Removing inactive friends", zap.Int("candidates", len(candidates)), zap.Int("verified", len(ids)))

	pacing := config.Seconds(w.deps.Config.Pacing.Unfollow)

	for _, id := range ids {
		profile, err := social.Call(ctx, w.deps.Caller, social.BlockUntilReset, "unfollow",
			func(ctx context.Context) (*types.Profile, error) {
				return w.deps.API.Unfollow(ctx, id)
			})

		metrics.Actions.WithLabelValues("Unfollow", metrics.Outcome(err)).Inc()

		if err != nil {
			return fmt.Errorf("failed to unfollow %d: %w", id, err)
		}

		w.logger.Info("Unfollowed user", zap.Int64("userID", id), zap.String("screenName", profile.ScreenName))

		if !utils.PacingSleep(ctx, w.deps.Clock, pacing, w.logger, w.Name()) {
			return ctx.Err()
		}
	}

	return nil
}

// inactiveCandidates returns up to RemoveUsers non-whitelisted friends that
// do not follow back and whose profile is inactive.
func (w *Worker) inactiveCandidates(ctx context.Context) ([]int64, error) {
	nonFollowers, err := diff.Difference(ctx, w.deps.Store.UserIDs(), w.deps.Watermark(), diff.FriendsMinusFollowers)
	if err != nil {
		return nil, err
	}

	nonFollowers, err = w.deps.Store.Whitelist().FilterWhitelisted(ctx, nonFollowers)
	if err != nil {
		return nil, fmt.Errorf("failed to filter whitelist: %w", err)
	}

	profiles, err := w.deps.FetchMissingProfiles(ctx, nonFollowers, w.deps.Config.BatchSizes.ProfileFetch)
	if err != nil {
		return nil, err
	}

	cutoff := w.deps.Clock.Now().AddDate(0, 0, -w.deps.Config.ThresholdLimits.InactiveDays)
	limit := w.deps.Config.BatchSizes.RemoveUsers
	inactive := make([]int64, 0, limit)

	for _, id := range nonFollowers {
		if len(inactive) >= limit {
			break
		}

		if profile, ok := profiles[id]; ok && profile.IsInactive(cutoff) {
			inactive = append(inactive, id)
		}
	}

	return inactive, nil
}
