// Package relation turns id set differences into queued follow actions and
// remove candidates.
package relation

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/diff"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"github.com/robalyx/reciprocal/pkg/utils"
	"go.uber.org/zap"
)

// Worker classifies a random sample of each diff direction and enqueues
// the confirmed ones. It never calls follow or unfollow itself.
type Worker struct {
	deps   *core.Deps
	logger *zap.Logger
}

// New creates a relation synchronizer.
func New(deps *core.Deps, logger *zap.Logger) *Worker {
	return &Worker{
		deps:   deps,
		logger: logger.Named("relation_sync"),
	}
}

// Name implements core.Task.
func (w *Worker) Name() string { return "relation_sync" }

// Interval implements core.Task.
func (w *Worker) Interval() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.RelationSync)
}

// ErrorBackoff implements core.Task.
func (w *Worker) ErrorBackoff() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.RelationSyncBackoff)
}

// RunOnce implements core.Task.
func (w *Worker) RunOnce(ctx context.Context) error {
	result, err := diff.Both(ctx, w.deps.Store.UserIDs(), w.deps.Watermark())
	if err != nil {
		return err
	}

	w.logger.Info("Computed candidates",
		zap.Int("unremoved", len(result.FriendsOnly)),
		zap.Int("unfollowed", len(result.FollowersOnly)))

	if err := w.enqueueFollows(ctx, result.FollowersOnly); err != nil {
		return err
	}

	return w.enqueueRemoveCandidates(ctx, result.FriendsOnly)
}

// enqueueFollows pushes a follow action for every sampled follower we do
// not follow yet and have no pending request to.
func (w *Worker) enqueueFollows(ctx context.Context, followersOnly []int64) error {
	sample := utils.SampleIDs(w.deps.Rand, followersOnly, w.deps.Config.BatchSizes.RelationLookup)

	ids, err := core.Classify(ctx, w.deps.API, w.deps.Caller, social.BlockUntilReset, sample,
		social.Relation.ShouldFollow)
	if err != nil {
		return fmt.Errorf("failed to classify follow candidates: %w", err)
	}

	actions := w.deps.Store.Actions()
	for _, id := range ids {
		if _, err := actions.Push(ctx, types.Action{Type: enum.ActionTypeFollow, UserID: id}); err != nil {
			return fmt.Errorf("failed to enqueue follow of %d: %w", id, err)
		}

		metrics.QueueOps.WithLabelValues(types.ActionQueueTable, "push").Inc()
	}

	w.logger.Info("Enqueued follow actions", zap.Int("sampled", len(sample)), zap.Int("enqueued", len(ids)))

	return nil
}

// enqueueRemoveCandidates pushes every sampled, non-whitelisted friend that
// does not follow back into the confirmation queue.
func (w *Worker) enqueueRemoveCandidates(ctx context.Context, friendsOnly []int64) error {
	candidates, err := w.deps.Store.Whitelist().FilterWhitelisted(ctx, friendsOnly)
	if err != nil {
		return fmt.Errorf("failed to filter whitelist: %w", err)
	}

	sample := utils.SampleIDs(w.deps.Rand, candidates, w.deps.Config.BatchSizes.RelationLookup)

	ids, err := core.Classify(ctx, w.deps.API, w.deps.Caller, social.BlockUntilReset, sample,
		social.Relation.IsOneSided)
	if err != nil {
		return fmt.Errorf("failed to classify remove candidates: %w", err)
	}

	confirmations := w.deps.Store.RemoveCandidates()
	for _, id := range ids {
		if _, err := confirmations.Push(ctx, types.RemoveCandidate{UserID: id}); err != nil {
			return fmt.Errorf("failed to enqueue remove candidate %d: %w", id, err)
		}

		metrics.QueueOps.WithLabelValues(types.ConfirmationQueueTable, "push").Inc()
	}

	w.logger.Info("Enqueued remove candidates", zap.Int("sampled", len(sample)), zap.Int("enqueued", len(ids)))

	return nil
}
