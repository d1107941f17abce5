// Package profile fills the profile cache for ids that have no profile yet.
package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"github.com/robalyx/reciprocal/pkg/utils"
	"go.uber.org/zap"
)

// Worker fetches a random batch of missing profiles per pass. When fewer
// than a full batch are missing it fetches a single one, so the tail of the
// backlog trickles in instead of spending a request per pass on few ids.
type Worker struct {
	deps   *core.Deps
	logger *zap.Logger
}

// New creates a profile synchronizer.
func New(deps *core.Deps, logger *zap.Logger) *Worker {
	return &Worker{
		deps:   deps,
		logger: logger.Named("profile_sync"),
	}
}

// Name implements core.Task.
func (w *Worker) Name() string { return "profile_sync" }

// Interval implements core.Task.
func (w *Worker) Interval() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.ProfileSync)
}

// ErrorBackoff implements core.Task.
func (w *Worker) ErrorBackoff() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.ProfileSyncBackoff)
}

// RunOnce implements core.Task.
func (w *Worker) RunOnce(ctx context.Context) error {
	ids, err := w.deps.Store.UserIDs().GetUserIDsWithoutProfile(ctx, w.deps.Watermark(),
		w.deps.Config.BatchSizes.ProfileScan)
	if err != nil {
		return fmt.Errorf("failed to read ids without profile: %w", err)
	}

	if len(ids) == 0 {
		w.logger.Debug("All profiles are cached")
		return nil
	}

	batch := w.deps.Config.BatchSizes.ProfileFetch
	if len(ids) <= batch {
		batch = 1
	}

	sample := utils.SampleIDs(w.deps.Rand, ids, batch)

	profiles, err := social.Call(ctx, w.deps.Caller, social.BlockUntilReset, "fetch_profiles",
		func(ctx context.Context) ([]*types.Profile, error) {
			return w.deps.API.FetchProfiles(ctx, sample)
		})
	if err != nil {
		return fmt.Errorf("failed to fetch profiles: %w", err)
	}

	if err := w.deps.Store.Profiles().PutProfiles(ctx, profiles); err != nil {
		return fmt.Errorf("failed to store profiles: %w", err)
	}

	w.logger.Info("Stored profiles",
		zap.Int("missing", len(ids)),
		zap.Int("requested", len(sample)),
		zap.Int("stored", len(profiles)))

	return nil
}
