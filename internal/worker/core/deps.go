package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/database"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
)

// ErrPanic wraps a panic recovered from a worker pass.
var ErrPanic = errors.New("worker pass panicked")

// Deps are the capabilities handed to every worker.
type Deps struct {
	Store  database.Store
	API    social.API
	Caller *social.Caller
	Clock  clockwork.Clock
	Config *config.WorkerConfig
	Rand   *rand.Rand
}

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0)) //nolint:gosec // sampling, not security
}

// Watermark returns the confirmation cutoff for diffs at the current time.
func (d *Deps) Watermark() time.Time {
	return d.Clock.Now().Add(-config.Seconds(d.Config.ThresholdLimits.WatermarkAge))
}

// FetchMissingProfiles is ReadThroughProfiles over the worker's capabilities,
// waiting out rate limits.
func (d *Deps) FetchMissingProfiles(ctx context.Context, ids []int64, limit int) (map[int64]*types.Profile, error) {
	return ReadThroughProfiles(ctx, d.Store.Profiles(), d.API, d.Caller, social.BlockUntilReset, ids, limit)
}

// ReadThroughProfiles returns the cached profiles of ids and fetches up to
// limit missing ones from the API, storing them. Ids beyond the limit that
// are not cached are absent from the result.
func ReadThroughProfiles(
	ctx context.Context, store database.ProfileStore, api social.API, caller *social.Caller, mode social.WaitMode,
	ids []int64, limit int,
) (map[int64]*types.Profile, error) {
	profiles, err := store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached profiles: %w", err)
	}

	missing := make([]int64, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(missing) >= limit {
			break
		}

		if _, ok := profiles[id]; !ok {
			missing = append(missing, id)
		}
	}

	for batch := range slices.Chunk(missing, social.MaxLookupBatch) {
		fetched, err := social.Call(ctx, caller, mode, "fetch_profiles",
			func(ctx context.Context) ([]*types.Profile, error) {
				return api.FetchProfiles(ctx, batch)
			})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch profiles: %w", err)
		}

		if err := store.PutProfiles(ctx, fetched); err != nil {
			return nil, fmt.Errorf("failed to store profiles: %w", err)
		}

		for _, p := range fetched {
			profiles[p.ID] = p
		}
	}

	return profiles, nil
}
