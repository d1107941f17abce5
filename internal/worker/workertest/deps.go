// Package workertest wires workers to in-memory fakes.
package workertest

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/database/memory"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/social/socialtest"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"go.uber.org/zap"
)

// Epoch is the fake clock start used by worker tests.
var Epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // -

// Env bundles a Deps with handles on its fakes.
type Env struct {
	Deps  *core.Deps
	Store *memory.Store
	API   *socialtest.API
	Clock clockwork.FakeClock
}

// New creates deps backed by a memory store, a fake API and a fake clock,
// with default worker configuration.
func New() *Env {
	clock := clockwork.NewFakeClockAt(Epoch)
	store := memory.NewStore(clock)
	api := socialtest.New()
	cfg := config.Default().Worker

	return &Env{
		Deps: &core.Deps{
			Store:  store,
			API:    api,
			Caller: social.NewCaller(clock, zap.NewNop()),
			Clock:  clock,
			Config: &cfg,
			Rand:   core.NewRand(cfg.RelationSeed),
		},
		Store: store,
		API:   api,
		Clock: clock,
	}
}
