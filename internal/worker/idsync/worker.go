// Package idsync ingests the friend or follower id list page by page.
package idsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"go.uber.org/zap"
)

// Worker fetches one page of ids per pass and upserts it with the current
// time as confirmation. The cursor is kept in memory only, so a restart
// begins a new full pass.
type Worker struct {
	deps   *core.Deps
	kind   enum.RelationKind
	cursor int64
	logger *zap.Logger
}

// New creates an id synchronizer for one relation kind.
func New(deps *core.Deps, kind enum.RelationKind, logger *zap.Logger) *Worker {
	w := &Worker{
		deps:   deps,
		kind:   kind,
		cursor: social.CursorStart,
	}
	w.logger = logger.Named(w.Name())

	return w
}

// Name implements core.Task.
func (w *Worker) Name() string {
	return "id_sync_" + strings.ToLower(w.kind.String())
}

// Interval implements core.Task.
func (w *Worker) Interval() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.IDSync)
}

// ErrorBackoff implements core.Task.
func (w *Worker) ErrorBackoff() time.Duration {
	return config.Seconds(w.deps.Config.Intervals.IDSyncBackoff)
}

// Cursor returns the cursor of the next page.
func (w *Worker) Cursor() int64 {
	return w.cursor
}

// RunOnce implements core.Task. On error the cursor is left unchanged so
// the same page is fetched again.
func (w *Worker) RunOnce(ctx context.Context) error {
	page, err := social.Call(ctx, w.deps.Caller, social.BlockUntilReset, "fetch_ids",
		func(ctx context.Context) (*social.IDPage, error) {
			return w.deps.API.FetchIDs(ctx, w.kind, w.cursor)
		})
	if err != nil {
		return fmt.Errorf("failed to fetch %s ids at cursor %d: %w", w.kind, w.cursor, err)
	}

	if err := w.deps.Store.UserIDs().PutUserIDs(ctx, w.kind, page.IDs, w.deps.Clock.Now()); err != nil {
		return fmt.Errorf("failed to store %s ids: %w", w.kind, err)
	}

	metrics.IDsSynced.WithLabelValues(w.kind.String()).Add(float64(len(page.IDs)))

	w.logger.Info("Fetched ids",
		zap.Int64("cursor", w.cursor),
		zap.Int("fetched", len(page.IDs)),
		zap.Int64("nextCursor", page.NextCursor))

	if page.Done() {
		w.logger.Info("Completed full pass, restarting from the first page")
		w.cursor = social.CursorStart

		return nil
	}

	w.cursor = page.NextCursor

	return nil
}
