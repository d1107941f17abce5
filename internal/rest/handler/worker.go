package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonboulle/clockwork"
	restTypes "github.com/robalyx/reciprocal/internal/rest/types"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// StatusLister reads worker heartbeats.
type StatusLister interface {
	GetAllStatuses(ctx context.Context) ([]core.Status, error)
}

// WorkerHandler exposes worker heartbeats.
type WorkerHandler struct {
	monitor StatusLister
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewWorkerHandler creates a new worker handler.
func NewWorkerHandler(monitor StatusLister, clock clockwork.Clock, logger *zap.Logger) *WorkerHandler {
	return &WorkerHandler{
		monitor: monitor,
		clock:   clock,
		logger:  logger.Named("worker_handler"),
	}
}

// ListWorkers returns every worker that reported within the heartbeat TTL.
func (h *WorkerHandler) ListWorkers(w http.ResponseWriter, req bunrouter.Request) error {
	statuses, err := h.monitor.GetAllStatuses(req.Context())
	if err != nil {
		h.logger.Error("Failed to list worker statuses", zap.Error(err))
		return writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}

	now := h.clock.Now()
	workers := make([]restTypes.WorkerStatus, 0, len(statuses))

	for i := range statuses {
		workers = append(workers, restTypes.WorkerStatus{
			Status:  statuses[i],
			Stale:  statuses[i].IsStale(now),
		})
	}

	return bunrouter.JSON(w, restTypes.ListWorkersResponse{Workers: workers})
}
