package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/database"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/robalyx/reciprocal/internal/queue"
	restTypes "github.com/robalyx/reciprocal/internal/rest/types"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"github.com/robalyx/reciprocal/pkg/utils"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MaxConcurrentListings bounds how many candidate listings may call the API at once.
const MaxConcurrentListings = 2

// CandidateHandler serves the remove candidate confirmation flow.
type CandidateHandler struct {
	store        database.Store
	api          social.API
	caller       *social.Caller
	clock        clockwork.Clock
	sem          *semaphore.Weighted
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

// NewCandidateHandler creates a new candidate handler.
func NewCandidateHandler(
	store database.Store, api social.API, caller *social.Caller, clock clockwork.Clock,
	defaultLimit, maxLimit int, logger *zap.Logger,
) *CandidateHandler {
	return &CandidateHandler{
		store:        store,
		api:          api,
		caller:       caller,
		clock:        clock,
		sem:          semaphore.NewWeighted(MaxConcurrentListings),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger.Named("candidate_handler"),
	}
}

// ListCandidates pops up to limit remove candidates, re-checks them against
// the whitelist and the live relationship, and returns the profiles of
// those still one-sided. If the check fails the popped candidates are
// pushed back.
func (h *CandidateHandler) ListCandidates(w http.ResponseWriter, req bunrouter.Request) error {
	ctx := req.Context()

	limit, err := parseLimit(req, h.defaultLimit, h.maxLimit)
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return writeError(w, http.StatusServiceUnavailable, err)
	}
	defer h.sem.Release(1)

	items, err := queue.Drain[types.RemoveCandidate](ctx, h.store.RemoveCandidates(), limit)
	if err != nil {
		h.logger.Error("Failed to pop remove candidates", zap.Error(err))
		h.requeue(req, items)

		return writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}

	metrics.QueueOps.WithLabelValues(types.ConfirmationQueueTable, "pop").Add(float64(len(items)))

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Payload.UserID)
	}

	profiles, err := h.confirm(req, utils.UniqueIDs(ids))
	if err != nil {
		h.requeue(req, items)

		var rateErr *social.RateLimitError
		if errors.As(err, &rateErr) {
			retryAfter := max(rateErr.ResetAt.Sub(h.clock.Now()), social.MinRateLimitWait)
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))

			return writeError(w, http.StatusServiceUnavailable, err)
		}

		h.logger.Error("Failed to check remove candidates", zap.Error(err))

		return writeError(w, http.StatusBadGateway, errors.New("failed to check remove candidates"))
	}

	return bunrouter.JSON(w, restTypes.ListCandidatesResponse{
		Candidates: profiles,
		Popped:     len(items),
	})
}

// confirm keeps non-whitelisted ids that are still one-sided with no
// pending request, and returns their profiles in order.
func (h *CandidateHandler) confirm(req bunrouter.Request, ids []int64) ([]*types.Profile, error) {
	ctx := req.Context()

	ids, err := h.store.Whitelist().FilterWhitelisted(ctx, ids)
	if err != nil {
		return nil, err
	}

	kept, err := core.Classify(ctx, h.api, h.caller, social.FailFast, ids, func(r social.Relation) bool {
		return r.IsOneSided() && !r.IsPending
	})
	if err != nil {
		return nil, err
	}

	cached, err := core.ReadThroughProfiles(ctx, h.store.Profiles(), h.api, h.caller, social.FailFast, kept, len(kept))
	if err != nil {
		return nil, err
	}

	profiles := make([]*types.Profile, 0, len(kept))
	for _, id := range kept {
		if profile, ok := cached[id]; ok {
			profiles = append(profiles, profile)
		}
	}

	return profiles, nil
}

// requeue pushes popped candidates back after a failed listing.
func (h *CandidateHandler) requeue(req bunrouter.Request, items []*queue.Item[types.RemoveCandidate]) {
	ctx := context.WithoutCancel(req.Context())

	for _, item := range items {
		if _, err := h.store.RemoveCandidates().Push(ctx, item.Payload); err != nil {
			h.logger.Error("Failed to requeue remove candidate",
				zap.Int64("userID", item.Payload.UserID),
				zap.Error(err))
		}
	}
}

// ConfirmRemove queues a remove action for a candidate the operator confirmed.
func (h *CandidateHandler) ConfirmRemove(w http.ResponseWriter, req bunrouter.Request) error {
	body, err := decodeUserRequest(req)
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}

	id, err := h.store.Actions().Push(req.Context(), types.Action{Type: enum.ActionTypeRemove, UserID: body.UserID})
	if err != nil {
		h.logger.Error("Failed to queue remove action", zap.Int64("userID", body.UserID), zap.Error(err))
		return writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}

	metrics.QueueOps.WithLabelValues(types.ActionQueueTable, "push").Inc()
	h.logger.Info("Queued remove action", zap.Int64("userID", body.UserID), zap.Int64("actionID", id))

	return writeJSON(w, http.StatusAccepted, restTypes.ConfirmRemoveResponse{ActionID: id})
}
