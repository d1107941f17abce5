// Package types defines the request and response bodies of the REST API.
package types

import (
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/worker/core"
)

// UserRequest names one account.
type UserRequest struct {
	UserID int64 `json:"userId"`
}

// ListCandidatesResponse holds the confirmed remove candidates.
type ListCandidatesResponse struct {
	Candidates []*types.Profile `json:"candidates"`
	// Popped is the number of candidates taken from the confirmation queue.
	Popped int `json:"popped"`
}

// ConfirmRemoveResponse identifies the queued remove action.
type ConfirmRemoveResponse struct {
	ActionID int64 `json:"actionId"`
}

// WorkerStatus is a worker heartbeat with its liveness.
type WorkerStatus struct {
	core.Status

	Stale bool `json:"isStale"`
}

// ListWorkersResponse holds every reported worker.
type ListWorkersResponse struct {
	Workers []WorkerStatus `json:"workers"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
