package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	restTypes "github.com/robalyx/reciprocal/internal/rest/types"
	"github.com/uptrace/bunrouter"
)

var (
	// ErrInvalidBody is returned when a request body cannot be decoded.
	ErrInvalidBody = errors.New("invalid request body")
	// ErrInvalidUserID is returned when a request names no valid account.
	ErrInvalidUserID = errors.New("invalid user id")
)

// writeError sends an ErrorResponse with the given status.
func writeError(w http.ResponseWriter, status int, err error) error {
	return writeJSON(w, status, restTypes.ErrorResponse{Error: err.Error()})
}

// writeJSON sends value with a status other than 200.
func writeJSON(w http.ResponseWriter, status int, value any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return sonic.ConfigDefault.NewEncoder(w).Encode(value)
}

// decodeUserRequest reads a UserRequest body.
func decodeUserRequest(req bunrouter.Request) (*restTypes.UserRequest, error) {
	var body restTypes.UserRequest
	if err := sonic.ConfigDefault.NewDecoder(req.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	if body.UserID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUserID, body.UserID)
	}

	return &body, nil
}

// parseLimit reads the limit query parameter, falling back to def and
// capping at maxLimit.
func parseLimit(req bunrouter.Request, def, maxLimit int) (int, error) {
	raw := req.URL.Query().Get("limit")
	if raw == "" {
		return min(def, maxLimit), nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}

	return min(limit, maxLimit), nil
}
