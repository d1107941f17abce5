package handler

import (
	"errors"
	"net/http"

	"github.com/robalyx/reciprocal/internal/database"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// WhitelistHandler manages accounts that are never remove candidates.
type WhitelistHandler struct {
	store  database.WhitelistStore
	logger *zap.Logger
}

// NewWhitelistHandler creates a new whitelist handler.
func NewWhitelistHandler(store database.WhitelistStore, logger *zap.Logger) *WhitelistHandler {
	return &WhitelistHandler{
		store:  store,
		logger: logger.Named("whitelist_handler"),
	}
}

// AddUser whitelists an account. Adding an account twice is not an error.
func (h *WhitelistHandler) AddUser(w http.ResponseWriter, req bunrouter.Request) error {
	body, err := decodeUserRequest(req)
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}

	if err := h.store.AddToWhitelist(req.Context(), body.UserID); err != nil {
		h.logger.Error("Failed to whitelist user", zap.Int64("userID", body.UserID), zap.Error(err))
		return writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}

	h.logger.Info("Whitelisted user", zap.Int64("userID", body.UserID))

	w.WriteHeader(http.StatusNoContent)

	return nil
}
