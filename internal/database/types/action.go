package types

import (
	"time"

	"github.com/robalyx/reciprocal/internal/database/types/enum"
)

// Queue table names.
const (
	ActionQueueTable       = "action_queue"
	ConfirmationQueueTable = "confirmation_queue"
)

// Action is a follow or remove request waiting in the action queue.
type Action struct {
	Type   enum.ActionType `json:"type"`
	UserID int64           `json:"userId"`
}

// RemoveCandidate is a friend who does not follow back and awaits
// confirmation before being removed.
type RemoveCandidate struct {
	UserID int64 `json:"userId"`
}

// QueueRow is the stored form of a queued payload.
type QueueRow struct {
	ID        int64     `bun:"id"`
	Data      string    `bun:"data"`
	CreatedAt time.Time `bun:"created_at"`
}
