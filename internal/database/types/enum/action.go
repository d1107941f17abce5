package enum

// ActionType represents what the executor should do with a queued user.
//
//go:generate go tool enumer -type=ActionType -trimprefix=ActionType -json
type ActionType int

const (
	ActionTypeFollow ActionType = iota
	ActionTypeRemove
)
