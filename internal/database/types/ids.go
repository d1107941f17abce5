package types

// UserIDEntry is one observed relationship partner in an id set table.
// Timestamps are epoch seconds.
type UserIDEntry struct {
	ID          int64 `bun:",pk,notnull"` // Partner account ID
	ConfirmedAt int64 `bun:",notnull"`    // Last time the ID was seen in a full listing
	CreatedAt   int64 `bun:",notnull"`    // First time the ID was seen
}
