package types

import (
	"time"

	"github.com/uptrace/bun"
)

// WhitelistEntry marks an account that must never be unfollowed.
type WhitelistEntry struct {
	bun.BaseModel `bun:"table:whitelist"`

	ID        int64     `bun:",pk"`      // Account ID
	CreatedAt time.Time `bun:",notnull"` // When the account was whitelisted
}
