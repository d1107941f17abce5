package types

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile is the cached public profile of an account.
type Profile struct {
	bun.BaseModel `bun:"table:profiles"`

	ID             int64      `bun:",pk" json:"id"`
	ScreenName     string     `bun:",notnull" json:"screenName"`
	Name           string     `bun:",notnull" json:"name"`
	FriendsCount   int64      `bun:",notnull" json:"friendsCount"`
	FollowersCount int64      `bun:",notnull" json:"followersCount"`
	Protected      bool       `bun:",notnull" json:"protected"`
	LastStatusAt   *time.Time `bun:",nullzero" json:"lastStatusAt,omitempty"` // Time of the latest post (null if never posted)
	UpdatedAt      time.Time  `bun:",notnull" json:"updatedAt"`              // When the profile was last fetched
}

// IsInactive reports whether the account follows nobody and has not posted
// since the given cutoff. Accounts with no recorded activity count as inactive.
func (p *Profile) IsInactive(cutoff time.Time) bool {
	if p.FriendsCount != 0 {
		return false
	}

	return p.LastStatusAt == nil || p.LastStatusAt.Before(cutoff)
}
