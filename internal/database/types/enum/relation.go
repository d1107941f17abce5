package enum

// RelationKind identifies which side of the follow graph an id set describes.
//
//go:generate go tool enumer -type=RelationKind -trimprefix=RelationKind -json
type RelationKind int

const (
	// RelationKindFriend is an account the operator follows.
	RelationKindFriend RelationKind = iota
	// RelationKindFollower is an account following the operator.
	RelationKindFollower
)

// Table returns the id set table holding ids of this kind.
func (k RelationKind) Table() string {
	if k == RelationKindFollower {
		return "followers_ids"
	}

	return "friends_ids"
}
