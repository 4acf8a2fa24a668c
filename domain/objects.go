package domain

import (
	"time"

	"github.com/google/uuid"
)

// Object kinds used for votes and realtime notifications.
const (
	ObjectPost    = "post"
	ObjectComment = "comment"
)

// Post is a federated link submission to a community. Remote posts carry
// the ap_id assigned by their origin server; local posts get one minted
// under this instance's domain after creation.
type Post struct {
	Id          uuid.UUID
	ApID        string
	Title       string
	URL         string
	Body        string
	CreatorId   uuid.UUID
	CommunityId uuid.UUID
	Removed     bool // moderator removal
	Deleted     bool // creator deletion
	Locked      bool
	Published   time.Time
	Updated     time.Time
}

// Comment is a reply to a post or to another comment.
type Comment struct {
	Id        uuid.UUID
	ApID      string
	PostId    uuid.UUID
	ParentId  uuid.NullUUID // empty for top-level comments
	CreatorId uuid.UUID
	Content   string
	Removed   bool
	Deleted   bool
	Published time.Time
	Updated   time.Time
}

// Vote is a reaction on a post or comment. One row per (actor, object);
// a new reaction by the same actor replaces the previous one.
type Vote struct {
	Id         uuid.UUID
	ActorId    uuid.UUID
	ObjectId   uuid.UUID
	ObjectKind string // post or comment
	Score      int    // +1 like, -1 dislike
	URI        string // Like/Dislike activity URI
	CreatedAt  time.Time
}
