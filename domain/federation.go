package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity is the append-only ledger row for every activity this instance
// has seen, inbound or outbound. The unique activity URI is the
// deduplication key; rows are immutable once written.
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string // Create, Update, Like, Announce, Undo, etc.
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Local        bool // true if originated from this server
	CreatedAt    time.Time
}

// Notification describes a locally observable state change produced by
// applying a federated activity. Consumed by the realtime hub.
type Notification struct {
	ObjectKind string    `json:"objectKind"` // post, comment, community, person
	ObjectId   uuid.UUID `json:"objectId"`
	Change     string    `json:"change"` // created, updated, removed, deleted, restored, voted
}

// NotifySink receives notifications fire-and-forget; implementations must
// never block the caller.
type NotifySink interface {
	Publish(n Notification)
}
