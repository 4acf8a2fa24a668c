package domain

import (
	"time"

	"github.com/google/uuid"
)

// Actor kinds as they appear on the wire.
const (
	ActorPerson = "Person"
	ActorGroup  = "Group"
)

// Actor represents a federated identity, local or remote. A Person posts
// and votes, a Group is a community that announces to its followers.
// Remote actors are cached rows refreshed from their home server; local
// actors additionally carry a private key for signing.
type Actor struct {
	Id              uuid.UUID
	Kind            string // Person or Group
	Username        string
	Domain          string
	ActorURI        string
	DisplayName     string
	Summary         string
	InboxURI        string
	SharedInboxURI  string
	OutboxURI       string
	PublicKeyPem    string
	PrivateKeyPem   string // local actors only
	Local           bool
	Deleted         bool
	LastRefreshedAt time.Time
	CreatedAt       time.Time
}

// KeyId returns the id of the actor's signing key, by convention the
// actor URI with a #main-key fragment.
func (a *Actor) KeyId() string {
	return a.ActorURI + "#main-key"
}

// Follow represents a (possibly remote) Person following a Community.
type Follow struct {
	Id          uuid.UUID
	ActorId     uuid.UUID // the follower
	CommunityId uuid.UUID // the community being followed
	URI         string    // Follow activity URI
	Accepted    bool
	CreatedAt   time.Time
}
