package activitypub

import (
	"encoding/json"
	"time"
)

// Kind is an activity type as declared on the wire. The wire protocol is
// open-ended, so parsing never fails: unknown values survive as their raw
// string and are treated as unrecognized by the dispatcher.
type Kind string

const (
	KindCreate   Kind = "Create"
	KindUpdate   Kind = "Update"
	KindLike     Kind = "Like"
	KindDislike  Kind = "Dislike"
	KindDelete   Kind = "Delete"
	KindRemove   Kind = "Remove"
	KindUndo     Kind = "Undo"
	KindAnnounce Kind = "Announce"
	KindFollow   Kind = "Follow"
	KindAccept   Kind = "Accept"
)

// ParseKind maps a wire type string to a Kind, reporting whether it is one
// this implementation recognizes.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	switch k {
	case KindCreate, KindUpdate, KindLike, KindDislike, KindDelete,
		KindRemove, KindUndo, KindAnnounce, KindFollow, KindAccept:
		return k, true
	}
	return k, false
}

// Activity represents a generic ActivityPub activity. Object is kept raw
// because its shape depends on the activity type: a bare URI string, an
// embedded object, or a whole wrapped activity (Announce, Undo).
type Activity struct {
	Context   interface{}     `json:"@context,omitempty"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	To        []string        `json:"to,omitempty"`
	Cc        []string        `json:"cc,omitempty"`
	Audience  string          `json:"audience,omitempty"`
	Published string          `json:"published,omitempty"`
	Updated   string          `json:"updated,omitempty"`
	Object    json.RawMessage `json:"object,omitempty"`
}

// Kind returns the parsed activity kind plus whether it is recognized.
func (a *Activity) Kind() (Kind, bool) {
	return ParseKind(a.Type)
}

// ObjectURI extracts the id of the activity's object, whether the object
// is a bare URI string or an embedded object.
func (a *Activity) ObjectURI() string {
	if len(a.Object) == 0 {
		return ""
	}
	var uri string
	if err := json.Unmarshal(a.Object, &uri); err == nil {
		return uri
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(a.Object, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// ObjectDoc is the embedded object of a Create or Update: a Page (post)
// or Note (comment), or a Tombstone standing in for a deleted object.
type ObjectDoc struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	AttributedTo string   `json:"attributedTo,omitempty"`
	To           []string `json:"to,omitempty"`
	Cc           []string `json:"cc,omitempty"`
	Audience     string   `json:"audience,omitempty"`
	Name         string   `json:"name,omitempty"`    // post title
	URL          string   `json:"url,omitempty"`     // post link
	Content      string   `json:"content,omitempty"` // post body / comment text
	InReplyTo    string   `json:"inReplyTo,omitempty"`
	Published    string   `json:"published,omitempty"`
	Updated      string   `json:"updated,omitempty"`
	FormerType   string   `json:"formerType,omitempty"` // Tombstone only
}

// Object type strings on the wire.
const (
	ObjectPage      = "Page"
	ObjectNote      = "Note"
	ObjectTombstone = "Tombstone"
)

// PublicAudience is the AS2 marker for publicly addressed activities.
const PublicAudience = "https://www.w3.org/ns/activitystreams#Public"

// ParseTime parses an AS2 timestamp, falling back to the given time when
// the field is absent or unparseable. Network reordering is expected, so
// these timestamps drive last-write-wins rather than being trusted as
// delivery order.
func ParseTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t
}
