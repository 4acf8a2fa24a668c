package activitypub

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lattice-fed/lattice/domain"
)

// receiveCreate applies an inbound Create: the embedded Page or Note is
// upserted keyed by its ap_id. Upsert rather than insert-only, because an
// on-demand fetch triggered by a reaction can race with the object's own
// Create, and a redelivered Create must be harmless.
func (f *Federator) receiveCreate(ctx context.Context, act *Activity) error {
	doc, err := parseObjectDoc(act)
	if err != nil {
		return err
	}
	if err := checkSameOrigin(act.Actor, doc); err != nil {
		return err
	}
	if doc.AttributedTo == "" {
		doc.AttributedTo = act.Actor
	}

	updated := ParseTime(doc.Updated, ParseTime(doc.Published, ParseTime(act.Published, time.Now())))

	switch doc.Type {
	case ObjectPage:
		post, err := f.upsertPostFromDoc(ctx, doc, updated)
		if err != nil {
			return err
		}
		log.Printf("Inbox: Created post %s from %s", post.ApID, act.Actor)
		f.publish(domain.ObjectPost, post.Id, "created")
	case ObjectNote:
		comment, err := f.upsertCommentFromDoc(ctx, doc, updated)
		if err != nil {
			return err
		}
		log.Printf("Inbox: Created comment %s from %s", comment.ApID, act.Actor)
		f.publish(domain.ObjectComment, comment.Id, "created")
	default:
		return fmt.Errorf("%w: Create of %s", ErrUnknownObjectType, doc.Type)
	}
	return nil
}
