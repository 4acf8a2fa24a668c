package activitypub

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

// receiveUpdate applies an edit. The activity's declared updated time
// drives last-write-wins: the storage upsert only overwrites content when
// the incoming timestamp is not older than the stored one, so updates
// delivered out of order settle on the latest edit.
func (f *Federator) receiveUpdate(ctx context.Context, act *Activity) error {
	doc, err := parseObjectDoc(act)
	if err != nil {
		return err
	}

	if doc.Type == domain.ActorPerson || doc.Type == domain.ActorGroup {
		return f.receiveActorUpdate(ctx, act, doc)
	}

	if err := checkSameOrigin(act.Actor, doc); err != nil {
		return err
	}
	if doc.AttributedTo == "" {
		doc.AttributedTo = act.Actor
	}

	updated := ParseTime(act.Updated, ParseTime(doc.Updated, time.Now()))

	switch doc.Type {
	case ObjectPage:
		post, err := f.upsertPostFromDoc(ctx, doc, updated)
		if err != nil {
			return err
		}
		log.Printf("Inbox: Updated post %s from %s", post.ApID, act.Actor)
		f.publish(domain.ObjectPost, post.Id, "updated")
	case ObjectNote:
		comment, err := f.upsertCommentFromDoc(ctx, doc, updated)
		if err != nil {
			return err
		}
		log.Printf("Inbox: Updated comment %s from %s", comment.ApID, act.Actor)
		f.publish(domain.ObjectComment, comment.Id, "updated")
	default:
		return fmt.Errorf("%w: Update of %s", ErrUnknownObjectType, doc.Type)
	}
	return nil
}

// receiveActorUpdate handles a profile edit: the actor re-describes
// itself, so a forced re-resolution refreshes the cached record.
func (f *Federator) receiveActorUpdate(ctx context.Context, act *Activity, doc *ObjectDoc) error {
	if !util.SameDomain(act.Actor, doc.ID) {
		return fmt.Errorf("%w: actor %s updating profile %s", ErrOriginMismatch, act.Actor, doc.ID)
	}
	actor, err := f.Resolver.ResolveFresh(ctx, doc.ID)
	if err != nil {
		return err
	}
	log.Printf("Inbox: Refreshed profile for %s@%s", actor.Username, actor.Domain)
	f.publish("person", actor.Id, "updated")
	return nil
}
