package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

// receiveDelete handles a creator deleting their own object. The object
// may be a bare URI or a Tombstone. Nothing is erased: the row keeps its
// content and gains the deleted flag, retained for moderation audit.
// Deleting requires same-origin between actor and object.
func (f *Federator) receiveDelete(ctx context.Context, act *Activity) error {
	objectURI := deletedObjectURI(act)
	if objectURI == "" {
		return fmt.Errorf("%w: Delete without object", ErrMalformed)
	}
	if !util.SameDomain(act.Actor, objectURI) {
		return fmt.Errorf("%w: actor %s deleting %s", ErrOriginMismatch, act.Actor, objectURI)
	}

	// An actor deleting itself marks the cached actor inactive
	if objectURI == act.Actor {
		if err := f.DB.SetActorDeleted(act.Actor, true); err != nil {
			return err
		}
		f.Resolver.Invalidate(act.Actor)
		log.Printf("Inbox: Actor %s deleted their account", act.Actor)
		return nil
	}

	return f.setObjectState(objectURI, act.Actor, stateDeleted, true)
}

// receiveRemove handles a moderator removal. Removal comes from the
// community side, which may live on another instance than the object's
// creator, so no same-origin check applies between actor and object.
func (f *Federator) receiveRemove(ctx context.Context, act *Activity) error {
	objectURI := deletedObjectURI(act)
	if objectURI == "" {
		return fmt.Errorf("%w: Remove without object", ErrMalformed)
	}
	return f.setObjectState(objectURI, act.Actor, stateRemoved, true)
}

type objectState int

const (
	stateDeleted objectState = iota
	stateRemoved
)

// setObjectState flips the deleted/removed flag of the post or comment
// with the given ap_id. Unknown objects are a logged no-op: federated
// delivery order is not guaranteed and a Delete can arrive before we ever
// saw the object.
func (f *Federator) setObjectState(objectURI, actorURI string, state objectState, value bool) error {
	change := map[objectState]map[bool]string{
		stateDeleted: {true: "deleted", false: "restored"},
		stateRemoved: {true: "removed", false: "restored"},
	}[state][value]

	if post, err := f.DB.ReadPostByApID(objectURI); err != nil {
		return err
	} else if post != nil {
		var err error
		if state == stateDeleted {
			err = f.DB.SetPostDeleted(objectURI, value)
		} else {
			err = f.DB.SetPostRemoved(objectURI, value)
		}
		if err != nil {
			return err
		}
		log.Printf("Inbox: Post %s %s by %s", objectURI, change, actorURI)
		f.publish(domain.ObjectPost, post.Id, change)
		return nil
	}

	if comment, err := f.DB.ReadCommentByApID(objectURI); err != nil {
		return err
	} else if comment != nil {
		var err error
		if state == stateDeleted {
			err = f.DB.SetCommentDeleted(objectURI, value)
		} else {
			err = f.DB.SetCommentRemoved(objectURI, value)
		}
		if err != nil {
			return err
		}
		log.Printf("Inbox: Comment %s %s by %s", objectURI, change, actorURI)
		f.publish(domain.ObjectComment, comment.Id, change)
		return nil
	}

	log.Printf("Inbox: %s target %s not known locally, ignoring", change, objectURI)
	return nil
}

// deletedObjectURI extracts the target of a Delete/Remove, accepting a
// bare URI, an embedded object or a Tombstone.
func deletedObjectURI(act *Activity) string {
	if len(act.Object) == 0 {
		return ""
	}
	var uri string
	if err := json.Unmarshal(act.Object, &uri); err == nil {
		return uri
	}
	var doc ObjectDoc
	if err := json.Unmarshal(act.Object, &doc); err == nil {
		return doc.ID
	}
	return ""
}
