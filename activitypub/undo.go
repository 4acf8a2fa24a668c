package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

// receiveUndo reverses a previously asserted activity. The wrapped
// activity may be embedded whole or referenced by URI; a URI is looked up
// in the ledger. Undoing an activity this instance never saw is a no-op,
// not an error, because federated delivery order is not guaranteed.
func (f *Federator) receiveUndo(ctx context.Context, act *Activity) error {
	inner, err := f.unwrapUndone(act)
	if err != nil {
		return err
	}
	if inner == nil {
		log.Printf("Inbox: Undo of unknown activity from %s, ignoring", act.Actor)
		return nil
	}
	if inner.Actor == "" {
		inner.Actor = act.Actor
	}

	// Only the original actor may undo its own assertion
	if !util.SameDomain(act.Actor, inner.Actor) {
		return fmt.Errorf("%w: %s undoing activity of %s", ErrOriginMismatch, act.Actor, inner.Actor)
	}

	kind, known := inner.Kind()
	if !known {
		logUnhandled("Undo target type", inner.Type)
		return nil
	}

	switch kind {
	case KindLike, KindDislike:
		return f.undoVote(ctx, act, inner)
	case KindDelete:
		objectURI := deletedObjectURI(inner)
		if objectURI == "" {
			return fmt.Errorf("%w: Undo(Delete) without object", ErrMalformed)
		}
		if !util.SameDomain(act.Actor, objectURI) {
			return fmt.Errorf("%w: actor %s restoring %s", ErrOriginMismatch, act.Actor, objectURI)
		}
		return f.setObjectState(objectURI, act.Actor, stateDeleted, false)
	case KindRemove:
		objectURI := deletedObjectURI(inner)
		if objectURI == "" {
			return fmt.Errorf("%w: Undo(Remove) without object", ErrMalformed)
		}
		return f.setObjectState(objectURI, act.Actor, stateRemoved, false)
	case KindFollow:
		if err := f.DB.DeleteFollowByURI(inner.ID); err != nil {
			return err
		}
		log.Printf("Inbox: Removed follow %s after Undo from %s", inner.ID, act.Actor)
		return nil
	default:
		logUnhandled("Undo target type", inner.Type)
		return nil
	}
}

// undoVote removes the reaction row for (actor, object). A missing row
// means the vote was never seen; deleting it is still a success.
func (f *Federator) undoVote(ctx context.Context, act *Activity, inner *Activity) error {
	actor, err := f.Resolver.Resolve(ctx, act.Actor)
	if err != nil {
		return err
	}

	objectURI := inner.ObjectURI()
	if objectURI == "" {
		return fmt.Errorf("%w: Undo(vote) without object", ErrMalformed)
	}

	// Locally unknown object means there is no vote row either
	if post, err := f.DB.ReadPostByApID(objectURI); err != nil {
		return err
	} else if post != nil {
		if err := f.DB.DeleteVote(actor.Id, post.Id, domain.ObjectPost); err != nil {
			return err
		}
		f.publish(domain.ObjectPost, post.Id, "voted")
		return nil
	}

	if comment, err := f.DB.ReadCommentByApID(objectURI); err != nil {
		return err
	} else if comment != nil {
		if err := f.DB.DeleteVote(actor.Id, comment.Id, domain.ObjectComment); err != nil {
			return err
		}
		f.publish(domain.ObjectComment, comment.Id, "voted")
		return nil
	}

	log.Printf("Inbox: Undo(vote) on unknown object %s, ignoring", objectURI)
	return nil
}

// unwrapUndone returns the activity being undone, or nil when it cannot
// be determined (never an error for an unknown reference).
func (f *Federator) unwrapUndone(act *Activity) (*Activity, error) {
	if len(act.Object) == 0 {
		return nil, fmt.Errorf("%w: Undo without object", ErrMalformed)
	}

	var uri string
	if err := json.Unmarshal(act.Object, &uri); err == nil {
		recorded, err := f.Ledger.ReadByURI(uri)
		if err != nil {
			return nil, err
		}
		if recorded == nil {
			return nil, nil
		}
		var inner Activity
		if err := json.Unmarshal([]byte(recorded.RawJSON), &inner); err != nil {
			return nil, fmt.Errorf("%w: recorded activity %s: %v", ErrMalformed, uri, err)
		}
		return &inner, nil
	}

	var inner Activity
	if err := json.Unmarshal(act.Object, &inner); err != nil {
		return nil, fmt.Errorf("%w: Undo object: %v", ErrMalformed, err)
	}
	if inner.Type == "" {
		return nil, fmt.Errorf("%w: Undo object without type", ErrMalformed)
	}
	return &inner, nil
}
