package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// maxAnnounceDepth bounds recursive Announce unwrapping so a malicious
// relay chain cannot grow the stack without limit.
const maxAnnounceDepth = 2

// Dispatch routes a validated, deduplicated activity to the handler for
// its declared kind. Unrecognized kinds are logged and acknowledged as
// no-ops: strict rejection would break interoperability with newer remote
// implementations.
func (f *Federator) Dispatch(ctx context.Context, act *Activity) error {
	return f.dispatch(ctx, act, 0)
}

func (f *Federator) dispatch(ctx context.Context, act *Activity, depth int) error {
	kind, known := act.Kind()
	if !known {
		logUnhandled("activity type", act.Type)
		return nil
	}

	switch kind {
	case KindCreate:
		return f.receiveCreate(ctx, act)
	case KindUpdate:
		return f.receiveUpdate(ctx, act)
	case KindLike:
		return f.receiveVote(ctx, act, 1)
	case KindDislike:
		return f.receiveVote(ctx, act, -1)
	case KindDelete:
		return f.receiveDelete(ctx, act)
	case KindRemove:
		return f.receiveRemove(ctx, act)
	case KindUndo:
		return f.receiveUndo(ctx, act)
	case KindAnnounce:
		return f.receiveAnnounce(ctx, act, depth)
	case KindFollow:
		return f.receiveFollow(ctx, act)
	case KindAccept:
		return f.receiveAccept(ctx, act)
	}
	return nil
}

// receiveAnnounce unwraps the relayed inner activity and re-dispatches it
// as if it had been received directly. The inner activity's own actor is
// resolved by its handler; the announcing community is only a relay.
func (f *Federator) receiveAnnounce(ctx context.Context, act *Activity, depth int) error {
	if depth >= maxAnnounceDepth {
		log.Printf("Dispatch: dropping Announce from %s, relay depth %d exceeded", act.Actor, depth)
		return nil
	}

	if len(act.Object) == 0 {
		return fmt.Errorf("%w: Announce without object", ErrMalformed)
	}

	var inner Activity
	if err := json.Unmarshal(act.Object, &inner); err != nil {
		return fmt.Errorf("%w: Announce object: %v", ErrMalformed, err)
	}
	if inner.ID == "" || inner.Type == "" || inner.Actor == "" {
		return fmt.Errorf("%w: Announce object missing id/type/actor", ErrMalformed)
	}

	if err := f.Resolver.CheckApID(inner.Actor); err != nil {
		return err
	}

	// The relayed activity is applied here, so it is ledgered under its
	// own id: redelivery through another relay dedupes, and a later Undo
	// referencing it by bare URI can still find it.
	if f.Ledger.IsKnown(inner.ID) {
		log.Printf("Dispatch: relayed activity %s already processed, skipping", inner.ID)
		return nil
	}

	log.Printf("Dispatch: unwrapping Announce of %s from %s", inner.Type, act.Actor)
	dispatchErr := f.dispatch(ctx, &inner, depth+1)
	if err := f.Ledger.Record(&inner, act.Object, false); err != nil {
		log.Printf("Dispatch: failed to record relayed activity %s: %v", inner.ID, err)
	}
	return dispatchErr
}
