package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/lattice-fed/lattice/domain"
)

// ReceiveActivity is the inbox state machine, run once per inbound
// delivery: parse, dedupe, validate domains, resolve the actor, verify
// the signature, dispatch, and record in the ledger regardless of the
// dispatch outcome so a handler failure never causes a redelivery loop.
// Only the web layer translates the returned error into an HTTP status.
func (f *Federator) ReceiveActivity(ctx context.Context, req *http.Request, body []byte) error {
	var act Activity
	if err := json.Unmarshal(body, &act); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if act.ID == "" || act.Type == "" || act.Actor == "" {
		return fmt.Errorf("%w: missing id, type or actor", ErrMalformed)
	}

	// Duplicate delivery must be harmless and cheap: short-circuit
	// before any network work
	if f.Ledger.IsKnown(act.ID) {
		log.Printf("Inbox: duplicate activity %s, ignoring", act.ID)
		return nil
	}

	if err := f.Resolver.CheckApID(act.ID); err != nil {
		return err
	}
	if err := f.Resolver.CheckApID(act.Actor); err != nil {
		return err
	}

	actor, err := f.Resolver.Resolve(ctx, act.Actor)
	if err != nil {
		return err
	}

	if err := f.verifyWithRefresh(ctx, req, actor); err != nil {
		log.Printf("Inbox: rejecting %s from %s: %v", act.Type, act.Actor, err)
		return err
	}

	log.Printf("Inbox: received %s %s from %s", act.Type, act.ID, act.Actor)

	dispatchErr := f.Dispatch(ctx, &act)

	// Record regardless of the dispatch outcome: the remote delivered
	// the activity intact and retrying it would change nothing
	if err := f.Ledger.Record(&act, body, false); err != nil {
		log.Printf("Inbox: failed to record activity %s: %v", act.ID, err)
	}

	if dispatchErr != nil {
		if errors.Is(dispatchErr, ErrOriginMismatch) {
			// Potential spoofing attempt, rejected without effect
			log.Printf("Inbox: SECURITY rejected %s: %v", act.ID, dispatchErr)
			return dispatchErr
		}
		log.Printf("Inbox: processing %s failed: %v", act.ID, dispatchErr)
		return nil
	}

	f.maybeAnnounce(&act)
	return nil
}

// verifyWithRefresh verifies the request signature against the actor's
// cached key, forcing exactly one re-resolution when verification fails
// in case the remote rotated its key.
func (f *Federator) verifyWithRefresh(ctx context.Context, req *http.Request, actor *domain.Actor) error {
	err := VerifyRequest(req, actor)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrSignatureMismatch) && !errors.Is(err, ErrUnknownKey) {
		return err
	}

	refreshed, rerr := f.Resolver.ResolveFresh(ctx, actor.ActorURI)
	if rerr != nil {
		return err
	}
	return VerifyRequest(req, refreshed)
}

// maybeAnnounce relays a successfully applied activity to followers when
// it is addressed to a community hosted on this instance. Announces are
// never re-announced.
func (f *Federator) maybeAnnounce(act *Activity) {
	kind, _ := act.Kind()
	if kind == KindAnnounce || kind == KindFollow || kind == KindAccept {
		return
	}

	community := f.localCommunityFor(act)
	if community == nil {
		return
	}

	if err := f.AnnounceToFollowers(community, act); err != nil {
		log.Printf("Inbox: announce fan-out for %s failed: %v", act.ID, err)
	}
}

// localCommunityFor finds the locally hosted community an activity is
// addressed to, if any. Checks the activity audience first, then the
// embedded object's addressing.
func (f *Federator) localCommunityFor(act *Activity) *domain.Actor {
	candidates := make([]string, 0, 4)
	if act.Audience != "" {
		candidates = append(candidates, act.Audience)
	}
	candidates = append(candidates, act.To...)
	candidates = append(candidates, act.Cc...)

	if len(act.Object) > 0 {
		var doc ObjectDoc
		if err := json.Unmarshal(act.Object, &doc); err == nil {
			if doc.Audience != "" {
				candidates = append(candidates, doc.Audience)
			}
			candidates = append(candidates, doc.To...)
			candidates = append(candidates, doc.Cc...)
		}
	}

	for _, uri := range candidates {
		if uri == PublicAudience {
			continue
		}
		actor, err := f.DB.ReadActorByURI(uri)
		if err != nil || actor == nil {
			continue
		}
		if actor.Local && actor.Kind == domain.ActorGroup {
			return actor
		}
	}
	return nil
}
