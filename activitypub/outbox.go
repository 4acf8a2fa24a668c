package activitypub

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lattice-fed/lattice/domain"
)

const as2Context = "https://www.w3.org/ns/activitystreams"

// mintActivityID assigns a fresh activity URI under this instance's
// domain.
func (f *Federator) mintActivityID() string {
	return fmt.Sprintf("https://%s/activities/%s", f.Conf.Conf.Domain, uuid.New())
}

func mustRaw(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal: %v", err))
	}
	return b
}

// record writes a locally-produced activity to the ledger before it goes
// out, so our own activities dedupe and audit the same way inbound ones
// do.
func (f *Federator) record(act *Activity) {
	raw, err := json.Marshal(act)
	if err != nil {
		log.Printf("Outbox: failed to marshal activity %s: %v", act.ID, err)
		return
	}
	if err := f.Ledger.Record(act, raw, true); err != nil {
		log.Printf("Outbox: failed to record activity %s: %v", act.ID, err)
	}
}

// SendAccept answers a Follow with an Accept wrapping the original
// follow activity.
func (f *Federator) SendAccept(community, follower *domain.Actor, follow *Activity) error {
	accept := &Activity{
		Context: as2Context,
		ID:      f.mintActivityID(),
		Type:    string(KindAccept),
		Actor:   community.ActorURI,
		Object: mustRaw(map[string]interface{}{
			"id":     follow.ID,
			"type":   "Follow",
			"actor":  follower.ActorURI,
			"object": community.ActorURI,
		}),
	}

	f.record(accept)
	f.Deliverer.Enqueue(accept, community, CollectInboxes([]domain.Actor{*follower}))
	return nil
}

// AnnounceToFollowers relays an activity concerning a locally hosted
// community to that community's followers, wrapped in an Announce
// attributed to the community actor. Follower inboxes are deduplicated by
// shared inbox so no server is hit twice.
func (f *Federator) AnnounceToFollowers(community *domain.Actor, inner *Activity) error {
	followers, err := f.DB.ReadCommunityFollowers(community.Id)
	if err != nil {
		return err
	}

	announce := &Activity{
		Context: as2Context,
		ID:      f.mintActivityID(),
		Type:    string(KindAnnounce),
		Actor:   community.ActorURI,
		To:      []string{PublicAudience},
		Object:  mustRaw(inner),
	}

	f.record(announce)

	inboxes := CollectInboxes(followers)
	if len(inboxes) == 0 {
		log.Printf("Outbox: no follower inboxes for %s", community.ActorURI)
		return nil
	}

	log.Printf("Outbox: announcing %s to %d inboxes for %s", inner.Type, len(inboxes), community.ActorURI)
	f.Deliverer.Enqueue(announce, community, inboxes)
	return nil
}

// SendCreatePost federates a locally created post: directly to its
// community when the community is remote, announced to followers when the
// community is hosted here.
func (f *Federator) SendCreatePost(post *domain.Post, creator, community *domain.Actor) error {
	return f.sendPostActivity(KindCreate, post, creator, community)
}

// SendUpdatePost federates an edit of a local post.
func (f *Federator) SendUpdatePost(post *domain.Post, creator, community *domain.Actor) error {
	return f.sendPostActivity(KindUpdate, post, creator, community)
}

func (f *Federator) sendPostActivity(kind Kind, post *domain.Post, creator, community *domain.Actor) error {
	doc := ObjectDoc{
		ID:           post.ApID,
		Type:         ObjectPage,
		AttributedTo: creator.ActorURI,
		To:           []string{PublicAudience},
		Audience:     community.ActorURI,
		Name:         post.Title,
		URL:          post.URL,
		Content:      post.Body,
		Published:    post.Published.Format(time.RFC3339),
		Updated:      post.Updated.Format(time.RFC3339),
	}

	act := &Activity{
		Context:   as2Context,
		ID:        f.mintActivityID(),
		Type:      string(kind),
		Actor:     creator.ActorURI,
		To:        []string{PublicAudience},
		Audience:  community.ActorURI,
		Published: time.Now().UTC().Format(time.RFC3339),
		Updated:   post.Updated.Format(time.RFC3339),
		Object:    mustRaw(doc),
	}

	return f.sendToCommunity(act, creator, community)
}

// SendCreateComment federates a locally created comment.
func (f *Federator) SendCreateComment(comment *domain.Comment, parentApID string, creator, community *domain.Actor) error {
	doc := ObjectDoc{
		ID:           comment.ApID,
		Type:         ObjectNote,
		AttributedTo: creator.ActorURI,
		To:           []string{PublicAudience},
		Audience:     community.ActorURI,
		Content:      comment.Content,
		InReplyTo:    parentApID,
		Published:    comment.Published.Format(time.RFC3339),
		Updated:      comment.Updated.Format(time.RFC3339),
	}

	act := &Activity{
		Context:   as2Context,
		ID:        f.mintActivityID(),
		Type:      string(KindCreate),
		Actor:     creator.ActorURI,
		To:        []string{PublicAudience},
		Audience:  community.ActorURI,
		Published: time.Now().UTC().Format(time.RFC3339),
		Object:    mustRaw(doc),
	}

	return f.sendToCommunity(act, creator, community)
}

// SendVote federates a local Like or Dislike on a federated object.
func (f *Federator) SendVote(objectApID string, score int, actor, community *domain.Actor) error {
	kind := KindLike
	if score < 0 {
		kind = KindDislike
	}

	act := &Activity{
		Context:  as2Context,
		ID:       f.mintActivityID(),
		Type:     string(kind),
		Actor:    actor.ActorURI,
		Audience: community.ActorURI,
		Object:   mustRaw(objectApID),
	}

	return f.sendToCommunity(act, actor, community)
}

// SendUndo federates the reversal of a previously sent activity.
func (f *Federator) SendUndo(prev *Activity, actor, community *domain.Actor) error {
	act := &Activity{
		Context:  as2Context,
		ID:       f.mintActivityID(),
		Type:     string(KindUndo),
		Actor:    actor.ActorURI,
		Audience: community.ActorURI,
		Object:   mustRaw(prev),
	}

	return f.sendToCommunity(act, actor, community)
}

// SendDelete federates deletion of a local object, shipped as a
// Tombstone. The stored row keeps its content and only gains the flag.
func (f *Federator) SendDelete(objectApID string, actor, community *domain.Actor) error {
	act := &Activity{
		Context:  as2Context,
		ID:       f.mintActivityID(),
		Type:     string(KindDelete),
		Actor:    actor.ActorURI,
		Audience: community.ActorURI,
		Object: mustRaw(map[string]interface{}{
			"id":   objectApID,
			"type": ObjectTombstone,
		}),
	}

	return f.sendToCommunity(act, actor, community)
}

// sendToCommunity records the activity and routes it: remote communities
// get it delivered to their inbox and relay it themselves; local
// communities announce it to their followers directly.
func (f *Federator) sendToCommunity(act *Activity, sender, community *domain.Actor) error {
	f.record(act)

	if community.Local {
		return f.AnnounceToFollowers(community, act)
	}

	inboxes := CollectInboxes([]domain.Actor{*community})
	if len(inboxes) == 0 {
		log.Printf("Outbox: community %s has no usable inbox", community.ActorURI)
		return nil
	}
	f.Deliverer.Enqueue(act, sender, inboxes)
	return nil
}
