package activitypub

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lattice-fed/lattice/domain"
)

// receiveVote applies a Like (+1) or Dislike (-1). Any remote actor may
// react to any object, so there is no same-origin check here. One
// reaction per (actor, object): a new vote replaces the previous one.
func (f *Federator) receiveVote(ctx context.Context, act *Activity, score int) error {
	objectURI := act.ObjectURI()
	if objectURI == "" {
		return fmt.Errorf("%w: vote without object", ErrMalformed)
	}

	actor, err := f.Resolver.Resolve(ctx, act.Actor)
	if err != nil {
		return err
	}

	kind, objectId, err := f.findOrFetchObject(ctx, objectURI)
	if err != nil {
		return err
	}

	vote := &domain.Vote{
		Id:         uuid.New(),
		ActorId:    actor.Id,
		ObjectId:   objectId,
		ObjectKind: kind,
		Score:      score,
		URI:        act.ID,
		CreatedAt:  time.Now(),
	}
	if err := f.DB.UpsertVote(vote); err != nil {
		return err
	}

	log.Printf("Inbox: Vote %+d on %s from %s", score, objectURI, act.Actor)
	f.publish(kind, objectId, "voted")
	return nil
}

// findOrFetchObject maps an object URI to a locally stored post or
// comment, fetching it from its origin when a reaction arrives before
// the Create did.
func (f *Federator) findOrFetchObject(ctx context.Context, uri string) (string, uuid.UUID, error) {
	if post, err := f.DB.ReadPostByApID(uri); err != nil {
		return "", uuid.Nil, err
	} else if post != nil {
		return domain.ObjectPost, post.Id, nil
	}

	if comment, err := f.DB.ReadCommentByApID(uri); err != nil {
		return "", uuid.Nil, err
	} else if comment != nil {
		return domain.ObjectComment, comment.Id, nil
	}

	return f.fetchAndStoreObject(ctx, uri)
}
