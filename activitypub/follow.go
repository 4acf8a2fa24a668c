package activitypub

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lattice-fed/lattice/domain"
)

// receiveFollow subscribes a remote Person to a locally hosted Community.
// Follows are auto-accepted; the Accept goes back through the delivery
// queue. A repeated Follow from the same actor replaces the earlier row.
func (f *Federator) receiveFollow(ctx context.Context, act *Activity) error {
	communityURI := act.ObjectURI()
	if communityURI == "" {
		return fmt.Errorf("%w: Follow without object", ErrMalformed)
	}

	community, err := f.DB.ReadActorByURI(communityURI)
	if err != nil {
		return err
	}
	if community == nil || !community.Local || community.Kind != domain.ActorGroup {
		log.Printf("Inbox: Follow for %s which is not a local community, ignoring", communityURI)
		return nil
	}

	follower, err := f.Resolver.Resolve(ctx, act.Actor)
	if err != nil {
		return err
	}

	follow := &domain.Follow{
		Id:          uuid.New(),
		ActorId:     follower.Id,
		CommunityId: community.Id,
		URI:         act.ID,
		Accepted:    true,
		CreatedAt:   time.Now(),
	}
	if err := f.DB.UpsertFollow(follow); err != nil {
		return err
	}

	log.Printf("Inbox: %s now follows %s", act.Actor, communityURI)
	f.publish("community", community.Id, "followed")

	return f.SendAccept(community, follower, act)
}

// receiveAccept confirms a Follow this instance sent earlier. Accept of a
// follow we never recorded is ignored.
func (f *Federator) receiveAccept(ctx context.Context, act *Activity) error {
	if len(act.Object) == 0 {
		return fmt.Errorf("%w: Accept without object", ErrMalformed)
	}
	uri := act.ObjectURI()
	if uri == "" {
		return fmt.Errorf("%w: Accept object without id", ErrMalformed)
	}

	follow, err := f.DB.ReadFollowByURI(uri)
	if err != nil {
		return err
	}
	if follow == nil {
		log.Printf("Inbox: Accept for unknown follow %s, ignoring", uri)
		return nil
	}

	if err := f.DB.AcceptFollowByURI(uri); err != nil {
		return err
	}
	log.Printf("Inbox: Follow %s accepted by %s", uri, act.Actor)
	return nil
}
