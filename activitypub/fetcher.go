package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

// parseObjectDoc extracts the embedded object of a Create/Update.
func parseObjectDoc(act *Activity) (*ObjectDoc, error) {
	if len(act.Object) == 0 {
		return nil, fmt.Errorf("%w: activity without object", ErrMalformed)
	}
	var doc ObjectDoc
	if err := json.Unmarshal(act.Object, &doc); err != nil {
		return nil, fmt.Errorf("%w: object: %v", ErrMalformed, err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: object without id", ErrMalformed)
	}
	return &doc, nil
}

// checkSameOrigin enforces that an activity's actor only asserts authority
// over objects from its own domain: the object's ap_id and its
// attributedTo must both share the actor's network domain.
func checkSameOrigin(actorURI string, doc *ObjectDoc) error {
	if !util.SameDomain(actorURI, doc.ID) {
		return fmt.Errorf("%w: actor %s, object %s", ErrOriginMismatch, actorURI, doc.ID)
	}
	if doc.AttributedTo != "" && !util.SameDomain(actorURI, doc.AttributedTo) {
		return fmt.Errorf("%w: actor %s, attributedTo %s", ErrOriginMismatch, actorURI, doc.AttributedTo)
	}
	return nil
}

// communityFor finds the community an object is addressed to: the
// audience field when present, otherwise the first addressee that
// resolves to a Group. The public-audience marker is skipped.
func (f *Federator) communityFor(ctx context.Context, doc *ObjectDoc) (*domain.Actor, error) {
	candidates := make([]string, 0, 1+len(doc.To)+len(doc.Cc))
	if doc.Audience != "" {
		candidates = append(candidates, doc.Audience)
	}
	candidates = append(candidates, doc.To...)
	candidates = append(candidates, doc.Cc...)

	for _, uri := range candidates {
		if uri == PublicAudience {
			continue
		}
		actor, err := f.Resolver.Resolve(ctx, uri)
		if err != nil {
			continue
		}
		if actor.Kind == domain.ActorGroup {
			return actor, nil
		}
	}
	return nil, fmt.Errorf("%w: no community addressed by %s", ErrMalformed, doc.ID)
}

// upsertPostFromDoc stores a Page as a post, keyed by ap_id. The upsert is
// deliberate: a reaction on a not-yet-known post triggers an on-demand
// fetch that can race with the post's own Create, and both writers must
// converge.
func (f *Federator) upsertPostFromDoc(ctx context.Context, doc *ObjectDoc, updated time.Time) (*domain.Post, error) {
	creator, err := f.Resolver.Resolve(ctx, doc.AttributedTo)
	if err != nil {
		return nil, err
	}
	community, err := f.communityFor(ctx, doc)
	if err != nil {
		return nil, err
	}

	// Times are stored normalized to UTC so the storage layer's
	// last-write-wins comparison is total
	published := ParseTime(doc.Published, updated).UTC()
	post := &domain.Post{
		Id:          uuid.New(),
		ApID:        doc.ID,
		Title:       doc.Name,
		URL:         doc.URL,
		Body:        doc.Content,
		CreatorId:   creator.Id,
		CommunityId: community.Id,
		Published:   published,
		Updated:     updated.UTC(),
	}
	return f.DB.UpsertPost(post)
}

// upsertCommentFromDoc stores a Note as a comment. The parent referenced
// by inReplyTo may itself be unknown locally; in that case it is fetched
// on demand before the comment is stored.
func (f *Federator) upsertCommentFromDoc(ctx context.Context, doc *ObjectDoc, updated time.Time) (*domain.Comment, error) {
	creator, err := f.Resolver.Resolve(ctx, doc.AttributedTo)
	if err != nil {
		return nil, err
	}
	if doc.InReplyTo == "" {
		return nil, fmt.Errorf("%w: comment %s without inReplyTo", ErrMalformed, doc.ID)
	}

	postId, parentId, err := f.resolveCommentParent(ctx, doc.InReplyTo)
	if err != nil {
		return nil, err
	}

	published := ParseTime(doc.Published, updated).UTC()
	comment := &domain.Comment{
		Id:        uuid.New(),
		ApID:      doc.ID,
		PostId:    postId,
		ParentId:  parentId,
		CreatorId: creator.Id,
		Content:   doc.Content,
		Published: published,
		Updated:   updated.UTC(),
	}
	return f.DB.UpsertComment(comment)
}

// resolveCommentParent maps an inReplyTo URI to (post, optional parent
// comment), fetching the parent object when it is not yet known locally.
func (f *Federator) resolveCommentParent(ctx context.Context, inReplyTo string) (uuid.UUID, uuid.NullUUID, error) {
	var none uuid.NullUUID

	if post, err := f.DB.ReadPostByApID(inReplyTo); err != nil {
		return uuid.Nil, none, err
	} else if post != nil {
		return post.Id, none, nil
	}

	if parent, err := f.DB.ReadCommentByApID(inReplyTo); err != nil {
		return uuid.Nil, none, err
	} else if parent != nil {
		return parent.PostId, uuid.NullUUID{UUID: parent.Id, Valid: true}, nil
	}

	kind, id, err := f.fetchAndStoreObject(ctx, inReplyTo)
	if err != nil {
		return uuid.Nil, none, err
	}
	if kind == domain.ObjectComment {
		parent, err := f.DB.ReadCommentByApID(inReplyTo)
		if err != nil || parent == nil {
			return uuid.Nil, none, fmt.Errorf("fetched parent comment %s not stored: %w", inReplyTo, err)
		}
		return parent.PostId, uuid.NullUUID{UUID: parent.Id, Valid: true}, nil
	}
	return id, none, nil
}

// fetchAndStoreObject fetches a remote Page or Note by its URI and
// upserts it locally. Used when a reaction or reply references an object
// this instance has not seen a Create for.
func (f *Federator) fetchAndStoreObject(ctx context.Context, uri string) (string, uuid.UUID, error) {
	if err := f.Resolver.CheckApID(uri); err != nil {
		return "", uuid.Nil, err
	}

	body, err := f.Resolver.FetchDocument(ctx, uri)
	if err != nil {
		return "", uuid.Nil, err
	}

	var doc ObjectDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: object document: %v", ErrMalformed, err)
	}
	if doc.ID == "" || !util.SameDomain(doc.ID, uri) {
		return "", uuid.Nil, fmt.Errorf("%w: object document id %q for %s", ErrMalformed, doc.ID, uri)
	}
	// A document may only attribute content to an actor on its own domain
	if doc.AttributedTo != "" && !util.SameDomain(doc.ID, doc.AttributedTo) {
		return "", uuid.Nil, fmt.Errorf("%w: object %s attributed to %s", ErrOriginMismatch, doc.ID, doc.AttributedTo)
	}

	updated := ParseTime(doc.Updated, ParseTime(doc.Published, time.Now()))
	switch doc.Type {
	case ObjectPage:
		post, err := f.upsertPostFromDoc(ctx, &doc, updated)
		if err != nil {
			return "", uuid.Nil, err
		}
		return domain.ObjectPost, post.Id, nil
	case ObjectNote:
		comment, err := f.upsertCommentFromDoc(ctx, &doc, updated)
		if err != nil {
			return "", uuid.Nil, err
		}
		return domain.ObjectComment, comment.Id, nil
	}
	return "", uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownObjectType, doc.Type)
}
