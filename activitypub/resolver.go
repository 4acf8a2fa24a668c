package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

const actorCacheSize = 512

// ActorDocument represents the JSON structure of an ActivityPub actor
type ActorDocument struct {
	Context           interface{} `json:"@context"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              string      `json:"name"`
	Summary           string      `json:"summary"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	PublicKey struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// Resolver turns actor URIs into usable actor records. Lookups go memory
// LRU -> database -> remote fetch; fetched documents are upserted so that
// concurrent resolutions of the same URI converge on one row.
type Resolver struct {
	db      *db.DB
	conf    *util.AppConfig
	client  *http.Client
	cache   *lru.Cache[string, *domain.Actor]
	refresh time.Duration
}

func NewResolver(database *db.DB, conf *util.AppConfig) *Resolver {
	cache, err := lru.New[string, *domain.Actor](actorCacheSize)
	if err != nil {
		panic(err)
	}
	return &Resolver{
		db:      database,
		conf:    conf,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		refresh: time.Duration(conf.Conf.ActorRefreshHours) * time.Hour,
	}
}

// CheckApID validates that a federated URI is well-formed and points at a
// domain this instance is willing to talk to.
func (r *Resolver) CheckApID(uri string) error {
	if !strings.HasPrefix(uri, "https://") && !strings.HasPrefix(uri, "http://") {
		return fmt.Errorf("%w: %s", ErrInvalidActor, uri)
	}
	host, err := util.ExtractDomain(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidActor, err)
	}
	if slices.Contains(r.conf.Conf.BlockedDomains, host) {
		return fmt.Errorf("%w: %s", ErrForbiddenDomain, host)
	}
	allowed := r.conf.Conf.AllowedDomains
	if len(allowed) > 0 && host != strings.ToLower(r.conf.Conf.Domain) && !slices.Contains(allowed, host) {
		return fmt.Errorf("%w: %s", ErrForbiddenDomain, host)
	}
	return nil
}

// Resolve returns the actor for a URI, fetching and upserting from the
// remote server when the cached record is absent or stale.
func (r *Resolver) Resolve(ctx context.Context, actorURI string) (*domain.Actor, error) {
	if err := r.CheckApID(actorURI); err != nil {
		return nil, err
	}

	if cached, ok := r.cache.Get(actorURI); ok {
		if cached.Local || time.Since(cached.LastRefreshedAt) < r.refresh {
			return cached, nil
		}
	}

	stored, err := r.db.ReadActorByURI(actorURI)
	if err != nil {
		return nil, err
	}
	if stored != nil && (stored.Local || time.Since(stored.LastRefreshedAt) < r.refresh) {
		r.cache.Add(actorURI, stored)
		return stored, nil
	}

	return r.fetchAndUpsert(ctx, actorURI)
}

// ResolveFresh bypasses both cache layers and forces a remote fetch, used
// after a signature mismatch that may indicate a rotated key.
func (r *Resolver) ResolveFresh(ctx context.Context, actorURI string) (*domain.Actor, error) {
	if err := r.CheckApID(actorURI); err != nil {
		return nil, err
	}
	return r.fetchAndUpsert(ctx, actorURI)
}

// fetchAndUpsert fetches an actor document from a remote server, parses
// it and stores it in the cache. Not retried here; the caller decides.
func (r *Resolver) fetchAndUpsert(ctx context.Context, actorURI string) (*domain.Actor, error) {
	body, err := r.FetchDocument(ctx, actorURI)
	if err != nil {
		return nil, err
	}

	var doc ActorDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedActor, err)
	}

	// Required fields, and the document must describe the URI we asked for
	if doc.ID == "" || doc.Inbox == "" || doc.PublicKey.PublicKeyPem == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrMalformedActor)
	}
	if !util.SameDomain(doc.ID, actorURI) {
		return nil, fmt.Errorf("%w: document id %s does not match %s", ErrMalformedActor, doc.ID, actorURI)
	}

	domainName, err := util.ExtractDomain(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedActor, err)
	}

	kind := doc.Type
	if kind != domain.ActorPerson && kind != domain.ActorGroup {
		// Services, applications etc. behave like persons for our purposes
		kind = domain.ActorPerson
	}

	actor := &domain.Actor{
		Id:              uuid.New(),
		Kind:            kind,
		Username:        doc.PreferredUsername,
		Domain:          domainName,
		ActorURI:        doc.ID,
		DisplayName:     doc.Name,
		Summary:         doc.Summary,
		InboxURI:        doc.Inbox,
		SharedInboxURI:  doc.Endpoints.SharedInbox,
		OutboxURI:       doc.Outbox,
		PublicKeyPem:    doc.PublicKey.PublicKeyPem,
		LastRefreshedAt: time.Now(),
		CreatedAt:       time.Now(),
	}

	if err := r.db.UpsertActor(actor); err != nil {
		return nil, fmt.Errorf("failed to store actor: %w", err)
	}

	// Re-read so concurrent resolvers all end up with the surviving row
	stored, err := r.db.ReadActorByURI(doc.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = actor
	}

	r.cache.Add(actorURI, stored)
	if doc.ID != actorURI {
		r.cache.Add(doc.ID, stored)
	}
	return stored, nil
}

// FetchDocument GETs a federated document with the ActivityPub accept
// header and a bounded timeout.
func (r *Resolver) FetchDocument(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", util.Name+"/"+util.Version+" ActivityPub")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFetchFailed, resp.StatusCode, uri)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return body, nil
}

// Invalidate drops an actor from the memory cache, forcing the next
// Resolve to consult the database.
func (r *Resolver) Invalidate(actorURI string) {
	r.cache.Remove(actorURI)
}
