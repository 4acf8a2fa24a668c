package activitypub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	conf := &util.AppConfig{}
	conf.Conf.Domain = "lattice.example"
	conf.Conf.ActorRefreshHours = 24

	return NewResolver(database, conf)
}

func TestCheckApID(t *testing.T) {
	r := newTestResolver(t)

	if err := r.CheckApID("https://ds9.lemmy.ml/u/sisko"); err != nil {
		t.Errorf("Expected https URI to pass, got %v", err)
	}

	if err := r.CheckApID("ftp://ds9.lemmy.ml/u/sisko"); !errors.Is(err, ErrInvalidActor) {
		t.Errorf("Expected ErrInvalidActor for non-http scheme, got %v", err)
	}

	if err := r.CheckApID("https://"); !errors.Is(err, ErrInvalidActor) {
		t.Errorf("Expected ErrInvalidActor for hostless URI, got %v", err)
	}
}

func TestCheckApIDBlockList(t *testing.T) {
	r := newTestResolver(t)
	r.conf.Conf.BlockedDomains = []string{"evil.example"}

	if err := r.CheckApID("https://evil.example/u/mallory"); !errors.Is(err, ErrForbiddenDomain) {
		t.Errorf("Expected ErrForbiddenDomain for blocked domain, got %v", err)
	}
	if err := r.CheckApID("https://ds9.lemmy.ml/u/sisko"); err != nil {
		t.Errorf("Expected non-blocked domain to pass, got %v", err)
	}
}

func TestCheckApIDAllowList(t *testing.T) {
	r := newTestResolver(t)
	r.conf.Conf.AllowedDomains = []string{"trusted.example"}

	if err := r.CheckApID("https://trusted.example/u/alice"); err != nil {
		t.Errorf("Expected allow-listed domain to pass, got %v", err)
	}
	if err := r.CheckApID("https://ds9.lemmy.ml/u/sisko"); !errors.Is(err, ErrForbiddenDomain) {
		t.Errorf("Expected ErrForbiddenDomain outside allow list, got %v", err)
	}
	// This instance's own domain is always allowed
	if err := r.CheckApID("https://lattice.example/c/main"); err != nil {
		t.Errorf("Expected own domain to pass, got %v", err)
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	r := newTestResolver(t)

	var fetches int64
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&fetches, 1)
		w.Header().Set("Content-Type", "application/activity+json")
		fmt.Fprintf(w, `{
			"id": "%s/u/alice",
			"type": "Person",
			"preferredUsername": "alice",
			"inbox": "%s/u/alice/inbox",
			"endpoints": {"sharedInbox": "%s/inbox"},
			"publicKey": {"id": "%s/u/alice#main-key", "owner": "%s/u/alice", "publicKeyPem": "-----BEGIN PUBLIC KEY-----"}
		}`, srvURL, srvURL, srvURL, srvURL, srvURL)
	}))
	defer srv.Close()
	srvURL = srv.URL

	uri := srv.URL + "/u/alice"
	actor, err := r.Resolve(context.Background(), uri)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if actor.Username != "alice" {
		t.Errorf("Expected username 'alice', got '%s'", actor.Username)
	}
	if actor.SharedInboxURI != srv.URL+"/inbox" {
		t.Errorf("Expected shared inbox, got '%s'", actor.SharedInboxURI)
	}
	if actor.Kind != domain.ActorPerson {
		t.Errorf("Expected Person, got '%s'", actor.Kind)
	}

	// Second resolution must come from the cache, not the network
	if _, err := r.Resolve(context.Background(), uri); err != nil {
		t.Fatalf("Cached Resolve failed: %v", err)
	}
	if n := atomic.LoadInt64(&fetches); n != 1 {
		t.Errorf("Expected 1 remote fetch, got %d", n)
	}

	// The fetched actor is persisted, not just cached in memory
	stored, err := r.db.ReadActorByURI(uri)
	if err != nil {
		t.Fatalf("ReadActorByURI failed: %v", err)
	}
	if stored == nil {
		t.Error("Expected the resolved actor to be stored")
	}
}

func TestResolveFreshBypassesCache(t *testing.T) {
	r := newTestResolver(t)

	var fetches int64
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&fetches, 1)
		fmt.Fprintf(w, `{
			"id": "%s/u/alice",
			"type": "Person",
			"preferredUsername": "alice",
			"inbox": "%s/u/alice/inbox",
			"publicKey": {"publicKeyPem": "-----BEGIN PUBLIC KEY-----\nkey-%d"}
		}`, srvURL, srvURL, atomic.LoadInt64(&fetches))
	}))
	defer srv.Close()
	srvURL = srv.URL

	uri := srv.URL + "/u/alice"
	if _, err := r.Resolve(context.Background(), uri); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// A forced refresh ignores both cache layers and picks up the new key
	refreshed, err := r.ResolveFresh(context.Background(), uri)
	if err != nil {
		t.Fatalf("ResolveFresh failed: %v", err)
	}
	if atomic.LoadInt64(&fetches) != 2 {
		t.Errorf("Expected 2 remote fetches, got %d", fetches)
	}
	if refreshed.PublicKeyPem != "-----BEGIN PUBLIC KEY-----\nkey-2" {
		t.Errorf("Expected the rotated key, got %q", refreshed.PublicKeyPem)
	}
}

func TestResolveRejectsMismatchedDocument(t *testing.T) {
	r := newTestResolver(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Document claims an id on a different host than it was fetched from
		fmt.Fprint(w, `{
			"id": "https://elsewhere.example/u/alice",
			"type": "Person",
			"inbox": "https://elsewhere.example/u/alice/inbox",
			"publicKey": {"publicKeyPem": "-----BEGIN PUBLIC KEY-----"}
		}`)
	}))
	defer srv.Close()

	_, err := r.Resolve(context.Background(), srv.URL+"/u/alice")
	if !errors.Is(err, ErrMalformedActor) {
		t.Errorf("Expected ErrMalformedActor for mismatched document, got %v", err)
	}
}

func TestResolveRejectsIncompleteDocument(t *testing.T) {
	r := newTestResolver(t)

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// No inbox, no key
		fmt.Fprintf(w, `{"id": "%s/u/alice", "type": "Person"}`, srvURL)
	}))
	defer srv.Close()
	srvURL = srv.URL

	_, err := r.Resolve(context.Background(), srv.URL+"/u/alice")
	if !errors.Is(err, ErrMalformedActor) {
		t.Errorf("Expected ErrMalformedActor for incomplete document, got %v", err)
	}
}

func TestResolveFetchFailure(t *testing.T) {
	r := newTestResolver(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := r.Resolve(context.Background(), srv.URL+"/u/ghost")
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed for 404, got %v", err)
	}
}

func TestResolveCoercesUnknownActorType(t *testing.T) {
	r := newTestResolver(t)

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, `{
			"id": "%s/u/relay",
			"type": "Service",
			"preferredUsername": "relay",
			"inbox": "%s/u/relay/inbox",
			"publicKey": {"publicKeyPem": "-----BEGIN PUBLIC KEY-----"}
		}`, srvURL, srvURL)
	}))
	defer srv.Close()
	srvURL = srv.URL

	actor, err := r.Resolve(context.Background(), srv.URL+"/u/relay")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if actor.Kind != domain.ActorPerson {
		t.Errorf("Expected a Service actor to behave as Person, got '%s'", actor.Kind)
	}
}

func TestInvalidate(t *testing.T) {
	r := newTestResolver(t)

	actor := &domain.Actor{ActorURI: "https://ds9.lemmy.ml/u/sisko"}
	r.cache.Add(actor.ActorURI, actor)

	r.Invalidate(actor.ActorURI)
	if _, ok := r.cache.Get(actor.ActorURI); ok {
		t.Error("Expected the actor to be evicted from the cache")
	}
}
