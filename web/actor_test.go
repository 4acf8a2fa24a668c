package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

func actorRouter(database *db.DB, conf *util.AppConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/u/:name", func(c *gin.Context) {
		HandlePerson(c, database, conf)
	})
	router.GET("/c/:name", func(c *gin.Context) {
		HandleCommunity(c, database, conf)
	})
	return router
}

func TestHandlePerson(t *testing.T) {
	database, conf := newTestEnv(t)
	alice := seedLocalActor(t, database, "alice", domain.ActorPerson)
	router := actorRouter(database, conf)

	req := httptest.NewRequest("GET", "/u/alice", nil)
	req.Header.Set("Accept", "application/activity+json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var doc struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Inbox     string `json:"inbox"`
		Endpoints struct {
			SharedInbox string `json:"sharedInbox"`
		} `json:"endpoints"`
		PublicKey struct {
			ID           string `json:"id"`
			Owner        string `json:"owner"`
			PublicKeyPem string `json:"publicKeyPem"`
		} `json:"publicKey"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}

	if doc.ID != alice.ActorURI {
		t.Errorf("Expected id %s, got %s", alice.ActorURI, doc.ID)
	}
	if doc.Type != "Person" {
		t.Errorf("Expected type Person, got %s", doc.Type)
	}
	if doc.Inbox != alice.InboxURI {
		t.Errorf("Expected inbox %s, got %s", alice.InboxURI, doc.Inbox)
	}
	if doc.Endpoints.SharedInbox != "https://lattice.example/inbox" {
		t.Errorf("Expected shared inbox endpoint, got %s", doc.Endpoints.SharedInbox)
	}
	if doc.PublicKey.ID != alice.KeyId() {
		t.Errorf("Expected key id %s, got %s", alice.KeyId(), doc.PublicKey.ID)
	}
	if doc.PublicKey.PublicKeyPem == "" {
		t.Error("Expected a public key in the document")
	}
}

func TestHandleCommunity(t *testing.T) {
	database, conf := newTestEnv(t)
	main := seedLocalActor(t, database, "main", domain.ActorGroup)
	router := actorRouter(database, conf)

	req := httptest.NewRequest("GET", "/c/main", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var doc struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}
	if doc.ID != main.ActorURI {
		t.Errorf("Expected id %s, got %s", main.ActorURI, doc.ID)
	}
	if doc.Type != "Group" {
		t.Errorf("Expected type Group, got %s", doc.Type)
	}
}

func TestHandleActorNotFound(t *testing.T) {
	database, conf := newTestEnv(t)
	router := actorRouter(database, conf)

	req := httptest.NewRequest("GET", "/u/ghost", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestHandleActorGone(t *testing.T) {
	database, conf := newTestEnv(t)
	alice := seedLocalActor(t, database, "alice", domain.ActorPerson)
	if err := database.SetActorDeleted(alice.ActorURI, true); err != nil {
		t.Fatalf("SetActorDeleted failed: %v", err)
	}
	router := actorRouter(database, conf)

	req := httptest.NewRequest("GET", "/u/alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusGone {
		t.Errorf("Expected 410 for deleted actor, got %d", w.Code)
	}
}

// Person and Group namespaces are disjoint: a community name does not
// resolve as a person.
func TestActorKindNamespaces(t *testing.T) {
	database, conf := newTestEnv(t)
	seedLocalActor(t, database, "main", domain.ActorGroup)
	router := actorRouter(database, conf)

	req := httptest.NewRequest("GET", "/u/main", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for community looked up as person, got %d", w.Code)
	}
}
