package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lattice-fed/lattice/domain"
)

func TestHubBroadcastsToSubscriber(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// Registration races the publish; give the hub loop a beat
	time.Sleep(50 * time.Millisecond)

	sent := domain.Notification{
		ObjectKind: domain.ObjectPost,
		ObjectId:   uuid.New(),
		Change:     "created",
	}
	hub.Publish(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var got domain.Notification
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Broadcast is not valid JSON: %v", err)
	}
	if got.ObjectKind != sent.ObjectKind || got.ObjectId != sent.ObjectId || got.Change != sent.Change {
		t.Errorf("Expected %+v, got %+v", sent, got)
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	// No Run loop draining the broadcast channel
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(domain.Notification{ObjectKind: domain.ObjectPost, Change: "created"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a saturated hub")
	}
}
