package dispatch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func wsPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return <-conns, client
}

func TestNotifyNoSession(t *testing.T) {
	reg := NewWSRegistry()
	if err := reg.Notify("h1", MatchNotice{RequestID: "r1"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestNotifyEvictsDeadSession(t *testing.T) {
	server, _ := wsPair(t)
	reg := NewWSRegistry()
	reg.Add("h1", server)

	if err := reg.Notify("h1", MatchNotice{RequestID: "r1", Event: "matched"}); err != nil {
		t.Fatalf("live session notify failed: %v", err)
	}

	server.Close()
	if err := reg.Notify("h1", MatchNotice{RequestID: "r1", Event: "selected"}); err == nil {
		t.Fatal("expected write error on closed conn")
	}
	// the dead session must be gone, not retried forever
	if err := reg.Notify("h1", MatchNotice{RequestID: "r1"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("dead session should have been evicted, got %v", err)
	}
}

func TestRemoveKeepsNewerSession(t *testing.T) {
	first, _ := wsPair(t)
	second, _ := wsPair(t)
	reg := NewWSRegistry()
	old := reg.Add("h1", first)
	reg.Add("h1", second)

	// stale removal from the old connection's read pump must not
	// evict the reconnected dashboard
	reg.Remove("h1", old)
	if err := reg.Notify("h1", MatchNotice{RequestID: "r1"}); err != nil {
		t.Fatalf("newer session should survive stale removal: %v", err)
	}
}
