package realtime_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/garnizeh/fixit/internal/realtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startHub(t *testing.T) (*realtime.Hub, *httptest.Server) {
	t.Helper()
	hub := realtime.NewHub(nil, []string{"*"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, r.URL.Query().Get("user")); err != nil {
			t.Logf("serve: %v", err)
		}
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitConnected(t *testing.T, hub *realtime.Hub, user string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected(user) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections for %s, got %d", n, user, hub.Connected(user))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesOnlyTheTarget(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitConnected(t, hub, "alice", 1)
	waitConnected(t, hub, "bob", 1)

	hub.Publish("alice", realtime.Event{Type: realtime.EventMessageNew, Payload: map[string]string{"text": "hi"}})

	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := alice.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != realtime.EventMessageNew || ev.Payload["text"] != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	_ = bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatalf("bob should not receive alice's event")
	}
}

func TestHub_MultipleConnectionsPerUser(t *testing.T) {
	hub, srv := startHub(t)
	a1 := dial(t, srv, "alice")
	a2 := dial(t, srv, "alice")
	waitConnected(t, hub, "alice", 2)

	hub.Publish("alice", realtime.Event{Type: realtime.EventJobStatus, Payload: "x"})
	for i, c := range []*websocket.Conn{a1, a2} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := c.ReadMessage(); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t)
	c := dial(t, srv, "carol")
	waitConnected(t, hub, "carol", 1)

	_ = c.Close()
	waitConnected(t, hub, "carol", 0)

	// publishing to nobody is a no-op
	hub.Publish("carol", realtime.Event{Type: realtime.EventThreadRead})
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub, srv := startHub(t)
	c := dial(t, srv, "dave")
	waitConnected(t, hub, "dave", 1)

	hub.Close()
	waitConnected(t, hub, "dave", 0)

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c.ReadMessage(); err == nil {
		t.Fatalf("expected the connection to be closed")
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := realtime.NewHub(nil, []string{"https://app.example.com"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, "eve")
	}))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	if err == nil {
		t.Fatalf("expected dial to fail for a foreign origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
