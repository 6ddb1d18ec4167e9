package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(zap.NewNop().Sugar())
	go hub.Run(ctx)

	up := Upgrader([]string{"http://allowed.test"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(&up, w, r, "subject-1"); err != nil {
			t.Logf("upgrade failed: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastsRefreshHints(t *testing.T) {
	hub, srv := startHub(t)

	conn, _, err := dial(t, srv, "http://allowed.test")
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	evt := domain.ReportEvent{ID: "evt-1", Type: domain.EventReportDeleted, ReportID: "r-1"}
	if err := hub.PublishReportEvent(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "refresh" || msg.Event.ReportID != "r-1" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, srv := startHub(t)

	conn, _, err := dial(t, srv, "")
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	waitFor(t, func() bool { return hub.Clients() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, srv := startHub(t)

	_, resp, err := dial(t, srv, "http://evil.test")
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	for i := 0; i < broadcastBuffer+5; i++ {
		if err := hub.PublishReportEvent(context.Background(), domain.ReportEvent{ID: "x"}); err != nil {
			t.Fatalf("publish must not fail: %v", err)
		}
	}
}
