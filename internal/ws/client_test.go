package ws

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestClient upgrades a loopback connection and returns the server-side
// Client together with the peer end of the socket.
func dialTestClient(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })

	select {
	case conn := <-accepted:
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		return NewClient(conn, logger), peer
	case <-time.After(time.Second):
		t.Fatal("server never accepted the connection")
		return nil, nil
	}
}

func TestClientSendDeliversFrame(t *testing.T) {
	client, peer := dialTestClient(t)

	if err := client.Send([]byte(`{"type":"card_created"}`)); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	_ = peer.SetReadDeadline(time.Now().Add(time.Second))
	kind, payload, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("peer read failed: %v", err)
	}
	if kind != websocket.TextMessage || string(payload) != `{"type":"card_created"}` {
		t.Fatalf("unexpected frame: type=%d payload=%s", kind, payload)
	}
}

func TestClientCloseHandshake(t *testing.T) {
	client, peer := dialTestClient(t)

	client.Close()
	client.Close()

	_ = peer.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := peer.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal closure, got %v", err)
	}

	if err := client.Send([]byte("late")); err == nil {
		t.Fatal("send after close must fail")
	}
}
