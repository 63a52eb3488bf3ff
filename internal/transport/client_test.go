package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newEchoServer starts a WebSocket server that answers chain_getBlockHash
// with a fixed result and supports one subscription method that pushes a
// single notification shortly after subscribing.
func newEchoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Method {
			case "chain_subscribeNewHeads":
				resp := Response{JSONRPC: "2.0", ID: &req.ID, Result: json.RawMessage(`"sub-1"`)}
				conn.WriteJSON(resp)
				go func() {
					time.Sleep(20 * time.Millisecond)
					notif := map[string]any{
						"jsonrpc": "2.0",
						"method":  "chain_newHead",
						"params": map[string]any{
							"subscription": "sub-1",
							"result":       map[string]any{"number": "0x2a"},
						},
					}
					conn.WriteJSON(notif)
				}()
			case "chain_unsubscribeNewHeads":
				resp := Response{JSONRPC: "2.0", ID: &req.ID, Result: json.RawMessage(`true`)}
				conn.WriteJSON(resp)
			default:
				resp := Response{JSONRPC: "2.0", ID: &req.ID, Result: json.RawMessage(`"ok"`)}
				conn.WriteJSON(resp)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestSendRoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	c := New(wsURL(srv.URL), false)
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := c.Send(ctx, "system_properties", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if string(result) != `"ok"` {
		t.Errorf("result = %s, want \"ok\"", result)
	}
}

func TestSubscribeDeliversNotificationThenUnsubscribeIsIdempotent(t *testing.T) {
	srv := newEchoServer(t)
	c := New(wsURL(srv.URL), false)
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan string, 1)
	unsubscribe, err := c.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads", []any{}, func(result json.RawMessage) {
		received <- string(result)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case got := <-received:
		if !strings.Contains(got, "0x2a") {
			t.Errorf("notification result = %s, want to contain 0x2a", got)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	unsubscribe()
	unsubscribe() // must be a no-op, not panic or double-RPC
}

func TestSendContextCancellation(t *testing.T) {
	// A server that never replies, so Send must honor ctx cancellation.
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(wsURL(srv.URL), false)
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Send(ctx, "state_getMetadata", nil)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}
