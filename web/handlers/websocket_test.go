package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/osintgraph/web/handlers"
)

func upgradeRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestWebSocketHub_ValidatesOrigin(t *testing.T) {
	hub := handlers.NewWebSocketHub("localhost:6464", "*.example.org")
	defer hub.Stop()

	for _, origin := range []string{"http://evil.com", "http://localhost:9999", "not a url"} {
		w := httptest.NewRecorder()
		hub.ServeHTTP(w, upgradeRequest(origin))
		assert.Equal(t, http.StatusForbidden, w.Code, origin)
		assert.Contains(t, w.Body.String(), "Forbidden")
	}
}

func TestWebSocketHub_Broadcast(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	hub.Register(&handlers.MockClient{SendChan: received})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(map[string]interface{}{"type": "correlation.completed", "entities": 3})

	select {
	case msg := <-received:
		assert.Contains(t, string(msg), "correlation.completed")
		assert.Contains(t, string(msg), `"entities":3`)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast message")
	}
}

func TestWebSocketHub_DropsSlowClient(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	hub.Register(&handlers.MockClient{SendChan: make(chan []byte)})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast("event")
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketHub_DeliversToRealClient(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.Broadcast(map[string]string{"type": "session.reset"})

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.JSONEq(t, `{"type":"session.reset"}`, string(data))
}
