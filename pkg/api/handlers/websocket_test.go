package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/pkg/logger"
)

func newSocketServer(t *testing.T, reply func(string, string) (string, error), cfg WebSocketConfig) (*httptest.Server, *ChatSocketHandler) {
	t.Helper()
	router := newTestRouter(t, reply)
	o := newTestOrchestrator(t, router, newTestExecutor(t))
	h := NewChatSocketHandler(o, logger.Nop(), cfg)
	server := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		server.Close()
	})
	return server, h
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readTurn collects frames until the done frame and returns the concatenated
// token content plus the done frame.
func readTurn(t *testing.T, conn *websocket.Conn) (string, wsFrame) {
	t.Helper()
	var text strings.Builder
	deadline := time.Now().Add(10 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame wsFrame
		require.NoError(t, conn.ReadJSON(&frame))
		switch frame.Type {
		case "token":
			text.WriteString(frame.Content)
		case "done", "error":
			return text.String(), frame
		default:
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
	}
}

func TestChatSocketStreamsTurn(t *testing.T) {
	server, _ := newSocketServer(t, chatReply("Streaming works over websockets."), WebSocketConfig{})
	conn := dial(t, server)

	require.NoError(t, conn.WriteJSON(map[string]any{"message": "say something"}))

	text, done := readTurn(t, conn)
	assert.Equal(t, "done", done.Type)
	assert.NotEmpty(t, done.Model)
	assert.Equal(t, "Streaming works over websockets.", text)
}

func TestChatSocketEmptyMessage(t *testing.T) {
	server, _ := newSocketServer(t, chatReply("unused"), WebSocketConfig{})
	conn := dial(t, server)

	require.NoError(t, conn.WriteJSON(map[string]any{"message": "  "}))

	_, frame := readTurn(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.NotEmpty(t, frame.Error)
}

func TestChatSocketConnectionLimit(t *testing.T) {
	server, h := newSocketServer(t, chatReply("hi"), WebSocketConfig{MaxConnections: 1})
	first := dial(t, server)
	defer first.Close()

	// The second connection is refused before the upgrade.
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 503, resp.StatusCode)
	}
	assert.Equal(t, 1, h.Count())
}

func TestSplitTokens(t *testing.T) {
	tests := []struct {
		in  string
		out []string
	}{
		{"one two three", []string{"one ", "two ", "three"}},
		{"no-spaces", []string{"no-spaces"}},
		{"", nil},
		{"line one\nline two", []string{"line ", "one\n", "line ", "two"}},
		{"שלום עולם", []string{"שלום ", "עולם"}},
	}
	for _, tt := range tests {
		got := splitTokens(tt.in)
		assert.Equal(t, tt.out, got, "%q", tt.in)
		assert.Equal(t, tt.in, strings.Join(got, ""), "concatenation reproduces input")
	}
}
