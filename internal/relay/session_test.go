package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/matst80/hookcast/internal/proto"
	"github.com/matst80/hookcast/internal/ratelimit"
)

func newTestServer(t *testing.T, hub *Hub, secret string) *httptest.Server {
	t.Helper()
	handler := NewTunnelHandler(hub, SessionConfig{
		Secret:       secret,
		AuthTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PingInterval: 50 * time.Millisecond,
		PongTimeout:  5 * time.Second,
	}, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func handshake(t *testing.T, conn *websocket.Conn, secret string) proto.AuthReply {
	t.Helper()
	b, err := proto.EncodeAuth(proto.Auth{Version: proto.Version, Name: "test", Secret: secret})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, b))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	reply, err := proto.DecodeAuthReply(frame)
	require.NoError(t, err)
	return reply
}

func waitForMembers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub membership = %d, want %d", hub.Len(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionAuthSuccess(t *testing.T) {
	hub := NewHub(8)
	srv := newTestServer(t, hub, "abc123")
	conn := dialTest(t, srv)

	reply := handshake(t, conn, "abc123")
	require.True(t, reply.OK)
	waitForMembers(t, hub, 1)

	// Broadcast reaches the socket.
	msg, err := proto.EncodeRequest(proto.RequestMessage{Method: "POST", FullPath: "/hook", Body: []byte("x")})
	require.NoError(t, err)
	hub.Broadcast(msg)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	got, err := proto.DecodeRequest(frame)
	require.NoError(t, err)
	require.Equal(t, "POST", got.Method)
	require.Equal(t, "/hook", got.FullPath)
}

func TestSessionAuthWrongSecret(t *testing.T) {
	hub := NewHub(8)
	srv := newTestServer(t, hub, "abc123")
	conn := dialTest(t, srv)

	reply := handshake(t, conn, "wrong")
	require.False(t, reply.OK)
	require.Equal(t, "unauthorized", reply.Msg)
	require.Equal(t, 0, hub.Len())

	// The server closes the connection after the rejection.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestSessionAuthVersionMismatch(t *testing.T) {
	hub := NewHub(8)
	srv := newTestServer(t, hub, "abc123")
	conn := dialTest(t, srv)

	b, err := proto.EncodeAuth(proto.Auth{Version: proto.Version + 1, Name: "test", Secret: "abc123"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, b))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	reply, err := proto.DecodeAuthReply(frame)
	require.NoError(t, err)
	require.False(t, reply.OK)
	require.Equal(t, 0, hub.Len())
}

func TestSessionAuthTimeout(t *testing.T) {
	hub := NewHub(8)
	handler := NewTunnelHandler(hub, SessionConfig{
		Secret:      "abc123",
		AuthTimeout: 100 * time.Millisecond,
	}, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Send nothing: the server must drop the connection once the handshake
	// deadline passes, without the hub ever gaining a member.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	require.Equal(t, 0, hub.Len())
}

func TestSessionMalformedHandshake(t *testing.T) {
	hub := NewHub(8)
	srv := newTestServer(t, hub, "abc123")
	conn := dialTest(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	reply, err := proto.DecodeAuthReply(frame)
	require.NoError(t, err)
	require.False(t, reply.OK)
	require.Equal(t, 0, hub.Len())
}

func TestSessionDisconnectUnregisters(t *testing.T) {
	hub := NewHub(8)
	srv := newTestServer(t, hub, "abc123")
	conn := dialTest(t, srv)

	reply := handshake(t, conn, "abc123")
	require.True(t, reply.OK)
	waitForMembers(t, hub, 1)

	conn.Close()
	waitForMembers(t, hub, 0)

	// Subsequent broadcasts do not attempt delivery to it.
	require.Equal(t, 0, hub.Broadcast([]byte("after")))
}

func TestTunnelHandlerRateLimit(t *testing.T) {
	hub := NewHub(8)
	handler := NewTunnelHandler(hub, SessionConfig{Secret: "s"}, ratelimit.NewLimiter(0, 1, 1))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
