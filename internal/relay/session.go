package relay

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matst80/hookcast/internal/obs"
	"github.com/matst80/hookcast/internal/proto"
	"github.com/matst80/hookcast/internal/ratelimit"
)

// SessionConfig bounds the per-connection timeouts of a server-side session.
type SessionConfig struct {
	Secret       string
	AuthTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
}

func (c *SessionConfig) withDefaults() SessionConfig {
	out := *c
	if out.AuthTimeout <= 0 {
		out.AuthTimeout = 10 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.PingInterval <= 0 {
		out.PingInterval = 30 * time.Second
	}
	if out.PongTimeout <= 0 {
		out.PongTimeout = 2 * out.PingInterval
	}
	return out
}

// TunnelHandler upgrades inbound connections on the tunnel endpoint and runs
// the session state machine: unauthenticated -> authenticated (hub member) ->
// closed. Closed is terminal; the connection is never reused.
type TunnelHandler struct {
	Hub     *Hub
	Config  SessionConfig
	Limiter *ratelimit.Limiter // optional, keyed by remote IP

	upgrader websocket.Upgrader
}

func NewTunnelHandler(hub *Hub, cfg SessionConfig, limiter *ratelimit.Limiter) *TunnelHandler {
	return &TunnelHandler{
		Hub:     hub,
		Config:  cfg.withDefaults(),
		Limiter: limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients are CLI processes, not browsers; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *TunnelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	remote := r.RemoteAddr
	if h.Limiter != nil && !h.Limiter.Allow(remoteIP(remote)) {
		obs.Error("tunnel.ratelimited", obs.Fields{"remote": remote})
		obs.ErrorsTotal.WithLabelValues("tunnel_ratelimited").Inc()
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		obs.Error("tunnel.upgrade", obs.Fields{"err": err.Error(), "remote": remote})
		obs.ErrorsTotal.WithLabelValues("upgrade").Inc()
		return
	}
	h.serve(conn, remote)
}

func (h *TunnelHandler) serve(conn *websocket.Conn, remote string) {
	defer conn.Close()
	cfg := h.Config

	// Handshake: first client frame carries the credential, bounded deadline.
	_ = conn.SetReadDeadline(time.Now().Add(cfg.AuthTimeout))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		obs.Error("tunnel.auth.read", obs.Fields{"err": err.Error(), "remote": remote})
		obs.ErrorsTotal.WithLabelValues("auth_read").Inc()
		return
	}
	auth, err := proto.DecodeAuth(frame)
	if err != nil {
		obs.Error("tunnel.auth.decode", obs.Fields{"err": err.Error(), "remote": remote})
		obs.ErrorsTotal.WithLabelValues("auth_decode").Inc()
		h.reject(conn, "malformed handshake")
		return
	}
	if auth.Version != proto.Version {
		obs.Error("tunnel.auth.version", obs.Fields{"got": auth.Version, "want": proto.Version, "remote": remote})
		obs.ErrorsTotal.WithLabelValues("auth_version").Inc()
		h.reject(conn, "protocol version mismatch")
		return
	}
	if auth.Secret != cfg.Secret {
		obs.Error("tunnel.auth.secret", obs.Fields{"remote": remote})
		obs.ErrorsTotal.WithLabelValues("auth_secret").Inc()
		h.reject(conn, "unauthorized")
		return
	}
	if err := h.writeReply(conn, proto.AuthReply{OK: true, Msg: "ok"}); err != nil {
		obs.Error("tunnel.auth.ack", obs.Fields{"err": err.Error(), "remote": remote})
		return
	}

	m := h.Hub.Register(auth.Name)
	defer h.Hub.Unregister(m)
	start := time.Now()
	obs.Info("client.registered", obs.Fields{"id": m.ID, "name": auth.Name, "remote": remote})
	defer func() {
		obs.SessionDurationSeconds.Observe(time.Since(start).Seconds())
		obs.Info("client.gone", obs.Fields{"id": m.ID, "name": auth.Name, "remote": remote})
	}()

	// Reader pump: nothing but control frames is expected after the handshake;
	// its job is liveness (pongs) and noticing the peer going away.
	done := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})
	conn.SetPingHandler(func(payload string) error {
		_ = conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(cfg.WriteTimeout))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Writer pump owns every data write on the connection.
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-m.C():
			if !ok {
				// Evicted (overflow) or hub shutdown.
				deadline := time.Now().Add(cfg.WriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				obs.Error("tunnel.write", obs.Fields{"err": err.Error(), "id": m.ID, "name": m.Name})
				obs.ErrorsTotal.WithLabelValues("session_write").Inc()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				obs.ErrorsTotal.WithLabelValues("session_ping").Inc()
				return
			}
		case <-done:
			return
		}
	}
}

func (h *TunnelHandler) reject(conn *websocket.Conn, reason string) {
	_ = h.writeReply(conn, proto.AuthReply{OK: false, Msg: reason})
}

func (h *TunnelHandler) writeReply(conn *websocket.Conn, reply proto.AuthReply) error {
	b, err := proto.EncodeAuthReply(reply)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(h.Config.WriteTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, b)
}
