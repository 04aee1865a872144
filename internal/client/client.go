package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/matst80/hookcast/internal/forward"
	"github.com/matst80/hookcast/internal/history"
	"github.com/matst80/hookcast/internal/obs"
	"github.com/matst80/hookcast/internal/proto"
)

// ErrAuthRejected means the server refused the handshake. Retrying cannot
// succeed, so the reconnect loop stops on it.
var ErrAuthRejected = errors.New("handshake rejected by server")

// Config describes one tunnel: where to connect, how to authenticate and
// where to replay received requests.
type Config struct {
	Remote *url.URL // ws(s) URL including the tunnel path
	Local  *url.URL // http(s) base URL of the local server
	Name   string
	Secret string

	HandshakeTimeout time.Duration // default 10s
	PingInterval     time.Duration // default 20s
	MaxRetryInterval time.Duration // default 30s
	Reconnect        bool
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = 10 * time.Second
	}
	if out.PingInterval <= 0 {
		out.PingInterval = 20 * time.Second
	}
	if out.MaxRetryInterval <= 0 {
		out.MaxRetryInterval = 30 * time.Second
	}
	return out
}

// Client maintains the tunnel and replays each broadcast request against the
// local server. Local responses are logged and dropped; they never travel
// back up the tunnel.
type Client struct {
	cfg   Config
	fwd   *forward.Forwarder
	store history.Store // optional
}

func New(cfg Config, store history.Store) *Client {
	cfg = cfg.withDefaults()
	return &Client{cfg: cfg, fwd: forward.New(cfg.Local), store: store}
}

// Run connects and relays until ctx is cancelled. With Reconnect set it
// retries with capped backoff; an auth rejection is terminal either way.
func (c *Client) Run(ctx context.Context) error {
	b := &backoff.Backoff{Min: time.Second, Max: c.cfg.MaxRetryInterval, Jitter: true}
	for {
		authed, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthRejected) {
			return err
		}
		if !c.cfg.Reconnect {
			return err
		}
		if authed {
			b.Reset()
		}
		d := b.Duration()
		obs.Warn("tunnel.disconnected", obs.Fields{"err": errString(err), "retry_in": d.String()})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// runOnce performs one connect/auth/relay cycle. The bool reports whether the
// handshake completed, so the caller can reset its backoff.
func (c *Client) runOnce(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.Remote.String(), nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.Remote, err)
	}
	defer conn.Close()

	frame, err := proto.EncodeAuth(proto.Auth{Version: proto.Version, Name: c.cfg.Name, Secret: c.cfg.Secret})
	if err != nil {
		return false, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return false, fmt.Errorf("send handshake: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("read handshake reply: %w", err)
	}
	reply, err := proto.DecodeAuthReply(raw)
	if err != nil {
		return false, err
	}
	if !reply.OK {
		return false, fmt.Errorf("%w: %s", ErrAuthRejected, reply.Msg)
	}
	obs.Info("tunnel.connected", obs.Fields{"remote": c.cfg.Remote.String(), "local": c.cfg.Local.String()})

	// Unblock the read loop on shutdown.
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-sessionDone:
		}
	}()

	// Keepalive pings; the ticker goroutine owns all post-handshake writes.
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-sessionDone:
				return
			}
		}
	}()

	readTimeout := 3 * c.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				obs.Info("tunnel.closed", obs.Fields{})
				return true, nil
			}
			return true, fmt.Errorf("tunnel read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if kind != websocket.BinaryMessage {
			continue
		}
		msg, err := proto.DecodeRequest(raw)
		if err != nil {
			// Malformed frame: drop it, keep the session.
			obs.Warn("tunnel.decode", obs.Fields{"err": err.Error()})
			continue
		}
		c.record(ctx, msg)
		go func(msg proto.RequestMessage) {
			if err := c.fwd.Forward(ctx, msg); err != nil {
				obs.Error("forward.failed", obs.Fields{"err": err.Error(), "method": msg.Method, "path": msg.FullPath})
			}
		}(msg)
	}
}

func (c *Client) record(ctx context.Context, msg proto.RequestMessage) {
	if c.store == nil {
		return
	}
	item := history.Item{ReceivedAt: time.Now().UTC(), Request: msg}
	if _, err := c.store.Add(ctx, item); err != nil {
		obs.Error("history.add", obs.Fields{"err": err.Error()})
	}
}

func errString(err error) string {
	if err == nil {
		return "eof"
	}
	return err.Error()
}
