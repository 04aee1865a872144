package forward

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/matst80/hookcast/internal/obs"
	"github.com/matst80/hookcast/internal/proto"
)

// Forwarder replays relayed requests against a local base URL. The local
// server's response is logged and discarded; failures never travel back up
// the tunnel.
type Forwarder struct {
	base   *url.URL
	client *http.Client
}

// New creates a forwarder for base (scheme + host; any path is ignored).
func New(base *url.URL) *Forwarder {
	return &Forwarder{
		base: base,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ResponseHeaderTimeout: 30 * time.Second,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// Forward issues msg as a fresh HTTP request against the local endpoint. The
// returned error is for the caller's log only.
func (f *Forwarder) Forward(ctx context.Context, msg proto.RequestMessage) error {
	u, err := url.Parse(msg.FullPath)
	if err != nil {
		return fmt.Errorf("bad path %q: %w", msg.FullPath, err)
	}
	// Only path and query come from the wire. A relayed request-target must
	// never pick the host: "//host/path" or an absolute URL would otherwise
	// steer the request away from the configured local endpoint.
	target := *f.base
	target.Opaque = ""
	target.Path = u.Path
	target.RawPath = u.RawPath
	target.RawQuery = u.RawQuery

	req, err := http.NewRequestWithContext(ctx, msg.Method, target.String(), bytes.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for _, h := range msg.Headers {
		// Host is derived from the local URL, never copied.
		if http.CanonicalHeaderKey(h.Name) == "Host" {
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward %s %s: %w", msg.Method, msg.FullPath, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	obs.Info("forward.done", obs.Fields{
		"method": msg.Method,
		"path":   msg.FullPath,
		"status": resp.StatusCode,
		"ms":     time.Since(start).Milliseconds(),
	})
	return nil
}
