package relay

import (
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/matst80/hookcast/internal/obs"
	"github.com/matst80/hookcast/internal/proto"
)

// Headers that describe the hop to this server rather than the webhook itself;
// they are stripped before relaying (the client's forwarder sets its own).
var skipHeaders = map[string]bool{
	"Host":              true,
	"Content-Length":    true,
	"Origin":            true,
	"Connection":        true,
	"Upgrade":           true,
	"Keep-Alive":        true,
	"Proxy-Connection":  true,
	"Transfer-Encoding": true,
	"Te":                true,
	"Trailer":           true,
}

// IngressHandler accepts any inbound HTTP request, converts it to a wire
// message and hands it to the hub. The webhook sender always gets 200 with an
// empty body: the broadcast is fire-and-forget and zero connected members is
// not an error.
type IngressHandler struct {
	Hub     *Hub
	MaxBody int64
}

func NewIngressHandler(hub *Hub, maxBody int64) *IngressHandler {
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &IngressHandler{Hub: hub, MaxBody: maxBody}
}

func (h *IngressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.MaxBody))
	if err != nil {
		// Oversized or interrupted body: the sender still gets its 200, the
		// partial message is dropped.
		obs.Warn("ingress.body", obs.Fields{"err": err.Error(), "remote": r.RemoteAddr})
		obs.ErrorsTotal.WithLabelValues("ingress_body").Inc()
		obs.DroppedTotal.WithLabelValues("bad_body").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	msg := proto.RequestMessage{
		Method:   r.Method,
		FullPath: r.URL.RequestURI(),
		Headers:  collectHeaders(r.Header),
		Body:     body,
	}
	b, err := proto.EncodeRequest(msg)
	if err != nil {
		obs.Error("ingress.encode", obs.Fields{"err": err.Error()})
		obs.ErrorsTotal.WithLabelValues("ingress_encode").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	obs.WebhooksTotal.Inc()
	obs.WebhookBodyBytes.Observe(float64(len(body)))
	n := h.Hub.Broadcast(b)
	if n == 0 {
		obs.DroppedTotal.WithLabelValues("no_clients").Inc()
	}
	obs.Debug("ingress.relayed", obs.Fields{"method": r.Method, "path": msg.FullPath, "members": n, "bytes": len(body)})
	w.WriteHeader(http.StatusOK)
}

// collectHeaders flattens an http.Header map into ordered pairs. Names are
// sorted for determinism (the map has no order to preserve); per-name value
// order and duplicates survive.
func collectHeaders(h http.Header) []proto.Header {
	names := make([]string, 0, len(h))
	for name := range h {
		if skipHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	var out []proto.Header
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, proto.Header{Name: name, Value: v})
		}
	}
	return out
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}
