package main

import (
	"sync"
	"time"

	"github.com/matst80/hookcast/internal/relay"
)

// Stats represents current server stats for dashboards & API.
type Stats struct {
	Clients   int    `json:"clients"`
	Webhooks  int64  `json:"webhooks"`
	Delivered int64  `json:"delivered"`
	Now       string `json:"now"`
}

func collectStats(hub *relay.Hub) Stats {
	members, broadcasts, delivered := hub.Stats()
	return Stats{Clients: members, Webhooks: broadcasts, Delivered: delivered, Now: time.Now().UTC().Format(time.RFC3339)}
}

// ToTemplateMap returns a map suited for html/template rendering with expected capitalized keys.
func (s Stats) ToTemplateMap() map[string]any {
	return map[string]any{
		"Clients":   s.Clients,
		"Webhooks":  s.Webhooks,
		"Delivered": s.Delivered,
	}
}

// serverStatus tracks readiness for the health endpoints.
type serverStatus struct {
	mu      sync.Mutex
	ready   bool
	closing bool
}

func newServerStatus() *serverStatus { return &serverStatus{} }

func (s *serverStatus) setReady(v bool)   { s.mu.Lock(); s.ready = v; s.mu.Unlock() }
func (s *serverStatus) setClosing(v bool) { s.mu.Lock(); s.closing = v; s.mu.Unlock() }

func (s *serverStatus) ok() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && !s.closing
}
