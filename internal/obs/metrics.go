package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveClients          = promauto.NewGauge(prometheus.GaugeOpts{Name: "hookcast_active_clients", Help: "Currently authenticated tunnel clients"})
	WebhooksTotal          = promauto.NewCounter(prometheus.CounterOpts{Name: "hookcast_webhooks_received_total", Help: "Inbound webhook requests accepted"})
	DeliveredTotal         = promauto.NewCounter(prometheus.CounterOpts{Name: "hookcast_messages_delivered_total", Help: "Messages handed off to member queues"})
	DroppedTotal           = promauto.NewCounterVec(prometheus.CounterOpts{Name: "hookcast_messages_dropped_total", Help: "Messages dropped by reason"}, []string{"reason"})
	ErrorsTotal            = promauto.NewCounterVec(prometheus.CounterOpts{Name: "hookcast_errors_total", Help: "Errors by type"}, []string{"type"})
	WebhookBodyBytes       = promauto.NewHistogram(prometheus.HistogramOpts{Name: "hookcast_webhook_body_bytes", Help: "Inbound webhook body size", Buckets: prometheus.ExponentialBuckets(64, 4, 10)})
	SessionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "hookcast_session_duration_seconds", Help: "Authenticated session lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.1, 2, 16)})
)
