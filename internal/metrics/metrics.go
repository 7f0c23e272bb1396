package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts webhook deliveries accepted for processing, by event type.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xcellar",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries accepted for processing, by event type.",
		},
		[]string{"event"},
	)

	// WebhookUnmatched counts webhook events dropped because their reference or
	// customer could not be matched to a local record.
	WebhookUnmatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xcellar",
			Name:      "webhook_unmatched_events_total",
			Help:      "Webhook events dropped because no local transaction or account matched.",
		},
	)

	// OrderBroadcasts counts delivery offers pushed to couriers.
	OrderBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "xcellar",
			Name:      "order_broadcasts_total",
			Help:      "Courier offer broadcasts sent for confirmed orders.",
		},
	)
)
