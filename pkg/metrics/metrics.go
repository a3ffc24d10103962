package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket metrics, labelled by engine ("presence" | "location")
	ActiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "The current number of active WebSocket connections.",
	}, []string{"engine"})
	TotalConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	}, []string{"engine"})
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_messages_received_total",
		Help: "The total number of frames received from clients.",
	}, []string{"engine"})
	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_messages_dropped_total",
		Help: "The total number of malformed or unroutable frames dropped.",
	}, []string{"engine"})

	// Relay metrics
	StatusBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_status_broadcasts_total",
		Help: "The total number of status_update frames fanned out to parents.",
	})
	LocationPushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_location_pushes_total",
		Help: "The total number of location frames fanned out to parents.",
	})
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_send_failures_total",
		Help: "The total number of failed pushes to subscriber connections.",
	})
	OfflineSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_offline_transitions_total",
		Help: "The total number of children flipped offline by the liveness sweep.",
	})
)
