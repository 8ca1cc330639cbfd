package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "devicehub_websocket_connections_active",
			Help: "Number of open device websocket connections",
		},
	)

	WebSocketDisconnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicehub_websocket_disconnections_total",
			Help: "Total number of device disconnections by reason",
		},
		[]string{"reason"},
	)

	WebSocketDroppedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicehub_websocket_dropped_messages_total",
			Help: "Total number of server events that could not be delivered",
		},
		[]string{"type"},
	)

	PresenceEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "devicehub_presence_entries",
			Help: "Number of identities with a live presence entry",
		},
	)

	PresenceSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devicehub_presence_superseded_total",
			Help: "Total number of presence entries replaced by a newer connection",
		},
	)

	PresenceStaleUnregisters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devicehub_presence_stale_unregisters_total",
			Help: "Total number of disconnects ignored because the entry was already superseded",
		},
	)

	SessionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicehub_session_outcomes_total",
			Help: "Identification outcomes by kind",
		},
		[]string{"outcome"},
	)

	SessionRejectedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicehub_session_rejected_events_total",
			Help: "Device events rejected for the current session state",
		},
		[]string{"event", "state"},
	)

	SessionStoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicehub_session_store_failures_total",
			Help: "Identity store failures observed by session handlers",
		},
		[]string{"operation"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicehub_commands_total",
			Help: "Operator commands by kind and result",
		},
		[]string{"command", "result"},
	)

	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicehub_auth_attempts_total",
			Help: "Register and login attempts by result",
		},
		[]string{"operation", "result"},
	)

	AccessTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "access_tokens_issued_total",
			Help: "Total number of access tokens issued",
		},
	)
)
