package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection Registry Metrics
var (
	// RegistryActiveConnections tracks currently registered connections
	RegistryActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_active_connections",
			Help: "Currently registered WebSocket connections",
		},
	)

	// RegistryConnectionsTotal tracks accepted and rejected handshakes
	RegistryConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_connections_total",
			Help: "Connection attempts by outcome (accepted/rejected)",
		},
		[]string{"outcome"},
	)

	// RegistryMessagesSentTotal tracks frames successfully written to clients
	RegistryMessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_messages_sent_total",
			Help: "Frames successfully written to clients",
		},
	)

	// RegistryWriteFailuresTotal tracks transport write failures (each evicts the connection)
	RegistryWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_write_failures_total",
			Help: "Transport write failures, each causing a disconnect",
		},
	)

	// RegistryQueueDroppedTotal tracks messages evicted by drop-oldest backpressure
	RegistryQueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_queue_dropped_total",
			Help: "Messages evicted from outbound queues by drop-oldest backpressure",
		},
	)

	// RegistryPanicsTotal tracks registry actor panic recoveries
	RegistryPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_panics_total",
			Help: "Registry actor panic recoveries",
		},
	)

	// RegistryStopTimeoutsTotal tracks registry stops that exceeded timeout
	RegistryStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_stop_timeouts_total",
			Help: "Registry stops that exceeded timeout",
		},
	)
)

// Batch Scheduler Metrics
var (
	// SchedulerFlushesTotal tracks completed flush cycles
	SchedulerFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_flushes_total",
			Help: "Completed batch flush cycles",
		},
	)

	// SchedulerBatchSize tracks messages per flushed batch
	SchedulerBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_batch_size",
			Help:    "Messages per flushed batch",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// SchedulerFlushDuration tracks flush latency in seconds
	SchedulerFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_flush_duration_seconds",
			Help:    "Batch flush duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)

	// SchedulerPendingMessages tracks messages waiting for the next tick
	SchedulerPendingMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_pending_messages",
			Help: "Messages buffered awaiting the next flush tick",
		},
	)
)

// Orchestrator Metrics
var (
	// OrchestratorActiveIncidents tracks incidents currently being processed
	OrchestratorActiveIncidents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_active_incidents",
			Help: "Incidents currently being processed",
		},
	)

	// OrchestratorIncidentsTotal tracks finished incident runs by outcome
	OrchestratorIncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_incidents_total",
			Help: "Finished incident runs by outcome (completed/failed/timeout)",
		},
		[]string{"outcome"},
	)

	// OrchestratorPhaseDuration tracks per-phase callback duration in seconds
	OrchestratorPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_phase_duration_seconds",
			Help:    "Per-phase callback duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"phase"},
	)

	// OrchestratorPhaseFailuresTotal tracks phase aborts by cause
	OrchestratorPhaseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_phase_failures_total",
			Help: "Phase aborts by phase and cause (error/timeout)",
		},
		[]string{"phase", "cause"},
	)
)

// Relay Metrics
var (
	// RelayPublishedTotal tracks messages published to the cross-instance channel
	RelayPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Messages published to the cross-instance relay channel",
		},
	)

	// RelayReceivedTotal tracks remote messages enqueued locally
	RelayReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_received_total",
			Help: "Remote relay messages enqueued into the local scheduler",
		},
	)

	// RelayDroppedTotal tracks relay messages dropped by cause
	RelayDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dropped_total",
			Help: "Relay messages dropped by cause (buffer_full/breaker_open/publish_error/decode_error)",
		},
		[]string{"cause"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Server Metrics
var (
	// ServerConnectionRejectionsTotal tracks WS route rejections by reason
	ServerConnectionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "server_connection_rejections_total",
			Help: "WebSocket route rejections by reason (rate_limit/registry_full)",
		},
		[]string{"reason"},
	)

	// BuildInfo exposes build metadata as a constant gauge
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information (constant 1, labeled with version and commit)",
		},
		[]string{"version", "commit"},
	)
)
