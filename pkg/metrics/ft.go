package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded for a served command. They mirror the error taxonomy
// used in the server logs.
const (
	OutcomeOK         = "ok"
	OutcomeCapacity   = "capacity"
	OutcomeFilesystem = "filesystem"
	OutcomeTransport  = "transport"
	OutcomeProtocol   = "protocol"
)

// Transfer directions.
const (
	DirectionUpload   = "upload"
	DirectionDownload = "download"
	DirectionListing  = "listing"
)

// FTMetrics provides observability for the file transfer adapter.
//
// If not provided to the adapter, a no-op implementation is used.
type FTMetrics interface {
	// RecordCommand records a completed command with its verb, duration
	// and outcome (one of the Outcome* constants).
	RecordCommand(verb string, duration time.Duration, outcome string)

	// RecordCommandStart increments the in-flight counter for verb.
	RecordCommandStart(verb string)

	// RecordCommandEnd decrements the in-flight counter for verb.
	RecordCommandEnd(verb string)

	// RecordBytesTransferred records payload bytes moved in direction.
	RecordBytesTransferred(direction string, bytes int64)

	// RecordLockWait records how long a command waited for its lock.
	RecordLockWait(verb string, wait time.Duration)

	// SetLockRegistrySize reports the number of file locks ever created.
	SetLockRegistrySize(n int)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionThrottled increments the counter of connections
	// delayed by the accept rate limiter.
	RecordConnectionThrottled()
}

// ftMetrics is the Prometheus implementation of FTMetrics.
type ftMetrics struct {
	commandsTotal        *prometheus.CounterVec
	commandDuration      *prometheus.HistogramVec
	commandsInFlight     *prometheus.GaugeVec
	bytesTransferred     *prometheus.CounterVec
	lockWait             *prometheus.HistogramVec
	lockRegistrySize     prometheus.Gauge
	activeConnections    prometheus.Gauge
	connectionsAccepted  prometheus.Counter
	connectionsClosed    prometheus.Counter
	connectionsThrottled prometheus.Counter
}

// NewFTMetrics creates a Prometheus-backed FTMetrics, or a no-op
// implementation when metrics are not enabled.
func NewFTMetrics() FTMetrics {
	if !IsEnabled() {
		return NewNoopFTMetrics()
	}

	return newFTMetrics(GetRegistry())
}

func newFTMetrics(reg prometheus.Registerer) *ftMetrics {
	return &ftMetrics{
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftserver_commands_total",
				Help: "Total number of commands by verb and outcome",
			},
			[]string{"verb", "outcome"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftserver_command_duration_seconds",
				Help:    "Duration of commands in seconds, payload streaming included",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~4.4min
			},
			[]string{"verb"},
		),
		commandsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ftserver_commands_in_flight",
				Help: "Current number of commands being served",
			},
			[]string{"verb"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftserver_bytes_transferred_total",
				Help: "Total payload bytes moved by direction",
			},
			[]string{"direction"},
		),
		lockWait: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftserver_lock_wait_seconds",
				Help:    "Time spent waiting for a file lock or the registry lock",
				Buckets: prometheus.ExponentialBuckets(0.0001, 10, 7), // 100us .. 100s
			},
			[]string{"verb"},
		),
		lockRegistrySize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "ftserver_lock_registry_entries",
				Help: "Number of file locks created since start (never evicted)",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "ftserver_active_connections",
				Help: "Current number of active connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ftserver_connections_accepted_total",
				Help: "Total number of connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ftserver_connections_closed_total",
				Help: "Total number of connections closed",
			},
		),
		connectionsThrottled: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ftserver_connections_throttled_total",
				Help: "Total number of accepts delayed by the accept rate limit",
			},
		),
	}
}

func (m *ftMetrics) RecordCommand(verb string, duration time.Duration, outcome string) {
	m.commandsTotal.WithLabelValues(verb, outcome).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

func (m *ftMetrics) RecordCommandStart(verb string) {
	m.commandsInFlight.WithLabelValues(verb).Inc()
}

func (m *ftMetrics) RecordCommandEnd(verb string) {
	m.commandsInFlight.WithLabelValues(verb).Dec()
}

func (m *ftMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *ftMetrics) RecordLockWait(verb string, wait time.Duration) {
	m.lockWait.WithLabelValues(verb).Observe(wait.Seconds())
}

func (m *ftMetrics) SetLockRegistrySize(n int) {
	m.lockRegistrySize.Set(float64(n))
}

func (m *ftMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *ftMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *ftMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *ftMetrics) RecordConnectionThrottled() {
	m.connectionsThrottled.Inc()
}

// NewNoopFTMetrics returns an FTMetrics that discards everything.
func NewNoopFTMetrics() FTMetrics {
	return noopFTMetrics{}
}

// noopFTMetrics is a no-op implementation of FTMetrics with zero overhead.
type noopFTMetrics struct{}

func (noopFTMetrics) RecordCommand(verb string, duration time.Duration, outcome string) {}
func (noopFTMetrics) RecordCommandStart(verb string)                                    {}
func (noopFTMetrics) RecordCommandEnd(verb string)                                      {}
func (noopFTMetrics) RecordBytesTransferred(direction string, bytes int64)              {}
func (noopFTMetrics) RecordLockWait(verb string, wait time.Duration)                    {}
func (noopFTMetrics) SetLockRegistrySize(n int)                                         {}
func (noopFTMetrics) SetActiveConnections(count int32)                                  {}
func (noopFTMetrics) RecordConnectionAccepted()                                         {}
func (noopFTMetrics) RecordConnectionClosed()                                           {}
func (noopFTMetrics) RecordConnectionThrottled()                                        {}
