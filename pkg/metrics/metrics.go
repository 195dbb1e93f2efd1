// Package metrics exposes Prometheus collectors for the bridge. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/morezero/command-bridge/pkg/dispatcher"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "bridge").
	Namespace string
	// Registry is where collectors are registered (default: prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
	// Buckets are the histogram buckets for dispatch duration.
	Buckets []float64
}

// Metrics holds the bridge collectors.
type Metrics struct {
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	pending          prometheus.Gauge
	ticksTotal       prometheus.Counter
	tickDrained      prometheus.Histogram
	connectionsOpen  prometheus.Gauge
	connectionsTotal prometheus.Counter
	pingsTotal       prometheus.Counter
	rejectedTotal    *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "bridge"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "commands_total",
			Help:      "Total number of dispatched commands by type and status",
		}, []string{"type", "status"}),

		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent processing one command on the host tick",
			Buckets:   cfg.Buckets,
		}, []string{"type"}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pending_commands",
			Help:      "Commands queued and waiting for the next tick",
		}),

		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "ticks_total",
			Help:      "Total number of host ticks that ran the dispatcher",
		}),

		tickDrained: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "tick_drained_commands",
			Help:      "Commands processed per non-empty tick",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
		}),

		connectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "connections_open",
			Help:      "Currently open client connections",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "connections_total",
			Help:      "Total accepted client connections",
		}),

		pingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "pings_total",
			Help:      "Ping requests answered without queueing",
		}),

		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "rejected_total",
			Help:      "Requests rejected before reaching the queue, by reason",
		}, []string{"reason"}),
	}
}

// CommandCompleted implements dispatcher.Observer.
func (m *Metrics) CommandCompleted(_ context.Context, o dispatcher.Outcome) {
	if m == nil {
		return
	}
	cmdType := o.Type
	if cmdType == "" {
		cmdType = "invalid"
	}
	m.commandsTotal.WithLabelValues(cmdType, o.Status).Inc()
	m.commandDuration.WithLabelValues(cmdType).Observe(o.Duration.Seconds())
}

// TickCompleted implements dispatcher.TickObserver.
func (m *Metrics) TickCompleted(drained int, _ time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	if drained > 0 {
		m.tickDrained.Observe(float64(drained))
	}
}

// SetPending records the current queue depth.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsOpen.Inc()
}

// ConnectionClosed records a closed connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsOpen.Dec()
}

// Ping records a fast-path ping.
func (m *Metrics) Ping() {
	if m == nil {
		return
	}
	m.pingsTotal.Inc()
}

// Rejected records a request that never reached the queue.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}
