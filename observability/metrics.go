package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type ledgerMetrics struct {
	transitions *prometheus.CounterVec
	events      *prometheus.CounterVec
	height      prometheus.Gauge
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// RPCMetrics returns the lazily-initialised registry recording JSON-RPC
// activity per module and method.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dq",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dq",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dq",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.errors, rpcRegistry.latency)
	})
	return rpcRegistry
}

// Observe records the outcome of an RPC request. A zero errCode marks success.
func (m *rpcMetrics) Observe(method string, errCode int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if errCode != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", errCode)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// LedgerMetrics returns the registry tracking committed state transitions and
// emitted events.
func LedgerMetrics() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dq",
				Subsystem: "ledger",
				Name:      "transitions_total",
				Help:      "Count of state transitions segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dq",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Count of ledger events segmented by event type.",
			}, []string{"type"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "dq",
				Subsystem: "ledger",
				Name:      "height",
				Help:      "Number of committed state transitions.",
			}),
		}
		prometheus.MustRegister(ledgerRegistry.transitions, ledgerRegistry.events, ledgerRegistry.height)
	})
	return ledgerRegistry
}

// RecordTransition counts a state transition attempt by operation name.
func (m *ledgerMetrics) RecordTransition(op string, committed bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if committed {
		outcome = "committed"
	}
	m.transitions.WithLabelValues(op, outcome).Inc()
}

// RecordEvent counts an emitted ledger event by type.
func (m *ledgerMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

// SetHeight publishes the latest committed height.
func (m *ledgerMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}
