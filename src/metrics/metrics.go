// Package metrics provides Prometheus metrics for polyferno nodes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the propagation engine. Every metric
// is labelled with the id of the node so that several nodes can share a
// process, as they do in tests.
type Metrics struct {
	// Propagation metrics
	ReceivedTotal     *prometheus.CounterVec
	SentTotal         *prometheus.CounterVec
	SuppressedTotal   *prometheus.CounterVec
	SendErrorsTotal   *prometheus.CounterVec
	BroadcastDuration *prometheus.HistogramVec

	// State metrics
	InboxSize *prometheus.GaugeVec
	Round     *prometheus.GaugeVec
}

// DefaultMetrics is registered with the default Prometheus registry.
var DefaultMetrics = NewMetrics("polyferno", prometheus.DefaultRegisterer)

// NewMetrics creates a new Metrics instance with the given namespace and
// registers it with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReceivedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_total",
			Help:      "Total number of BroadcastRequests received",
		}, []string{"node"}),
		SentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_total",
			Help:      "Total number of BroadcastRequests handed to the transport",
		}, []string{"node"}),
		SuppressedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_total",
			Help:      "Total number of sends skipped because the neighbor already had the origin",
		}, []string{"node"}),
		SendErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total number of sends refused or lost by the transport",
		}, []string{"node"}),
		BroadcastDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_duration_seconds",
			Help:      "Duration of one forwarding step",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"node"}),

		InboxSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbox_size",
			Help:      "Number of origins held in the inbox of the current round",
		}, []string{"node"}),
		Round: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round",
			Help:      "Current round of the node",
		}, []string{"node"}),
	}
}

// RecordReceive records an inbound BroadcastRequest.
func (m *Metrics) RecordReceive(node string) {
	m.ReceivedTotal.WithLabelValues(node).Inc()
}

// RecordBroadcast records the outcome of one forwarding step.
func (m *Metrics) RecordBroadcast(node string, sent, suppressed, failed int, duration time.Duration) {
	m.SentTotal.WithLabelValues(node).Add(float64(sent))
	m.SuppressedTotal.WithLabelValues(node).Add(float64(suppressed))
	m.SendErrorsTotal.WithLabelValues(node).Add(float64(failed))
	m.BroadcastDuration.WithLabelValues(node).Observe(duration.Seconds())
}

// RecordSendFailure records a request the transport accepted but could not
// deliver.
func (m *Metrics) RecordSendFailure(node string) {
	m.SendErrorsTotal.WithLabelValues(node).Inc()
}

// UpdateState updates the state gauges.
func (m *Metrics) UpdateState(node string, round uint64, inboxSize int) {
	m.Round.WithLabelValues(node).Set(float64(round))
	m.InboxSize.WithLabelValues(node).Set(float64(inboxSize))
}
