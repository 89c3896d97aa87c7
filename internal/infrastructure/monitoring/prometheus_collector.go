package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Connections
	connectionsActive  prometheus.Gauge
	connectionsTotal   prometheus.Counter
	slowClientsDropped prometheus.Counter

	// Signaling
	messagesReceived *prometheus.CounterVec
	relayed          *prometheus.CounterVec

	// Analysis
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	scans            *prometheus.CounterVec
	scanDuration     *prometheus.HistogramVec
}

// NewPrometheusCollector registers every metric with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lenslink_connections_active",
			Help: "Number of open websocket connections",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lenslink_connections_total",
			Help: "Total number of websocket connections accepted",
		}),

		slowClientsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lenslink_slow_clients_dropped_total",
			Help: "Connections closed because their send queue was full",
		}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lenslink_messages_received_total",
			Help: "Inbound websocket messages by type",
		}, []string{"type"}),

		relayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lenslink_signaling_relayed_total",
			Help: "Point-to-point signaling messages by kind and result",
		}, []string{"kind", "result"}),

		providerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lenslink_provider_calls_total",
			Help: "AI provider calls by provider, operation and result",
		}, []string{"provider", "operation", "result"}),

		providerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lenslink_provider_call_duration_seconds",
			Help:    "Duration of AI provider calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"provider", "operation"}),

		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lenslink_scans_total",
			Help: "Captures and follow-ups by outcome",
		}, []string{"flow", "outcome"}),

		scanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lenslink_scan_duration_seconds",
			Help:    "End-to-end duration of captures and follow-ups",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"flow"}),
	}
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsActive.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {
	p.connectionsActive.Dec()
}

func (p *PrometheusCollector) MessageReceived(msgType string) {
	p.messagesReceived.WithLabelValues(msgType).Inc()
}

func (p *PrometheusCollector) RelayDelivered(kind string) {
	p.relayed.WithLabelValues(kind, "delivered").Inc()
}

func (p *PrometheusCollector) RelayDropped(kind string) {
	p.relayed.WithLabelValues(kind, "dropped").Inc()
}

func (p *PrometheusCollector) SlowClientDropped() {
	p.slowClientsDropped.Inc()
}

func (p *PrometheusCollector) ObserveProviderCall(provider, operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	p.providerCalls.WithLabelValues(provider, operation, result).Inc()
	p.providerDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func (p *PrometheusCollector) ObserveCapture(outcome string, duration time.Duration) {
	p.scans.WithLabelValues("capture", outcome).Inc()
	p.scanDuration.WithLabelValues("capture").Observe(duration.Seconds())
}

func (p *PrometheusCollector) ObserveFollowUp(outcome string, duration time.Duration) {
	p.scans.WithLabelValues("followup", outcome).Inc()
	p.scanDuration.WithLabelValues("followup").Observe(duration.Seconds())
}
