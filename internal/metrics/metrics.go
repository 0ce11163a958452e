// Package metrics collects connection and request framing statistics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "framer"

// Metrics is safe to use with a nil receiver, in which case nothing is collected.
type Metrics struct {
	registry      *prometheus.Registry
	requests      prometheus.Counter
	parseErrors   prometheus.Counter
	continues     prometheus.Counter
	handlerFaults prometheus.Counter
	connEnds      *prometheus.CounterVec
	openConns     prometheus.Gauge
	responseCodes *prometheus.CounterVec
}

// New registers the collectors in a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests whose headers were completely parsed",
		}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Total number of connections aborted due to malformed requests",
		}),
		continues: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "continue_responses_total",
			Help:      "Total number of interim 100 Continue responses sent",
		}),
		handlerFaults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_faults_total",
			Help:      "Total number of requests failed by the handler or the response transport",
		}),
		connEnds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_cycle_ends_total",
			Help:      "Request cycles by the fate of the connection",
		}, []string{"kind"}),
		openConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Current number of open connections",
		}),
		responseCodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of responses by status code",
		}, []string{"code"}),
	}
}

// Registry returns the registry holding the collectors, e.g. to be exposed via promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

func (m *Metrics) RequestParsed() {
	if m != nil {
		m.requests.Inc()
	}
}

func (m *Metrics) ParseError() {
	if m != nil {
		m.parseErrors.Inc()
	}
}

func (m *Metrics) ContinueSent() {
	if m != nil {
		m.continues.Inc()
	}
}

func (m *Metrics) HandlerFault() {
	if m != nil {
		m.handlerFaults.Inc()
	}
}

// Response counts the response by its code, which is passed as a ready string to avoid
// conversions on a hot path.
func (m *Metrics) Response(code string) {
	if m != nil {
		m.responseCodes.WithLabelValues(code).Inc()
	}
}

// CycleEnded counts how a request cycle has ended: keep-alive or disconnect.
func (m *Metrics) CycleEnded(kind string) {
	if m != nil {
		m.connEnds.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.openConns.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.openConns.Dec()
	}
}
