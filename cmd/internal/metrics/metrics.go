// Package metrics defines the portal's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"projectbank/cmd/internal/authstate"
)

// Metrics bundles every collector the portal records into.
type Metrics struct {
	reg prometheus.Gatherer

	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	GuardDecisionsTotal *prometheus.CounterVec
	AuthActionsTotal    *prometheus.CounterVec
	TransitionsTotal    *prometheus.CounterVec
	RateLimitedTotal    *prometheus.CounterVec
	VisitorsActive      prometheus.Gauge
	StatusStreamsActive prometheus.Gauge
}

var _ authstate.Observer = (*Metrics)(nil)

// New creates the collectors and registers them on a fresh registry that also
// carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on r and serves them from g.
func NewWithRegistry(r prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		reg: g,

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectbank_http_requests_total",
				Help: "HTTP requests by method, route and status class",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projectbank_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectbank_guard_decisions_total",
				Help: "Route guard decisions by requirement and action",
			},
			[]string{"requirement", "action"},
		),
		AuthActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectbank_auth_actions_total",
				Help: "Login, register and logout attempts by result",
			},
			[]string{"action", "result"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectbank_auth_transitions_total",
				Help: "Auth status transitions",
			},
			[]string{"from", "to"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectbank_ratelimit_rejected_total",
				Help: "Requests rejected by the auth throttle",
			},
			[]string{"action"},
		),
		VisitorsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "projectbank_visitors_active",
				Help: "Visitors with a live auth state",
			},
		),
		StatusStreamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "projectbank_auth_status_streams_active",
				Help: "Open auth status websocket streams",
			},
		),
	}

	r.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.GuardDecisionsTotal,
		m.AuthActionsTotal,
		m.TransitionsTotal,
		m.RateLimitedTotal,
		m.VisitorsActive,
		m.StatusStreamsActive,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, StatusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveDecision records one guard decision.
func (m *Metrics) ObserveDecision(requirement, action string) {
	if m == nil {
		return
	}
	m.GuardDecisionsTotal.WithLabelValues(requirement, action).Inc()
}

// ObserveTransition implements authstate.Observer.
func (m *Metrics) ObserveTransition(from, to authstate.Status) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
}

// ObserveAction implements authstate.Observer.
func (m *Metrics) ObserveAction(action string, ok bool) {
	if m == nil {
		return
	}
	result := "fail"
	if ok {
		result = "ok"
	}
	m.AuthActionsTotal.WithLabelValues(action, result).Inc()
}

// ObserveRateLimited records a throttled auth request.
func (m *Metrics) ObserveRateLimited(action string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(action).Inc()
}

// StatusClass maps 404 to "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
