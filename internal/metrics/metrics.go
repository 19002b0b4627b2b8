// Package metrics holds the Prometheus collectors exported by lifequest-api.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifequest"

var CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "engine",
	Name:      "commands_total",
	Help:      "Commands applied to game sessions by kind and result.",
}, []string{"kind", "result"})

var PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "engine",
	Name:      "phase_transitions_total",
	Help:      "Game phase transitions observed after a command.",
}, []string{"from", "to"})

var CrisesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "engine",
	Name:      "crises_total",
	Help:      "Crises started, by crisis name.",
}, []string{"name"})

var NarrativeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "narrative",
	Name:      "requests_total",
	Help:      "Narrative source requests by mode and outcome (ok, fallback).",
}, []string{"mode", "outcome"})

var NarrativeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "narrative",
	Name:      "latency_seconds",
	Help:      "Narrative source round-trip latency.",
	Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
}, []string{"mode"})

var HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route pattern and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// ObserveCommand counts one command; result is "ok", "rejected" or "error".
func ObserveCommand(kind, result string) {
	CommandsTotal.WithLabelValues(kind, result).Inc()
}

func ObservePhase(from, to string) {
	if from == to {
		return
	}
	PhaseTransitions.WithLabelValues(from, to).Inc()
}

func ObserveCrisis(name string) {
	CrisesTotal.WithLabelValues(name).Inc()
}

func ObserveNarrative(mode, outcome string, d time.Duration) {
	NarrativeRequests.WithLabelValues(mode, outcome).Inc()
	NarrativeLatency.WithLabelValues(mode).Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency keyed by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
