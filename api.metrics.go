package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics groups the prometheus collectors of the api. They live on a
// private registry so that several handlers can coexist in tests.
type Metrics struct {
	registry         *prometheus.Registry
	InflightRequests prometheus.Gauge
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	BookOperations   *prometheus.CounterVec
}

// NewMetrics builds and registers the api collectors along with the go runtime ones.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		InflightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bookcatalog",
			Name:      "http_inflight_requests",
			Help:      "Number of requests currently being served.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookcatalog",
			Name:      "http_requests_total",
			Help:      "Number of processed requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookcatalog",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of processed requests by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BookOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookcatalog",
			Name:      "book_operations_total",
			Help:      "Number of book operations by name and outcome.",
		}, []string{"operation", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.InflightRequests,
		m.RequestsTotal,
		m.RequestDuration,
		m.BookOperations,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler(logger *zap.Logger) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(logger),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// ObserveBookOperation counts the outcome of a book operation.
func (m *Metrics) ObserveBookOperation(operation, outcome string) {
	m.BookOperations.WithLabelValues(operation, outcome).Inc()
}

// MetricsMiddleware records count and duration of each request. The route label is
// the registered pattern so that book keys do not blow up the series cardinality.
func (api *APIHandler) MetricsMiddleware(route string) MiddlewareFunc {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			api.metrics.InflightRequests.Inc()
			defer api.metrics.InflightRequests.Dec()

			cw, ok := w.(*CustomResponseWriter)
			if !ok {
				cw = NewCustomResponseWriter(w)
			}
			start := time.Now()
			next(cw, r, ps)

			api.metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(cw.Status())).Inc()
			api.metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
	}
}
