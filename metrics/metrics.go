// Package metrics exposes Prometheus collectors for the api server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the docsign metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	requestsCreated     prometheus.Counter
	requestsCancelled   prometheus.Counter
	statusTransitions   *prometheus.CounterVec
	requestsExpired     prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsign",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docsign",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		requestsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docsign",
			Name:      "signature_requests_created_total",
			Help:      "Signature requests created.",
		}),
		requestsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docsign",
			Name:      "signature_requests_cancelled_total",
			Help:      "Signature requests cancelled by a client.",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsign",
			Name:      "signature_status_transitions_total",
			Help:      "Provider status updates applied, by target status.",
		}, []string{"status"}),
		requestsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docsign",
			Name:      "signature_requests_expired_total",
			Help:      "Signature requests expired by the sweeper.",
		}),
	}
	c.registry.MustRegister(
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.requestsCreated,
		c.requestsCancelled,
		c.statusTransitions,
		c.requestsExpired,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RequestCreated()   { c.requestsCreated.Inc() }
func (c *Collector) RequestCancelled() { c.requestsCancelled.Inc() }

func (c *Collector) StatusTransition(status string) {
	c.statusTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) RequestsExpired(n int) {
	if n > 0 {
		c.requestsExpired.Add(float64(n))
	}
}

// Middleware records count and latency per chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		c.httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		c.httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
