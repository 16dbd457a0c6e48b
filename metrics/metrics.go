// agora/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	PostsAppended    prometheus.Counter
	ThreadsCreated   prometheus.Counter
	PostsDeleted     *prometheus.CounterVec
	SessionRotations prometheus.Counter
	CacheLookups     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PostsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agora", Name: "posts_appended_total",
			Help: "Posts appended to existing threads.",
		}),
		ThreadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agora", Name: "threads_created_total",
			Help: "Threads created with their opening post.",
		}),
		PostsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agora", Name: "posts_deleted_total",
			Help: "Post deletions, by whether the whole thread went with it.",
		}, []string{"scope"}),
		SessionRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agora", Name: "session_rotations_total",
			Help: "Session identifiers regenerated on privilege change.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agora", Name: "cache_lookups_total",
			Help: "Listing cache lookups, by result.",
		}, []string{"result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agora", Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PostsAppended, m.ThreadsCreated, m.PostsDeleted,
		m.SessionRotations, m.CacheLookups, m.requestDuration,
	)
	return m
}

// PostDeleted counts one deletion. A deleted opening post removes its thread.
func (m *Metrics) PostDeleted(threadDeleted bool) {
	scope := "post"
	if threadDeleted {
		scope = "thread"
	}
	m.PostsDeleted.WithLabelValues(scope).Inc()
}

func (m *Metrics) CacheResult(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware observes request latency labelled by the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
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
		m.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
