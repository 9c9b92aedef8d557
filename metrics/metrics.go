// Package metrics exposes Prometheus collectors for the HTTP layer and the
// application engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bursary_http_requests_total",
			Help: "Total HTTP requests handled by the bursary API.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bursary_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ApplicationsCreated counts successfully stored applications.
	ApplicationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bursary_applications_created_total",
		Help: "Applications accepted and stored.",
	})

	// StatusTransitions counts committed status changes by target status.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bursary_status_transitions_total",
			Help: "Committed application status transitions.",
		},
		[]string{"status"},
	)

	// ReferenceCollisions counts reference candidates rejected by the store.
	ReferenceCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bursary_reference_collisions_total",
		Help: "Generated references that collided with an existing one.",
	})

	// EngineRejections counts refused operations by error kind.
	EngineRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bursary_engine_rejections_total",
			Help: "Engine operations refused, by error kind.",
		},
		[]string{"operation", "kind"},
	)

	// Notifications counts notifier deliveries by event and outcome.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bursary_notifications_total",
			Help: "Notification delivery attempts.",
		},
		[]string{"event", "result"},
	)

	DeadlineCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bursary_deadline_cache_hits_total",
		Help: "Deadline window lookups served from cache.",
	})
	DeadlineCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bursary_deadline_cache_misses_total",
		Help: "Deadline window lookups that went to the store.",
	})

	// OrphanBlobsRemoved counts blobs deleted by the cleanup job.
	OrphanBlobsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bursary_orphan_blobs_removed_total",
		Help: "Unreferenced document blobs removed by cleanup.",
	})
)

// Middleware records request count and latency. Paths are labelled by route
// template so reference numbers do not blow up cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
