// Package metrics holds the Prometheus collectors of the rating service.
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

const namespace = "hypothesis_rating"

var (
	// httpRequests counts handled requests.
	// Labels: method, route (the gin route pattern), status
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	ratingsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "ratings_total",
		Help:      "Ratings stored by topic",
	}, []string{"topic"})

	commentsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "comments_total",
		Help:      "Comments stored by topic",
	}, []string{"topic"})

	// sessionEvents counts session lifecycle transitions.
	// Labels: topic, event (started, completed, reset)
	sessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "events_total",
		Help:      "Session lifecycle events by topic",
	}, []string{"topic", "event"})

	// poolBuilds counts per-topic outcomes of pool construction.
	// Labels: outcome (built, skipped_existing, insufficient, failed)
	poolBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "builds_total",
		Help:      "Pool construction outcomes per topic",
	}, []string{"outcome"})

	poolCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "cache_lookups_total",
		Help:      "Pool cache lookups by result",
	}, []string{"result"})

	// translations counts translation attempts.
	// Labels: provider, status (success, error, parse_error)
	translations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "translate",
		Name:      "requests_total",
		Help:      "Translation requests by provider and status",
	}, []string{"provider", "status"})

	translationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "translate",
		Name:      "latency_seconds",
		Help:      "Translation provider latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})
)

// RecordRating counts a stored rating
func RecordRating(topic string) {
	ratingsSubmitted.WithLabelValues(topic).Inc()
}

// RecordComment counts a stored comment
func RecordComment(topic string) {
	commentsSubmitted.WithLabelValues(topic).Inc()
}

// RecordSessionEvent counts a session transition.
//
// event is one of "started", "completed" or "reset".
func RecordSessionEvent(topic, event string) {
	sessionEvents.WithLabelValues(topic, event).Inc()
}

// RecordPoolBuild counts the outcome of building one topic's pool
func RecordPoolBuild(outcome string) {
	poolBuilds.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a pool cache hit or miss
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	poolCacheLookups.WithLabelValues(result).Inc()
}

// RecordTranslation records one provider call
func RecordTranslation(provider, status string, d time.Duration) {
	translations.WithLabelValues(provider, status).Inc()
	translationLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// Middleware records request counts and latency per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
