// Package metrics exposes prometheus counters for cache behavior and
// request timing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the registry. It implements cache.Recorder so the
// cache manager can report events without importing this package.
type Collector struct {
	reg *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheRefreshes *prometheus.CounterVec

	fetchDuration *prometheus.HistogramVec
	routeDuration prometheus.Histogram
	routeRequests prometheus.Counter
	alertRequests prometheus.Counter
}

// NewCollector builds and registers all metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_cache_hits_total",
			Help: "Cache hits by category.",
		}, []string{"category"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_cache_misses_total",
			Help: "Cache misses by category.",
		}, []string{"category"}),
		cacheRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_cache_background_refreshes_total",
			Help: "Successful background refreshes by category.",
		}, []string{"category"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_fetch_duration_seconds",
			Help:    "Upstream fetch duration by cache category.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"category"}),
		routeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_route_computation_seconds",
			Help:    "End-to-end route composition duration.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		routeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_route_requests_total",
			Help: "Total route calculation requests.",
		}),
		alertRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_alert_requests_total",
			Help: "Total alert correlation requests.",
		}),
	}

	reg.MustRegister(
		c.cacheHits, c.cacheMisses, c.cacheRefreshes,
		c.fetchDuration, c.routeDuration, c.routeRequests, c.alertRequests,
	)
	return c
}

// CacheHit implements cache.Recorder.
func (c *Collector) CacheHit(category string) { c.cacheHits.WithLabelValues(category).Inc() }

// CacheMiss implements cache.Recorder.
func (c *Collector) CacheMiss(category string) { c.cacheMisses.WithLabelValues(category).Inc() }

// CacheRefresh implements cache.Recorder.
func (c *Collector) CacheRefresh(category string) { c.cacheRefreshes.WithLabelValues(category).Inc() }

// FetchDuration implements cache.Recorder.
func (c *Collector) FetchDuration(category string, d time.Duration) {
	c.fetchDuration.WithLabelValues(category).Observe(d.Seconds())
}

// ObserveRouteComputation records one route calculation.
func (c *Collector) ObserveRouteComputation(d time.Duration) {
	c.routeRequests.Inc()
	c.routeDuration.Observe(d.Seconds())
}

// CountAlertRequest records one alert correlation request.
func (c *Collector) CountAlertRequest() { c.alertRequests.Inc() }

// Handler serves the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
