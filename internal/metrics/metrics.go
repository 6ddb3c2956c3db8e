// Package metrics exposes Prometheus instrumentation for both services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "isilanlarim"

// Metrics holds every collector. All methods are safe on a nil *Metrics so
// packages can be used without instrumentation (CLI, tests).
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	ListingMutations *prometheus.CounterVec
	FeedListings     prometheus.Gauge
	FeedReloads      *prometheus.CounterVec

	SitemapBuilds *prometheus.CounterVec
	Pings         *prometheus.CounterVec

	ScrapeCandidates *prometheus.CounterVec
	ScrapeSources    *prometheus.CounterVec

	Orders            *prometheus.CounterVec
	PromotionsExpired prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ListingMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "listing_mutations_total",
			Help: "Listing create/update/delete operations by outcome",
		}, []string{"op", "outcome"}),
		FeedListings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "feed_active_listings",
			Help: "Active listings in the current feed snapshot",
		}),
		FeedReloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "feed_reloads_total",
			Help: "Feed snapshot reloads by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		SitemapBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sitemap_builds_total",
			Help: "Sitemap documents rendered by outcome",
		}, []string{"outcome"}),
		Pings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_engine_pings_total",
			Help: "Search engine sitemap pings by engine host and outcome",
		}, []string{"engine", "outcome"}),
		ScrapeCandidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scrape_candidates_total",
			Help: "Scraped postings by result (inserted, duplicate, rejected, failed)",
		}, []string{"result"}),
		ScrapeSources: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scrape_sources_total",
			Help: "Job board fetches by outcome",
		}, []string{"outcome"}),
		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "promotion_orders_total",
			Help: "Promotion order state changes",
		}, []string{"status"}),
		PromotionsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "promotions_expired_total",
			Help: "Listings whose stale promotion flags were cleared by the sweep",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request count and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Mutation counts a listing lifecycle operation.
func (m *Metrics) Mutation(op string, err error) {
	if m == nil {
		return
	}
	m.ListingMutations.WithLabelValues(op, outcome(err)).Inc()
}

// FeedReloaded records a feed reload and the resulting snapshot size.
func (m *Metrics) FeedReloaded(trigger string, size int, err error) {
	if m == nil {
		return
	}
	m.FeedReloads.WithLabelValues(trigger, outcome(err)).Inc()
	if err == nil {
		m.FeedListings.Set(float64(size))
	}
}

// SitemapBuilt counts a rendered sitemap.
func (m *Metrics) SitemapBuilt(err error) {
	if m == nil {
		return
	}
	m.SitemapBuilds.WithLabelValues(outcome(err)).Inc()
}

// Pinged counts a search engine notification.
func (m *Metrics) Pinged(engine string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Pings.WithLabelValues(engine, result).Inc()
}

// Scraped counts scrape results.
func (m *Metrics) Scraped(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ScrapeCandidates.WithLabelValues(result).Add(float64(n))
}

// SourceFetched counts one board fetch.
func (m *Metrics) SourceFetched(err error) {
	if m == nil {
		return
	}
	m.ScrapeSources.WithLabelValues(outcome(err)).Inc()
}

// OrderMoved counts an order entering status.
func (m *Metrics) OrderMoved(status string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(status).Inc()
}

// PromotionsCleared counts swept listings.
func (m *Metrics) PromotionsCleared(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.PromotionsExpired.Add(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
