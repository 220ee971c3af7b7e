// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "affiliate_blog"

// Collector records guard verdicts, role lookups, HTTP traffic and admin streams.
// It satisfies guard.Recorder and authz.Recorder.
type Collector struct {
	verdicts      *prometheus.CounterVec
	staleResults  prometheus.Counter
	roleLookups   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	activeStreams prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_verdicts_total",
			Help:      "Resolved guard verdicts by capability and outcome.",
		}, []string{"capability", "allowed", "reason"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_stale_evaluations_total",
			Help:      "Evaluations discarded because a newer attempt had started.",
		}),
		roleLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_role_lookups_total",
			Help:      "Role resolutions by source and outcome.",
		}, []string{"source", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "admin_event_streams_active",
			Help:      "Open admin event streams.",
		}),
	}

	reg.MustRegister(
		c.verdicts,
		c.staleResults,
		c.roleLookups,
		c.httpRequests,
		c.httpLatency,
		c.activeStreams,
	)
	return c
}

func (c *Collector) RecordVerdict(capability string, allowed bool, reason string) {
	if reason == "" {
		reason = "none"
	}
	c.verdicts.WithLabelValues(capability, strconv.FormatBool(allowed), reason).Inc()
}

func (c *Collector) RecordStaleEvaluation() {
	c.staleResults.Inc()
}

func (c *Collector) RecordRoleLookup(source, outcome string) {
	c.roleLookups.WithLabelValues(source, outcome).Inc()
}

// StreamOpened increments the open stream gauge and returns its matching decrement.
func (c *Collector) StreamOpened() (closed func()) {
	c.activeStreams.Inc()
	return c.activeStreams.Dec
}

// Middleware counts requests by matched route pattern so path parameters do not explode cardinality.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.httpRequests.WithLabelValues(route, method, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpLatency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
