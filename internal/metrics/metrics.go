// Package metrics exposes security counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"studentsnet/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	auditEvents *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	httpStatus  *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentsnet_audit_events_total",
			Help: "Security audit events by category.",
		}, []string{"category"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentsnet_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by endpoint class.",
		}, []string{"class"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentsnet_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(c.auditEvents, c.rateLimited, c.httpStatus)
	return c
}

func (c *Collector) ObserveAuditEvent(category domain.AuditCategory) {
	c.auditEvents.WithLabelValues(string(category)).Inc()
}

func (c *Collector) RecordRateLimited(class string) {
	c.rateLimited.WithLabelValues(class).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
