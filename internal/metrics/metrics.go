package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ShareLinkAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_share_link_access_total",
			Help: "Anonymous share link accesses by result",
		},
		[]string{"resource_type", "result"}, // ok/not_found/expired/inactive
	)

	KpiRecalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_recalculations_total",
			Help: "KPI recalculations by outcome",
		},
		[]string{"outcome"}, // success/error
	)

	IntegrationSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_integration_sync_total",
			Help: "Integration sync runs by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_cache_requests_total",
			Help: "History cache operations",
		},
		[]string{"operation", "result"}, // get/set/delete, hit/miss/error/success
	)
)

func ObserveHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordShareAccess(resourceType, result string) {
	ShareLinkAccessTotal.WithLabelValues(resourceType, result).Inc()
}

func RecordRecalculation(outcome string) {
	KpiRecalculationsTotal.WithLabelValues(outcome).Inc()
}

func RecordSync(integrationType, outcome string) {
	IntegrationSyncTotal.WithLabelValues(integrationType, outcome).Inc()
}

func RecordCacheOperation(operation, result string) {
	CacheRequestsTotal.WithLabelValues(operation, result).Inc()
}
