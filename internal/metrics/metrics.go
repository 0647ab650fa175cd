// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExpertLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expert_lookups_total",
			Help: "Total number of medical expert lookups",
		},
		[]string{"source", "result"},
	)

	ZohoTokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoho_token_refreshes_total",
			Help: "Zoho OAuth access token refresh attempts",
		},
		[]string{"result"},
	)

	ZohoRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoho_requests_total",
			Help: "Zoho CRM API requests by module and response status",
		},
		[]string{"module", "status"},
	)

	ExpertCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expert_cache_lookups_total",
			Help: "Redis expert cache lookups",
		},
		[]string{"result"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
