package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by flow (login|register|reset|totp) and result.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"flow", "result"},
	)

	// PermissionChecks counts server action evaluations and their outcome (allow|deny|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"action", "result"},
	)

	// RevokedTokens counts tokens added to the deny-list.
	RevokedTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "panel_revoked_tokens_total",
			Help: "Number of session tokens revoked on logout",
		},
	)

	// RateLimited counts requests rejected by a rate or attempt limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_rate_limited_total",
			Help: "Requests rejected by rate limiting",
		},
		[]string{"scope"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panel_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
