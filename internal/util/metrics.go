package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"to"})

	TransitionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_transition_conflicts_total",
		Help: "Total number of transitions lost to a concurrent writer",
	})

	StockTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_transitions_total",
		Help: "Total number of line item stock status transitions",
	}, []string{"to"})

	BulkStockUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulk_stock_updates_total",
		Help: "Total number of bulk stock status updates",
	})

	VerificationDeclinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_declines_total",
		Help: "Total number of declined verification responses",
	}, []string{"party"})

	AdminResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_verification_resets_total",
		Help: "Total number of admin recovery resets by target status",
	}, []string{"target"})

	NotificationsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_published_total",
		Help: "Total number of notifications published to the broker",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of notification publishes that failed",
	})

	NotificationsDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Total number of notifications delivered to users",
	})

	DashboardCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_cache_hits_total",
		Help: "Dashboard snapshot cache hits and misses",
	}, []string{"result"})

	TransitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_transition_latency_seconds",
		Help:    "Latency of order status transitions",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
