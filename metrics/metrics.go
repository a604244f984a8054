// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	CheckoutsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_attempts_started_total",
			Help: "Checkout attempts accepted by the payment gateway",
		},
	)

	CheckoutsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_attempts_rejected_total",
			Help: "Checkout attempts refused before or at submission",
		},
		[]string{"reason"},
	)

	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_resolutions_total",
			Help: "Terminal payment outcomes by status and by the observer that won",
		},
		[]string{"status", "source"},
	)

	PollQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_poll_queries_total",
			Help: "Status queries issued by pollers",
		},
		[]string{"result"},
	)

	Callbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Gateway callbacks received",
		},
		[]string{"outcome"},
	)

	ActiveAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_attempts_active",
			Help: "Checkout attempts currently being tracked",
		},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "daraja_request_duration_ms",
			Help:    "Duration of payment gateway calls in ms",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
		},
		[]string{"operation"},
	)
)
