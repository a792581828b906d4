// Package metrics registers the Prometheus collectors exposed at GET
// /metrics: request counts and latency, activation outcomes, seat limit
// rejections, webhook deliveries, and expirer sweeps.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the HTTP layer and domain services
// increment.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActivationsTotal    *prometheus.CounterVec
	SeatLimitRejections prometheus.Counter
	WebhookDeliveries   *prometheus.CounterVec
	ExpirerSwept        prometheus.Counter
}

// New registers every collector against reg. Pass prometheus.DefaultRegisterer
// from the composition root for normal operation, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across test runs.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "license_service_http_requests_total",
			Help: "Total HTTP requests by route, method, and status code.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "license_service_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ActivationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "license_service_activations_total",
			Help: "Successful activations by outcome.",
		}, []string{"outcome"}),
		SeatLimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "license_service_seat_limit_rejections_total",
			Help: "Activation attempts rejected for exceeding seat_limit.",
		}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "license_service_webhook_deliveries_total",
			Help: "Webhook deliveries by final result after retries.",
		}, []string{"result"}),
		ExpirerSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "license_service_expirer_swept_total",
			Help: "Licenses transitioned valid -> expired by the periodic sweep.",
		}),
	}
}
