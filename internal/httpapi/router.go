package httpapi

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/armorclaw/license-server/internal/metrics"
	"github.com/armorclaw/license-server/internal/store"
)

// Deps bundles every dependency the router needs to wire the full request
// pipeline.
type Deps struct {
	Brand   *BrandHandlers
	Product *ProductHandlers
	Health  *HealthHandlers

	APIKeys     store.APIKeyRepo
	Brands      store.BrandRepo
	LicenseKeys store.LicenseKeyRepo
	Idempotency store.IdempotencyRepo

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewRouter builds the full chi.Router: the ambient middleware chain
// applies to every route, brand/product authentication and rate limiting
// apply only to their respective route groups, matching how the grounding
// pack composes protected-route groups onto a shared chi.Mux.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(correlationMiddleware)
	r.Use(requestTimeoutMiddleware(d.RequestTimeout))
	if d.Metrics != nil {
		r.Use(metricsMiddleware(d.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key", "X-License-Key", "Idempotency-Key", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID", "X-Trace-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:           300,
	}))

	r.Get("/health/", d.Health.Health)
	r.Get("/health/db/", d.Health.HealthDB)
	r.Get("/health/cache/", d.Health.HealthCache)
	r.Get("/ready/", d.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/brand", func(br chi.Router) {
		br.Use(brandAuthMiddleware(d.APIKeys, d.Brands, d.Logger))
		br.Use(rateLimiter(d.RateLimitRequests, d.RateLimitWindow, d.Logger))

		br.Group(func(mutating chi.Router) {
			mutating.Use(writeScopeMiddleware(d.Logger))
			mutating.Use(idempotencyMiddleware(d.Idempotency))

			mutating.Post("/licenses/provision", d.Brand.Provision)
			mutating.Patch("/licenses/{license_id}/renew", d.Brand.Renew)
			mutating.Patch("/licenses/{license_id}/suspend", d.Brand.Suspend)
			mutating.Patch("/licenses/{license_id}/resume", d.Brand.Resume)
			mutating.Patch("/licenses/{license_id}/cancel", d.Brand.Cancel)
		})

		br.Get("/licenses", d.Brand.List)
	})

	r.Route("/api/v1/product", func(pr chi.Router) {
		pr.Use(productAuthMiddleware(d.LicenseKeys, d.Logger))

		pr.Post("/activate", d.Product.Activate)
		pr.Get("/status", d.Product.Status)
		pr.Delete("/activations/{activation_id}", d.Product.Deactivate)
	})

	return r
}
