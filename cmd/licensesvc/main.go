// Command licensesvc is the composition root: it wires every repository,
// service, and middleware, then starts the HTTP listener, the periodic
// expirer, and (if configured) the broker consumer, handling SIGINT/SIGTERM
// with a bounded graceful-shutdown window. Generalized from a single-file
// server's main() into a multi-package composition.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/armorclaw/license-server/internal/cache"
	"github.com/armorclaw/license-server/internal/config"
	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/eventbus"
	"github.com/armorclaw/license-server/internal/expirer"
	"github.com/armorclaw/license-server/internal/httpapi"
	"github.com/armorclaw/license-server/internal/licensesvc"
	"github.com/armorclaw/license-server/internal/metrics"
	"github.com/armorclaw/license-server/internal/seatmanager"
	"github.com/armorclaw/license-server/internal/store"
	"github.com/armorclaw/license-server/internal/store/postgres"
	"github.com/armorclaw/license-server/internal/webhook"
)

// allEventTypes lists every event type handlers may subscribe to —
// avoids repeating this list at each Subscribe call site.
var allEventTypes = []domain.EventType{
	domain.EventLicenseKeyCreated,
	domain.EventLicenseProvisioned,
	domain.EventLicenseRenewed,
	domain.EventLicenseSuspended,
	domain.EventLicenseResumed,
	domain.EventLicenseCancelled,
	domain.EventLicenseActivated,
	domain.EventSeatDeactivated,
}

// wireHandlers registers the audit, cache-invalidation, and webhook
// handlers against every event type on bus.
func wireHandlers(
	bus eventbus.Bus,
	audit store.AuditRepo,
	licenseKeys store.LicenseKeyRepo,
	cacheClient *cache.Client,
	webhooks store.WebhookRepo,
	dispatcher *webhook.Dispatcher,
) {
	auditHandler := eventbus.NewAuditHandler(audit, slog.Default())
	cacheHandler := eventbus.NewCacheInvalidationHandler(licenseKeys, cacheClient)
	webhookHandler := eventbus.NewWebhookHandler(webhooks, dispatcher)

	for _, t := range allEventTypes {
		bus.Subscribe(t, auditHandler)
		bus.Subscribe(t, cacheHandler)
		bus.Subscribe(t, webhookHandler)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("service exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	cacheClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable at startup, status cache runs fail-open", "error", err)
		cacheClient = nil
	} else {
		defer cacheClient.Close()
	}

	brands := postgres.NewBrandRepo(db)
	products := postgres.NewProductRepo(db)
	apiKeys := postgres.NewAPIKeyRepo(db)
	licenseKeys := postgres.NewLicenseKeyRepo(db)
	licenses := postgres.NewLicenseRepo(db)
	activations := postgres.NewActivationRepo(db)
	webhooks := postgres.NewWebhookRepo(db)
	audit := postgres.NewAuditRepo(db)
	idempotency := postgres.NewIdempotencyRepo(db)

	bus, stopBus, err := buildEventBus(cfg, logger)
	if err != nil {
		return err
	}
	defer stopBus()

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	dispatcher := webhook.NewDispatcher(logger, appMetrics)
	wireHandlers(bus, audit, licenseKeys, cacheClient, webhooks, dispatcher)

	seats := seatmanager.NewManager(db, db, licenses, licenseKeys, activations, bus, appMetrics, logger)
	svc := licensesvc.New(db, db, brands, products, licenseKeys, licenses, activations, cacheClient, bus, logger)

	brandHandlers := httpapi.NewBrandHandlers(svc, logger)
	productHandlers := httpapi.NewProductHandlers(seats, svc, products, licenses, activations, db, logger)
	healthHandlers := httpapi.NewHealthHandlers(db, cacheClient)

	router := httpapi.NewRouter(httpapi.Deps{
		Brand:             brandHandlers,
		Product:           productHandlers,
		Health:            healthHandlers,
		APIKeys:           apiKeys,
		Brands:            brands,
		LicenseKeys:       licenseKeys,
		Idempotency:       idempotency,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		RequestTimeout:    cfg.RequestTimeout,
		Metrics:           appMetrics,
		Logger:            logger,
	})

	exp := expirer.New(licenses, licenseKeys, cacheClient, appMetrics, logger)
	if err := exp.Start(cfg.ExpirerInterval); err != nil {
		return err
	}
	defer exp.Stop()

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		serverErr <- server.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildEventBus(cfg *config.Config, logger *slog.Logger) (eventbus.Bus, func(), error) {
	switch cfg.EventBusMode {
	case config.EventBusBroker:
		broker, err := eventbus.NewBrokerBus(cfg.AMQPURL, logger)
		if err != nil {
			return nil, func() {}, err
		}
		go func() {
			if err := broker.StartConsuming(context.Background()); err != nil {
				logger.Error("broker consumer stopped", "error", err)
			}
		}()
		return broker, func() { _ = broker.Close() }, nil
	default:
		return eventbus.NewInProcessBus(logger), func() {}, nil
	}
}
