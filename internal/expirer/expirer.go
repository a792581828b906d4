// Package expirer runs a periodic sweep: every ExpirerInterval (<=60s), move
// valid licenses past expires_at to expired and invalidate their cached
// status. Scheduled with robfig/cron/v3.
package expirer

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/armorclaw/license-server/internal/cache"
	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/metrics"
	"github.com/armorclaw/license-server/internal/store"
)

// Expirer wraps a cron schedule that periodically runs Sweep.
type Expirer struct {
	licenses    store.LicenseRepo
	licenseKeys store.LicenseKeyRepo
	cache       *cache.Client
	metrics     *metrics.Metrics
	logger      *slog.Logger
	cron        *cron.Cron
}

// New wires the expirer. m may be nil, in which case no metrics are
// recorded.
func New(licenses store.LicenseRepo, licenseKeys store.LicenseKeyRepo, cacheClient *cache.Client, m *metrics.Metrics, logger *slog.Logger) *Expirer {
	return &Expirer{
		licenses:    licenses,
		licenseKeys: licenseKeys,
		cache:       cacheClient,
		metrics:     m,
		logger:      logger,
		cron:        cron.New(cron.WithSeconds()),
	}
}

// Start schedules Sweep to run every interval and begins the cron
// scheduler. Call Stop to drain and halt it during graceful shutdown.
func (e *Expirer) Start(interval time.Duration) error {
	spec := "@every " + interval.String()
	_, err := e.cron.AddFunc(spec, func() {
		e.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	e.cron.Start()
	return nil
}

// Stop blocks until any in-flight sweep finishes, then halts scheduling.
func (e *Expirer) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
}

// Sweep performs one pass: the conditional UPDATE is itself idempotent, so
// running two sweeps concurrently (e.g. during a deploy overlap) is safe —
// each affected row is only returned by exactly one of them.
func (e *Expirer) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	expired, err := e.licenses.SweepExpired(ctx, now)
	if err != nil {
		e.logger.Error("expiration sweep failed", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}
	e.logger.Info("expiration sweep completed", "count", len(expired))
	if e.metrics != nil {
		e.metrics.ExpirerSwept.Add(float64(len(expired)))
	}

	for _, l := range expired {
		e.invalidateCache(ctx, l)
	}
}

func (e *Expirer) invalidateCache(ctx context.Context, l *domain.License) {
	if e.cache == nil {
		return
	}
	lk, err := e.licenseKeys.GetByID(ctx, l.LicenseKeyID)
	if err != nil || lk == nil {
		return
	}
	e.cache.InvalidateStatus(ctx, lk.Key)
}
