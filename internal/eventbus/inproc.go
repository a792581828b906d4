package eventbus

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/armorclaw/license-server/internal/domain"
)

// InProcessBus fans an event out to its subscribers as concurrent
// goroutines within the publishing process. Modeled on ISXPulse's use of
// golang.org/x/sync/errgroup for isolated concurrent fan-out: one handler
// panicking or failing never blocks or fails its siblings.
type InProcessBus struct {
	reg    *registry
	logger *slog.Logger
}

func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	return &InProcessBus{reg: newRegistry(), logger: logger}
}

func (b *InProcessBus) Subscribe(t domain.EventType, h Handler) {
	b.reg.subscribe(t, h)
}

// Publish runs every subscribed handler concurrently and waits for all of
// them to finish. Handler errors are logged, never returned: a failing
// webhook-dispatch handler must not unwind the license operation that
// raised the event.
func (b *InProcessBus) Publish(ctx context.Context, e domain.Event) error {
	handlers := b.reg.handlers[e.Type]
	if len(handlers) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handlers {
		h := h
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						"event_type", e.Type,
						"aggregate_id", e.AggregateID,
						"panic", r,
					)
				}
			}()
			if err := h(gctx, e); err != nil {
				b.logger.Error("event handler failed",
					"event_type", e.Type,
					"aggregate_id", e.AggregateID,
					"error", err,
				)
			}
			return nil
		})
	}
	return g.Wait()
}
