// Package eventbus implements publish/subscribe fan-out for domain events:
// one Bus interface, two implementations (in-process and broker-backed),
// handlers oblivious to which is wired in.
package eventbus

import (
	"context"
	"log/slog"

	"github.com/armorclaw/license-server/internal/domain"
)

// Handler processes one event. A handler's error is logged and isolated
// from its siblings — it never fails the publishing request.
type Handler func(ctx context.Context, e domain.Event) error

// Bus publishes domain events to the handlers registered for their type.
type Bus interface {
	Subscribe(t domain.EventType, h Handler)
	Publish(ctx context.Context, e domain.Event) error
}

// registry is the handler bookkeeping shared by both Bus implementations:
// the in-process bus dispatches directly against it, and the broker-backed
// bus's consumer dispatches against an identical registry on the consumer
// side of the process boundary.
type registry struct {
	handlers map[domain.EventType][]Handler
}

func newRegistry() *registry {
	return &registry{handlers: make(map[domain.EventType][]Handler)}
}

func (r *registry) subscribe(t domain.EventType, h Handler) {
	r.handlers[t] = append(r.handlers[t], h)
}

func (r *registry) dispatch(ctx context.Context, e domain.Event, logger *slog.Logger) {
	for _, h := range r.handlers[e.Type] {
		if err := h(ctx, e); err != nil {
			logger.Error("event handler failed",
				"event_type", e.Type,
				"aggregate_id", e.AggregateID,
				"error", err,
			)
		}
	}
}
