package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/armorclaw/license-server/internal/domain"
)

const exchangeName = "license_events"

// wireEvent is the JSON shape put on the wire. domain.Event itself carries
// uuid.UUID and time.Time fields that marshal cleanly, so this is mostly a
// pass-through, kept distinct so the wire format doesn't silently change if
// domain.Event grows unmarshalable fields later.
type wireEvent struct {
	Type        domain.EventType `json:"type"`
	AggregateID string           `json:"aggregate_id"`
	BrandID     string           `json:"brand_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     map[string]any   `json:"payload"`
}

// BrokerBus publishes events to a RabbitMQ topic exchange and, once
// StartConsuming is running, dispatches deliveries back out to the same
// per-type handler registry the in-process bus uses — so handler code
// never needs to know which Bus wired it in. Grounded on the topic
// exchange / routing-key scheme in the original Python implementation's
// core/infrastructure/rabbitmq_event_bus.py.
type BrokerBus struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	reg    *registry
	logger *slog.Logger
}

// NewBrokerBus dials amqpURL, opens a channel, and declares the durable
// topic exchange events are published to.
func NewBrokerBus(amqpURL string, logger *slog.Logger) (*BrokerBus, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &BrokerBus{conn: conn, ch: ch, reg: newRegistry(), logger: logger}, nil
}

func (b *BrokerBus) Close() error {
	b.ch.Close()
	return b.conn.Close()
}

func (b *BrokerBus) Subscribe(t domain.EventType, h Handler) {
	b.reg.subscribe(t, h)
}

// Publish marshals e and publishes it to the topic exchange under
// e.Type.RoutingKey(). It does not invoke handlers directly — those run on
// whichever process has StartConsuming running against this exchange.
func (b *BrokerBus) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(wireEvent{
		Type:        e.Type,
		AggregateID: e.AggregateID.String(),
		BrandID:     e.BrandID.String(),
		OccurredAt:  e.OccurredAt,
		Payload:     e.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.ch.PublishWithContext(ctx, exchangeName, e.Type.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Body:         body,
	})
}

// StartConsuming declares an exclusive queue bound to every routing key this
// registry has handlers for and dispatches deliveries until ctx is
// cancelled. Run it in its own goroutine from the composition root.
func (b *BrokerBus) StartConsuming(ctx context.Context) error {
	q, err := b.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare consumer queue: %w", err)
	}
	for t := range b.reg.handlers {
		if err := b.ch.QueueBind(q.Name, t.RoutingKey(), exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue to %s: %w", t.RoutingKey(), err)
		}
	}

	deliveries, err := b.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var we wireEvent
			if err := json.Unmarshal(d.Body, &we); err != nil {
				b.logger.Error("discarding malformed event delivery", "error", err)
				continue
			}
			e, err := we.toDomain()
			if err != nil {
				b.logger.Error("discarding event with bad ids", "error", err)
				continue
			}
			b.reg.dispatch(ctx, e, b.logger)
		}
	}
}

func (w wireEvent) toDomain() (domain.Event, error) {
	aggID, err := uuid.Parse(w.AggregateID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("aggregate_id: %w", err)
	}
	brandID, err := uuid.Parse(w.BrandID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("brand_id: %w", err)
	}
	return domain.Event{
		Type:        w.Type,
		AggregateID: aggID,
		BrandID:     brandID,
		OccurredAt:  w.OccurredAt,
		Payload:     w.Payload,
	}, nil
}
