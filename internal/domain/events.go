package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType names one of the domain events published after a successful
// mutation. Lower-cased, it becomes the broker routing key suffix
// ("event.<lowercase-event-name>").
type EventType string

const (
	EventLicenseKeyCreated EventType = "LicenseKeyCreated"
	EventLicenseProvisioned EventType = "LicenseProvisioned"
	EventLicenseRenewed    EventType = "LicenseRenewed"
	EventLicenseSuspended  EventType = "LicenseSuspended"
	EventLicenseResumed    EventType = "LicenseResumed"
	EventLicenseCancelled  EventType = "LicenseCancelled"
	EventLicenseActivated  EventType = "LicenseActivated"
	EventSeatDeactivated   EventType = "SeatDeactivated"
)

// RoutingKey returns the broker-backed bus's topic-exchange routing key
// for this event type: "event.<lowercase-event-name>".
func (e EventType) RoutingKey() string {
	return "event." + strings.ToLower(string(e))
}

// Event is the envelope published on the bus: a typed name, the id of the
// aggregate it describes, the instant it occurred, and a JSON-serializable
// payload specific to that event type.
type Event struct {
	Type        EventType
	AggregateID uuid.UUID
	BrandID     uuid.UUID
	OccurredAt  time.Time
	Payload     map[string]any
}

// NewEvent stamps OccurredAt at construction time so handlers observe a
// consistent instant regardless of dispatch latency.
func NewEvent(t EventType, aggregateID, brandID uuid.UUID, payload map[string]any) Event {
	return Event{
		Type:        t,
		AggregateID: aggregateID,
		BrandID:     brandID,
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
}

// LicenseKeyIDFromEvent resolves the license_key_id an event concerns, for
// the cache-invalidation handler. Events about a License carry
// license_key_id in Payload; events about a LicenseKey carry it as
// AggregateID itself. A payload value that arrived as a string (after a
// JSON round trip through the broker) is parsed back into a UUID.
func (e Event) LicenseKeyIDFromEvent() (uuid.UUID, bool) {
	if v, ok := e.Payload["license_key_id"]; ok {
		switch id := v.(type) {
		case uuid.UUID:
			return id, true
		case string:
			if parsed, err := uuid.Parse(id); err == nil {
				return parsed, true
			}
		}
	}
	if e.Type == EventLicenseKeyCreated {
		return e.AggregateID, true
	}
	return uuid.Nil, false
}
