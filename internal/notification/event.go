package notification

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventInvoiceCreated   EventType = "invoice.created"
	EventAdvanceRequested EventType = "advance.requested"
	EventAdvanceApproved  EventType = "advance.approved"
	EventAdvanceRejected  EventType = "advance.rejected"
	EventAdvancePaid      EventType = "advance.paid"
	EventAdvanceCancelled EventType = "advance.cancelled"
)

// Event is a fact worth telling a party about. Data values are rendered
// with %v so callers pass plain strings and numbers.
type Event struct {
	ID         string
	Type       EventType
	OccurredAt time.Time
	Recipients []string
	Data       map[string]any
}

func NewEvent(eventType EventType, occurredAt time.Time, recipients []string, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:         ulid.MustNew(ulid.Timestamp(occurredAt), ulid.DefaultEntropy()).String(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
		Recipients: compactRecipients(recipients),
		Data:       data,
	}
}

func compactRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
