package eventsink

import (
	"context"

	"github.com/sura-tech/quotes-api/internal/domain"
)

// Message is one serialized event envelope handed to the external sink.
type Message struct {
	EventID     domain.EventID
	EventType   string
	AggregateID string
	Payload     []byte
}

// Sink delivers event envelopes to the external message broker.
//
// Publish must be safe to call more than once with the same EventID: a crash
// between delivery and status settlement causes redelivery, and downstream
// consumers deduplicate on the event id. A sink that accepts but cannot yet
// deliver should return an error so the publisher applies its retry policy.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
}
