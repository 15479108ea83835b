package domain

// QuoteID is the internal identifier of a quote record (UUID string).
type QuoteID string

// EventID identifies an outbox event across the wire; the sink and its
// downstream consumers deduplicate on it.
type EventID string
