package clock

import "time"

// Clock provides time to the application. TTL expiry and outbox retry
// scheduling depend on it, so tests substitute a manual implementation.
type Clock interface {
	Now() time.Time
}
