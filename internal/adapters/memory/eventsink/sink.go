package eventsink

import (
	"context"
	"sync"

	"github.com/sura-tech/quotes-api/internal/ports/out/eventsink"
)

// Sink is an in-memory eventsink.Sink that records every publish and can be
// scripted to fail, for publisher tests.
type Sink struct {
	mu        sync.Mutex
	published []eventsink.Message
	failWith  error
	failNext  int
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Publish(ctx context.Context, msg eventsink.Message) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil && (s.failNext < 0 || s.failNext > 0) {
		if s.failNext > 0 {
			s.failNext--
		}
		return s.failWith
	}
	cp := msg
	cp.Payload = append([]byte(nil), msg.Payload...)
	s.published = append(s.published, cp)
	return nil
}

// FailWith makes the next n publishes fail with err; n < 0 fails forever.
func (s *Sink) FailWith(err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
	s.failNext = n
}

// Published returns a copy of the successfully published messages.
func (s *Sink) Published() []eventsink.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eventsink.Message(nil), s.published...)
}
