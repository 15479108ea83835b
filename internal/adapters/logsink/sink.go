package logsink

import (
	"context"

	"go.uber.org/zap"

	"github.com/sura-tech/quotes-api/internal/ports/out/eventsink"
)

// Sink is the broker-less eventsink.Sink used when no Kafka cluster is
// configured. It logs each event and reports success, which lets the outbox
// pipeline run end to end in development.
type Sink struct {
	logger *zap.Logger
}

func NewSink(logger *zap.Logger) *Sink {
	return &Sink{logger: logger}
}

var _ eventsink.Sink = (*Sink)(nil)

func (s *Sink) Publish(ctx context.Context, msg eventsink.Message) error {
	_ = ctx
	s.logger.Info("event published to log sink",
		zap.String("event_id", string(msg.EventID)),
		zap.String("quote_id", msg.AggregateID),
		zap.Int("payload_bytes", len(msg.Payload)),
	)
	return nil
}
