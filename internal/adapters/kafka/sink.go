package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sura-tech/quotes-api/internal/ports/out/eventsink"
)

// Sink publishes outbox events to a Kafka topic. Writes are synchronous and
// acknowledged by all in-sync replicas; the publisher's retry loop owns
// redelivery, so the writer itself must not buffer.
type Sink struct {
	writer *kafka.Writer
}

func NewSink(brokers []string, topic string) *Sink {
	return &Sink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
			Async:        false,
		},
	}
}

var _ eventsink.Sink = (*Sink)(nil)

const schemaVersion = 1

// Publish keys the message by event id so redeliveries of the same event land
// on the same partition and consumers can deduplicate.
func (s *Sink) Publish(ctx context.Context, msg eventsink.Message) error {
	err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.EventID),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/cloudevents+json")},
			{Key: "ce_type", Value: []byte(msg.EventType)},
			{Key: "quote_id", Value: []byte(msg.AggregateID)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(schemaVersion))},
		},
	})
	if err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.writer.Close()
}
