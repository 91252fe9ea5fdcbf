package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"lmsgate/internal/authlog"
)

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

var _ Producer = (*kgo.Client)(nil)

// Sink publishes auth events to a Kafka topic, keyed by event id.
type Sink struct {
	producer Producer
	topic    string
}

// New creates a Kafka sink writing to topic.
func New(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

// Write produces entry synchronously.
func (s *Sink) Write(ctx context.Context, entry authlog.Entry) error {
	payload, err := entry.Payload()
	if err != nil {
		return fmt.Errorf("marshal auth event payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(entry.ID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "request_id", Value: []byte(entry.RequestID)},
			{Key: "client_ip", Value: []byte(entry.ClientIP)},
		},
		Timestamp: entry.Timestamp,
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce auth event: %w", err)
	}
	return nil
}
