package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocha19/userserver/internal/events"
	"github.com/segmentio/kafka-go"
)

var _ events.EventRepository = new(KafkaEventsRepository)

// MessageWriter is the subset of *kafka.Writer the repository needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventsRepository publishes events to a topic instead of the events
// table. Messages are keyed by aggregate id so one user's events stay ordered
// within a partition.
type KafkaEventsRepository struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Compression:  kafka.Gzip,
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func NewKafkaEventsRepository(writer MessageWriter) *KafkaEventsRepository {
	return &KafkaEventsRepository{writer: writer}
}

func (r *KafkaEventsRepository) Insert(ctx context.Context, event events.Event) error {
	return r.BulkInsert(ctx, []events.Event{event})
}

func (r *KafkaEventsRepository) BulkInsert(ctx context.Context, batch []events.Event) error {
	if len(batch) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(batch))
	for _, event := range batch {
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.AggregateID),
			Value: value,
			Time:  event.Timestamp,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.Type)},
			},
		})
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish events: %w", err)
	}
	return nil
}

func (r *KafkaEventsRepository) Close() error {
	return r.writer.Close()
}
