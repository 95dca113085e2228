package events

import (
	"context"
	"errors"
)

var EventConsumerErrorFull = errors.New("event consumer is full")

// EventConsumer accepts events for asynchronous recording.
type EventConsumer interface {
	Consume(ctx context.Context, event Event) error
	Start(ctx context.Context)
	Stop()
}

// EventRepository is the sink a consumer flushes batches into.
type EventRepository interface {
	Insert(ctx context.Context, event Event) error
	BulkInsert(ctx context.Context, events []Event) error
}

var _ EventConsumer = NopConsumer{}

// NopConsumer discards every event.
type NopConsumer struct{}

func (NopConsumer) Consume(context.Context, Event) error { return nil }
func (NopConsumer) Start(context.Context)                {}
func (NopConsumer) Stop()                                {}
