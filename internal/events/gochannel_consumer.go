package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/destel/rill"
)

type ConsumerOptions struct {
	BufferSize   int
	BatchSize    int
	BatchTimeout time.Duration
	WorkerCount  int
	Logger       *slog.Logger
}

// typecheck
var _ EventConsumer = new(GoChannelConsumer)

// GoChannelConsumer buffers events in memory and flushes them in batches.
// Events still buffered when the process dies are lost.
type GoChannelConsumer struct {
	eventRepository EventRepository
	workCh          chan Event
	opts            ConsumerOptions
	workerWg        sync.WaitGroup
	stopOnce        sync.Once
}

func (o *ConsumerOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func NewConsumer(eventRepository EventRepository, opts ConsumerOptions) *GoChannelConsumer {
	opts.defaults()

	return &GoChannelConsumer{
		eventRepository: eventRepository,
		workCh:          make(chan Event, opts.BufferSize),
		opts:            opts,
	}
}

func (c *GoChannelConsumer) Start(ctx context.Context) {
	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}
}

// Stop closes the buffer and waits until every buffered event is flushed.
// Consume must not be called after Stop.
func (c *GoChannelConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.workCh)
		c.workerWg.Wait()
	})
}

func (c *GoChannelConsumer) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}
		if err := c.eventRepository.BulkInsert(ctx, batch.Value); err != nil {
			// TODO: retry with backoff before dropping the batch
			c.opts.Logger.Error("failed to bulk insert events", "error", err, "count", len(batch.Value))
		}
	}
}

func (c *GoChannelConsumer) Consume(ctx context.Context, event Event) error {
	select {
	case c.workCh <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return EventConsumerErrorFull
	}
}
