package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/destel/rill"
	"github.com/vadiminshakov/gowal"
)

var _ EventConsumer = new(WALConsumer)

// WALConsumer writes every event to a write-ahead log before queueing it, so
// events accepted before a crash are flushed on the next Start.
type WALConsumer struct {
	eventRepository    EventRepository
	wal                *gowal.Wal
	walMutex           sync.Mutex
	workCh             chan WorkItem
	doneCh             chan uint64
	opts               WALConsumerOptions
	stateFile          string
	lastProcessedIndex atomic.Uint64
	lastFlushedIndex   atomic.Uint64
	workerWg           sync.WaitGroup
	coordinatorDone    chan struct{}
	stopOnce           sync.Once
}

type WALConsumerOptions struct {
	BufferSize       int
	BatchSize        int
	BatchTimeout     time.Duration
	WALDir           string
	WALPrefix        string
	SegmentThreshold int
	MaxSegments      int
	IsInSyncDiskMode bool
	WorkerCount      int
	// FlushThreshold is how many processed entries may accumulate before the
	// processed index is written to disk. A ticker also flushes every
	// FlushInterval.
	FlushThreshold int
	FlushInterval  time.Duration
	Logger         *slog.Logger
}

type WorkItem struct {
	Index uint64
	Event Event
}

func (o *WALConsumerOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WALDir == "" {
		o.WALDir = "./wal"
	}
	if o.WALPrefix == "" {
		o.WALPrefix = "event_"
	}
	if o.SegmentThreshold == 0 {
		o.SegmentThreshold = 1000
	}
	if o.MaxSegments == 0 {
		o.MaxSegments = 10
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.FlushThreshold == 0 {
		o.FlushThreshold = 1000
	}
	if o.FlushInterval == 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func NewWALConsumer(eventRepository EventRepository, opts WALConsumerOptions) (*WALConsumer, error) {
	opts.defaults()

	if err := os.MkdirAll(opts.WALDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              opts.WALDir,
		Prefix:           opts.WALPrefix,
		SegmentThreshold: opts.SegmentThreshold,
		MaxSegments:      opts.MaxSegments,
		IsInSyncDiskMode: opts.IsInSyncDiskMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL: %w", err)
	}

	return &WALConsumer{
		eventRepository: eventRepository,
		wal:             wal,
		workCh:          make(chan WorkItem, opts.BufferSize),
		doneCh:          make(chan uint64, opts.BufferSize),
		opts:            opts,
		stateFile:       filepath.Join(opts.WALDir, "processor.state"),
		coordinatorDone: make(chan struct{}),
	}, nil
}

func (c *WALConsumer) Start(ctx context.Context) {
	lastFlushed, err := c.readLastProcessedIndex()
	if err != nil {
		c.opts.Logger.Warn("failed to read last processed index, starting from 0", "error", err)
		lastFlushed = 0
	}
	c.lastFlushedIndex.Store(lastFlushed)
	c.lastProcessedIndex.Store(lastFlushed)

	go c.stateCoordinator(ctx)

	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}

	if err := c.recover(ctx); err != nil {
		c.opts.Logger.Error("error during WAL recovery", "error", err)
	}
}

// Stop drains queued work, persists the processed index and closes the log.
// Consume must not be called after Stop.
func (c *WALConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.workCh)
		c.workerWg.Wait()

		close(c.doneCh)
		<-c.coordinatorDone

		if err := c.writeLastProcessedIndex(c.lastProcessedIndex.Load()); err != nil {
			c.opts.Logger.Error("failed to write final processed index", "error", err)
		}

		c.walMutex.Lock()
		defer c.walMutex.Unlock()
		if err := c.wal.Close(); err != nil {
			c.opts.Logger.Error("failed to close WAL", "error", err)
		}
	})
}

// Consume appends the event to the log and queues it. Once the log write
// succeeds the event is durable, so a full queue applies backpressure instead
// of rejecting.
func (c *WALConsumer) Consume(ctx context.Context, event Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.walMutex.Lock()
	index := c.wal.CurrentIndex() + 1
	if err := c.wal.Write(index, event.ID, eventJSON); err != nil {
		c.walMutex.Unlock()
		return fmt.Errorf("failed to write to WAL: %w", err)
	}
	c.walMutex.Unlock()

	select {
	case c.workCh <- WorkItem{Index: index, Event: event}:
		return nil
	case <-ctx.Done():
		// keep the processed index contiguous; the entry stays in the log
		c.doneCh <- index
		return fmt.Errorf("event %s logged at index %d but not queued: %w", event.ID, index, ctx.Err())
	}
}

func (c *WALConsumer) recover(ctx context.Context) error {
	lastProcessed := c.lastProcessedIndex.Load()
	c.opts.Logger.Info("recovering events from WAL", "from_index", lastProcessed)

	var pending []WorkItem

	c.walMutex.Lock()
	for msg := range c.wal.Iterator() {
		if msg.Index() <= lastProcessed {
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.opts.Logger.Error("failed to unmarshal WAL entry", "error", err, "index", msg.Index())
			pending = append(pending, WorkItem{Index: msg.Index()})
			continue
		}
		pending = append(pending, WorkItem{Index: msg.Index(), Event: event})
	}
	c.walMutex.Unlock()

	recovered := 0
	for _, item := range pending {
		if item.Event.ID == "" {
			c.doneCh <- item.Index
			continue
		}
		select {
		case c.workCh <- item:
			recovered++
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.opts.Logger.Info("WAL recovery completed", "recovered", recovered)
	return nil
}

func (c *WALConsumer) stateCoordinator(ctx context.Context) {
	defer close(c.coordinatorDone)

	// completions that arrived ahead of the next expected index
	completedOutOfOrder := make(map[uint64]bool)

	flushTicker := time.NewTicker(c.opts.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case completedIndex, ok := <-c.doneCh:
			if !ok {
				return
			}

			next := c.lastProcessedIndex.Load() + 1
			switch {
			case completedIndex == next:
				c.lastProcessedIndex.Store(next)
				for completedOutOfOrder[c.lastProcessedIndex.Load()+1] {
					delete(completedOutOfOrder, c.lastProcessedIndex.Add(1))
				}

				current := c.lastProcessedIndex.Load()
				if current-c.lastFlushedIndex.Load() >= uint64(c.opts.FlushThreshold) {
					c.flush(current)
				}
			case completedIndex > next:
				completedOutOfOrder[completedIndex] = true
			}

		case <-flushTicker.C:
			if current := c.lastProcessedIndex.Load(); current > c.lastFlushedIndex.Load() {
				c.flush(current)
			}

		case <-ctx.Done():
			// keep draining so workers never block on doneCh
			for range c.doneCh {
			}
			return
		}
	}
}

func (c *WALConsumer) flush(index uint64) {
	if err := c.writeLastProcessedIndex(index); err != nil {
		c.opts.Logger.Error("failed to write last processed index", "error", err, "index", index)
		return
	}
	c.lastFlushedIndex.Store(index)
}

func (c *WALConsumer) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}

		events := make([]Event, len(batch.Value))
		for i, item := range batch.Value {
			events[i] = item.Event
		}

		if err := c.eventRepository.BulkInsert(ctx, events); err != nil {
			c.opts.Logger.Error("failed to bulk insert events", "error", err, "count", len(events))
		}
		for _, item := range batch.Value {
			c.doneCh <- item.Index
		}
	}
}

// LastProcessedIndex returns the highest WAL index below which every entry
// has been handed to the repository.
func (c *WALConsumer) LastProcessedIndex() uint64 {
	return c.lastProcessedIndex.Load()
}

func (c *WALConsumer) readLastProcessedIndex() (uint64, error) {
	data, err := os.ReadFile(c.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

func (c *WALConsumer) writeLastProcessedIndex(index uint64) error {
	return os.WriteFile(c.stateFile, []byte(strconv.FormatUint(index, 10)), 0644)
}
