package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/kafka"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	finalFlushTimeout    = 5 * time.Second
)

// Publisher writes events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Collector aggregates every tracked event and forwards it to a Publisher in
// batches. Tracking never blocks; events are dropped when the buffer is full.
type Collector struct {
	publisher     Publisher
	aggregator    *Aggregator
	eventCh       chan FilterEvent
	batchSize     int
	flushInterval time.Duration
	started       atomic.Bool
	dropped       atomic.Int64
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector creates a Collector. publisher may be nil, in which case events
// are only aggregated.
func NewCollector(publisher Publisher, aggregator *Aggregator, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if aggregator == nil {
		aggregator = NewAggregator()
	}
	return &Collector{
		publisher:     publisher,
		aggregator:    aggregator,
		eventCh:       make(chan FilterEvent, bufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Aggregator returns the in-process aggregator.
func (c *Collector) Aggregator() *Aggregator {
	return c.aggregator
}

// Start launches the publishing loop. It does nothing without a publisher.
func (c *Collector) Start(ctx context.Context) {
	if c.publisher == nil || !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track records event. It must not be called after Close.
func (c *Collector) Track(event FilterEvent) {
	event.Type = event.Classify()
	c.aggregator.Record(event)
	if c.publisher == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Dropped returns how many events were not queued for publishing.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the final flush.
func (c *Collector) Close() {
	close(c.eventCh)
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.Publish(ctx, batch...); err != nil {
			c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	final := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
		defer cancel()
		flush(flushCtx)
	}

	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				final()
				return
			}
			batch = append(batch, kafka.Event{Key: eventKey(event), Type: string(event.Type), Value: event})
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			c.drain(&batch)
			final()
			return
		}
	}
}

func (c *Collector) drain(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, kafka.Event{Key: eventKey(event), Type: string(event.Type), Value: event})
		default:
			return
		}
	}
}

func eventKey(event FilterEvent) string {
	if event.RequestID != "" {
		return event.RequestID
	}
	return string(event.Type)
}
