package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	calls  int
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) published() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]kafka.Event(nil), p.events...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		event FilterEvent
		want  EventType
	}{
		{FilterEvent{Results: 3}, EventFilter},
		{FilterEvent{Results: 0}, EventZeroResult},
		{FilterEvent{Results: 200, Overflow: true}, EventOverflow},
		{FilterEvent{Type: EventFailure}, EventFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.Classify())
	}
}

func TestAggregatorStats(t *testing.T) {
	a := NewAggregator()
	a.Record(FilterEvent{Words: []string{"go", "remote"}, Results: 4, LatencyMs: 10})
	a.Record(FilterEvent{Words: []string{"go"}, Results: 0, LatencyMs: 20})
	a.Record(FilterEvent{Words: []string{"rust"}, Results: 200, Overflow: true, LatencyMs: 30, FailedJobs: 2})
	a.Record(FilterEvent{Type: EventFailure, FailedJobs: 5, LatencyMs: 40})

	s := a.Stats()
	assert.Equal(t, int64(4), s.TotalQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, int64(1), s.OverflowCount)
	assert.Equal(t, int64(1), s.FailureCount)
	assert.Equal(t, int64(7), s.FailedJobs)
	assert.InDelta(t, 25.0, s.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(40), s.P99LatencyMs)
	assert.Equal(t, []WordCount{{"go", 2}, {"remote", 1}, {"rust", 1}}, s.TopWords)
	assert.Equal(t, []WordCount{{"go", 1}}, s.ZeroResultWords)
}

func TestAggregatorBoundsLatencySamples(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		a.Record(FilterEvent{Results: 1, LatencyMs: int64(i)})
	}
	assert.Len(t, a.latencies, maxLatencySamples)
	assert.Equal(t, int64(10), slices.Min(a.latencies), "oldest samples are overwritten")
	assert.Equal(t, int64(maxLatencySamples+9), slices.Max(a.latencies))
}

func TestCollectorWithoutPublisherOnlyAggregates(t *testing.T) {
	c := NewCollector(nil, nil, 1)
	c.Start(context.Background())
	c.Track(FilterEvent{Results: 1})
	c.Track(FilterEvent{Results: 1})
	c.Close()

	assert.Equal(t, int64(2), c.Aggregator().Stats().TotalQueries)
	assert.Zero(t, c.Dropped())
}

func TestCollectorPublishesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, nil, 16)
	c.Start(context.Background())
	c.Track(FilterEvent{RequestID: "req-1", Results: 0})
	c.Track(FilterEvent{Results: 3})
	c.Close()

	events := pub.published()
	require.Len(t, events, 2)
	assert.Equal(t, "req-1", events[0].Key)
	assert.Equal(t, EventZeroResult, events[0].Value.(FilterEvent).Type)
	assert.Equal(t, string(EventFilter), events[1].Key)
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, nil, 16)
	c.flushInterval = 10 * time.Millisecond
	c.Start(context.Background())
	defer c.Close()

	c.Track(FilterEvent{Results: 1})
	assert.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, nil, 16)
	c.flushInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(FilterEvent{Results: 1})
	cancel()
	c.Close()
	assert.Len(t, pub.published(), 1)
}

func TestCollectorSurvivesPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, nil, 16)
	c.Start(context.Background())
	c.Track(FilterEvent{Results: 1})
	c.Close()

	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, int64(1), c.Aggregator().Stats().TotalQueries)
}

func TestStatsHandler(t *testing.T) {
	a := NewAggregator()
	a.Record(FilterEvent{Words: []string{"go"}, Results: 1})

	rec := httptest.NewRecorder()
	NewHandler(a).Stats(rec, httptest.NewRequest(http.MethodGet, "/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(1), got.TotalQueries)
	assert.Equal(t, []WordCount{{"go", 1}}, got.TopWords)
}

func TestStatsHandlerTop(t *testing.T) {
	a := NewAggregator()
	a.Record(FilterEvent{Words: []string{"go", "rust", "java"}, Results: 0})

	rec := httptest.NewRecorder()
	NewHandler(a).Stats(rec, httptest.NewRequest(http.MethodGet, "/analytics?top=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got.TopWords, 2)
	assert.Len(t, got.ZeroResultWords, 2)

	for _, bad := range []string{"x", "-1"} {
		rec = httptest.NewRecorder()
		NewHandler(a).Stats(rec, httptest.NewRequest(http.MethodGet, "/analytics?top="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}
