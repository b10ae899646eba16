package analytics

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	maxLatencySamples = 10000
	topWordsLimit     = 10
)

// Stats is a snapshot of the aggregated filter events.
type Stats struct {
	TotalQueries     int64       `json:"total_queries"`
	ZeroResultCount  int64       `json:"zero_result_count"`
	OverflowCount    int64       `json:"overflow_count"`
	FailureCount     int64       `json:"failure_count"`
	FailedJobs       int64       `json:"failed_jobs"`
	AvgLatencyMs     float64     `json:"avg_latency_ms"`
	P50LatencyMs     int64       `json:"p50_latency_ms"`
	P95LatencyMs     int64       `json:"p95_latency_ms"`
	P99LatencyMs     int64       `json:"p99_latency_ms"`
	TopWords         []WordCount `json:"top_words"`
	ZeroResultWords  []WordCount `json:"zero_result_words"`
	QueriesPerMinute float64     `json:"queries_per_minute"`
}

type WordCount struct {
	Word  string `json:"word"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals of filter events in memory. Latencies are
// kept in a ring of the most recent maxLatencySamples events.
type Aggregator struct {
	totalQueries atomic.Int64
	zeroResults  atomic.Int64
	overflows    atomic.Int64
	failures     atomic.Int64
	failedJobs   atomic.Int64
	startTime    time.Time

	mu              sync.RWMutex
	latencies       []int64
	next            int
	wordCounts      map[string]int64
	zeroResultWords map[string]int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:       make([]int64, 0, maxLatencySamples),
		wordCounts:      make(map[string]int64),
		zeroResultWords: make(map[string]int64),
		startTime:       time.Now(),
	}
}

// Record adds one event to the totals.
func (a *Aggregator) Record(event FilterEvent) {
	kind := event.Classify()
	a.totalQueries.Add(1)
	a.failedJobs.Add(int64(event.FailedJobs))
	switch kind {
	case EventFailure:
		a.failures.Add(1)
	case EventOverflow:
		a.overflows.Add(1)
	case EventZeroResult:
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
	}
	a.next = (a.next + 1) % maxLatencySamples
	for _, w := range event.Words {
		a.wordCounts[w]++
		if kind == EventZeroResult {
			a.zeroResultWords[w]++
		}
	}
}

// Stats returns the current totals. Latency figures cover the most recent
// events only.
func (a *Aggregator) Stats() Stats {
	stats := Stats{
		TotalQueries:    a.totalQueries.Load(),
		ZeroResultCount: a.zeroResults.Load(),
		OverflowCount:   a.overflows.Load(),
		FailureCount:    a.failures.Load(),
		FailedJobs:      a.failedJobs.Load(),
	}
	if minutes := time.Since(a.startTime).Minutes(); minutes > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / minutes
	}

	a.mu.RLock()
	sorted := slices.Clone(a.latencies)
	stats.TopWords = topN(a.wordCounts, topWordsLimit)
	stats.ZeroResultWords = topN(a.zeroResultWords, topWordsLimit)
	a.mu.RUnlock()

	if len(sorted) == 0 {
		return stats
	}
	slices.Sort(sorted)
	var sum int64
	for _, l := range sorted {
		sum += l
	}
	stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
	stats.P50LatencyMs = percentile(sorted, 50)
	stats.P95LatencyMs = percentile(sorted, 95)
	stats.P99LatencyMs = percentile(sorted, 99)
	return stats
}

// percentile picks the element pct percent of the way into sorted.
func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[min(pct*len(sorted)/100, len(sorted)-1)]
}

// topN orders by count, then word, so ties are stable.
func topN(counts map[string]int64, n int) []WordCount {
	out := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, WordCount{Word: w, Count: c})
	}
	slices.SortFunc(out, func(x, y WordCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return strings.Compare(x.Word, y.Word)
	})
	return out[:min(n, len(out))]
}
