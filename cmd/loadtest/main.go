// Command loadtest drives concurrent filter queries against a running job
// filter service and reports throughput, latency percentiles and result
// shape (overflowing, empty and partially failed answers).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/rules"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// Config describes one run. Workers cycle through Queries, each starting at
// a different offset.
type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []url.Values
}

// answer is the part of a filter response the report inspects.
type answer struct {
	ResultsCount string `json:"resultsCount"`
	NoResults    bool   `json:"noResults"`
	FailedCount  int    `json:"failedCount"`
}

// Stats collects per-request outcomes from every worker.
type Stats struct {
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int
	transport int // requests that got no HTTP response
	overflow  int
	empty     int
	partial   int
}

func NewStats() *Stats {
	return &Stats{codes: make(map[int]int)}
}

// RecordRequest notes one finished request. err is a transport error, in
// which case status is ignored and no latency is kept.
func (s *Stats) RecordRequest(latency time.Duration, status int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.transport++
		return
	}
	s.latencies = append(s.latencies, latency)
	s.codes[status]++
}

// RecordAnswer tallies the shape of a successful filter response.
func (s *Stats) RecordAnswer(a answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case strings.HasSuffix(a.ResultsCount, "+"):
		s.overflow++
	case a.NoResults:
		s.empty++
	}
	if a.FailedCount > 0 {
		s.partial++
	}
}

// Summary is a point-in-time copy of Stats with latencies sorted.
type Summary struct {
	Total, OK, Failed        int
	Overflow, Empty, Partial int
	Latencies                []time.Duration
	Codes                    map[int]int
}

func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{
		Failed:    s.transport,
		Overflow:  s.overflow,
		Empty:     s.empty,
		Partial:   s.partial,
		Latencies: slices.Clone(s.latencies),
		Codes:     maps.Clone(s.codes),
	}
	slices.Sort(sum.Latencies)
	sum.Total = s.transport
	for code, n := range s.codes {
		sum.Total += n
		if code >= 200 && code < 300 {
			sum.OK += n
		} else {
			sum.Failed += n
		}
	}
	return sum
}

func main() {
	app := &cli.App{
		Name:  "loadtest",
		Usage: "load test the job filter service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:3001", Usage: "base URL of the filter service"},
			&cli.IntFlag{Name: "concurrency", Aliases: []string{"c"}, Value: 10, Usage: "number of concurrent workers"},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Value: 30 * time.Second, Usage: "test duration"},
		},
		Action: func(c *cli.Context) error {
			cfg := Config{
				BaseURL:     strings.TrimSuffix(c.String("url"), "/"),
				Concurrency: c.Int("concurrency"),
				Duration:    c.Duration("duration"),
				Queries:     defaultQueries(),
			}
			if cfg.Concurrency < 1 {
				return fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "load testing %s/jobs: %d workers, %s, %d distinct queries\n",
				cfg.BaseURL, cfg.Concurrency, cfg.Duration, len(cfg.Queries))

			stats := runLoadTest(c.Context, cfg, w)
			return printReport(w, stats, cfg.Duration)
		},
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("load test failed", "error", err)
		os.Exit(1)
	}
}

// ruleQuery encodes single-slot filter forms; every rule is enabled.
func ruleQuery(mode rules.Mode, field, words string) url.Values {
	return url.Values{
		rules.ParamRulesEnabled: {"true"},
		rules.ParamRulesWords:   {words},
		rules.ParamRulesField:   {field},
		rules.ParamRulesMode:    {mode.String()},
	}
}

func withAfter(v url.Values, year, month, day string) url.Values {
	v.Set(rules.ParamAfterYear, year)
	v.Set(rules.ParamAfterMonth, month)
	v.Set(rules.ParamAfterDay, day)
	return v
}

func defaultQueries() []url.Values {
	twoSlots := ruleQuery(rules.ModeRequire, "title", "engineer")
	twoSlots.Add(rules.ParamRulesEnabled, "true")
	twoSlots.Add(rules.ParamRulesWords, "senior staff")
	twoSlots.Add(rules.ParamRulesField, "title")
	twoSlots.Add(rules.ParamRulesMode, rules.ModeExclude.String())

	return []url.Values{
		{},
		ruleQuery(rules.ModeRequire, "title", "engineer"),
		ruleQuery(rules.ModeRequire, "title", "senior software engineer"),
		ruleQuery(rules.ModeContain, "title", "golang rust python"),
		ruleQuery(rules.ModeContain, "location", "remote berlin london"),
		ruleQuery(rules.ModeExclude, "title", "intern junior"),
		ruleQuery(rules.ModeExclude, "location", "onsite"),
		withAfter(url.Values{}, "2024", "1", "1"),
		withAfter(ruleQuery(rules.ModeContain, "title", "developer"), "2023", "6", "15"),
		twoSlots,
	}
}

func runLoadTest(parent context.Context, cfg Config, w io.Writer) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: cfg.Concurrency,
			IdleConnTimeout:     time.Minute,
		},
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for worker := range cfg.Concurrency {
		g.Go(func() error {
			for i := worker; ctx.Err() == nil; i++ {
				q := cfg.Queries[i%len(cfg.Queries)]
				runQuery(ctx, client, cfg.BaseURL+"/jobs?"+q.Encode(), stats)
			}
			return nil
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		fmt.Fprint(w, "Running")
		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(w, " done")
				return nil
			case <-ticker.C:
				fmt.Fprint(w, ".")
			}
		}
	})
	g.Wait()
	fmt.Fprintln(w)
	return stats
}

// runQuery issues one request. Requests cut short by the end of the run are
// not counted.
func runQuery(ctx context.Context, client *http.Client, target string, stats *Stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		stats.RecordRequest(0, 0, err)
		return
	}
	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			stats.RecordRequest(latency, 0, err)
		}
		return
	}
	defer resp.Body.Close()
	stats.RecordRequest(latency, resp.StatusCode, nil)

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return
	}
	var a answer
	if json.NewDecoder(resp.Body).Decode(&a) == nil {
		stats.RecordAnswer(a)
	}
}

func printReport(w io.Writer, stats *Stats, elapsed time.Duration) error {
	sum := stats.Summary()
	if sum.Total == 0 {
		return errors.New("no requests completed; is the service running at the target URL?")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	section := func(title string) { fmt.Fprintf(tw, "\n== %s ==\n", title) }

	section("Requests")
	fmt.Fprintf(tw, "total\t%d\n", sum.Total)
	fmt.Fprintf(tw, "ok\t%d\n", sum.OK)
	fmt.Fprintf(tw, "failed\t%d (%.2f%%)\n", sum.Failed, 100*float64(sum.Failed)/float64(sum.Total))
	fmt.Fprintf(tw, "throughput\t%.1f req/s\n", float64(sum.Total)/elapsed.Seconds())

	section("Answers")
	fmt.Fprintf(tw, "overflowing\t%d\n", sum.Overflow)
	fmt.Fprintf(tw, "empty\t%d\n", sum.Empty)
	fmt.Fprintf(tw, "partial\t%d\n", sum.Partial)

	if n := len(sum.Latencies); n > 0 {
		var total time.Duration
		for _, l := range sum.Latencies {
			total += l
		}
		mean := total / time.Duration(n)
		var sq float64
		for _, l := range sum.Latencies {
			d := float64(l - mean)
			sq += d * d
		}
		section("Latency")
		fmt.Fprintf(tw, "min\t%s\n", sum.Latencies[0])
		fmt.Fprintf(tw, "mean\t%s\n", mean)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(tw, "p%g\t%s\n", p, percentile(sum.Latencies, p))
		}
		fmt.Fprintf(tw, "max\t%s\n", sum.Latencies[n-1])
		fmt.Fprintf(tw, "stddev\t%s\n", time.Duration(math.Sqrt(sq/float64(n))))
	}

	section("Status codes")
	for _, code := range slices.Sorted(maps.Keys(sum.Codes)) {
		fmt.Fprintf(tw, "%d\t%d\n", code, sum.Codes[code])
	}
	return tw.Flush()
}

// percentile returns the nearest-rank p-th percentile of sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	return sorted[min(max(rank-1, 0), len(sorted)-1)]
}
