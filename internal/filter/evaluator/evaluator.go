// Package evaluator applies compiled word rules to jobs through the
// membership oracle. Each job ends in exactly one of three states: kept,
// rejected by a rule, or failed because the oracle could not answer.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/rules"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	"github.com/panjf2000/ants/v2"
)

// Status is the result of evaluating one job.
type Status int

const (
	StatusKept Status = iota
	StatusRejected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusKept:
		return "kept"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the evaluation result for one job. Bucket is set when the job
// was rejected or failed, naming the bucket being evaluated. Err is set only
// for StatusFailed.
type Outcome struct {
	Job    jobs.Job
	Status Status
	Bucket *rules.Bucket
	Err    error
}

// MembershipTester answers ordered membership queries for a job's field.
type MembershipTester interface {
	TestAll(ctx context.Context, id jobs.ID, field jobs.Field, words []string) ([]bool, error)
}

// Evaluator runs per-job evaluations concurrently on a bounded worker pool.
type Evaluator struct {
	oracle  MembershipTester
	pool    *ants.Pool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Evaluator with at most concurrency jobs in flight. m may be
// nil. Release must be called when the Evaluator is no longer used.
func New(oracle MembershipTester, concurrency int, m *metrics.Metrics) (*Evaluator, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("creating evaluation pool: %w", err)
	}
	return &Evaluator{
		oracle:  oracle,
		pool:    pool,
		metrics: m,
		logger:  slog.Default().With("component", "rule-evaluator"),
	}, nil
}

// Release stops the worker pool.
func (e *Evaluator) Release() {
	e.pool.Release()
}

// Evaluate returns one Outcome per job, in input order. Jobs are evaluated
// independently; a failure for one job does not affect any other. An empty
// rule set keeps every job without querying the oracle.
func (e *Evaluator) Evaluate(ctx context.Context, all []jobs.Job, set *rules.RuleSet) []Outcome {
	outcomes := make([]Outcome, len(all))
	buckets := set.Buckets()
	if len(buckets) == 0 {
		for i, job := range all {
			outcomes[i] = Outcome{Job: job, Status: StatusKept}
		}
		e.record(outcomes)
		return outcomes
	}

	var wg sync.WaitGroup
	for i := range all {
		wg.Add(1)
		idx := i
		err := e.pool.Submit(func() {
			defer wg.Done()
			outcomes[idx] = e.evaluateJob(ctx, all[idx], buckets)
		})
		if err != nil {
			wg.Done()
			outcomes[idx] = Outcome{Job: all[idx], Status: StatusFailed, Err: fmt.Errorf("scheduling evaluation: %w", err)}
		}
	}
	wg.Wait()
	e.record(outcomes)
	return outcomes
}

// evaluateJob walks the buckets in order and stops at the first rejection or
// failure.
func (e *Evaluator) evaluateJob(ctx context.Context, job jobs.Job, buckets []rules.Bucket) Outcome {
	for i := range buckets {
		b := &buckets[i]
		if len(b.Words) == 0 {
			continue
		}
		present, err := e.oracle.TestAll(ctx, job.ID, b.Field, b.Words)
		if err != nil {
			return Outcome{Job: job, Status: StatusFailed, Bucket: b, Err: err}
		}
		if len(present) != len(b.Words) {
			return Outcome{Job: job, Status: StatusFailed, Bucket: b,
				Err: fmt.Errorf("oracle answered %d of %d words", len(present), len(b.Words))}
		}
		reject, err := Rejects(b.Mode, present)
		if err != nil {
			return Outcome{Job: job, Status: StatusFailed, Bucket: b, Err: err}
		}
		if reject {
			return Outcome{Job: job, Status: StatusRejected, Bucket: b}
		}
	}
	return Outcome{Job: job, Status: StatusKept}
}

// Rejects applies a mode's predicate to the oracle's answers for a bucket:
// require rejects if any word is absent, contain rejects if every word is
// absent, and exclude rejects if any word is present. An empty answer never
// rejects.
func Rejects(mode rules.Mode, present []bool) (bool, error) {
	if len(present) == 0 {
		return false, nil
	}
	switch mode {
	case rules.ModeRequire:
		return slices.Contains(present, false), nil
	case rules.ModeContain:
		return !slices.Contains(present, true), nil
	case rules.ModeExclude:
		return slices.Contains(present, true), nil
	default:
		return false, fmt.Errorf("unhandled mode %v", mode)
	}
}

func (e *Evaluator) record(outcomes []Outcome) {
	if e.metrics == nil {
		return
	}
	var counts [3]int
	for _, o := range outcomes {
		counts[o.Status]++
	}
	for s, n := range counts {
		if n > 0 {
			e.metrics.JobOutcomesTotal.WithLabelValues(Status(s).String()).Add(float64(n))
		}
	}
}
