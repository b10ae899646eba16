// Package assembler runs a parsed filter query against the job catalog and
// builds the result handed to the presentation layer.
package assembler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/rules"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/tracing"
)

// DefaultMaxResults caps the number of jobs in a Result.
const DefaultMaxResults = 200

// RuleEvaluator evaluates compiled rules for every job.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, all []jobs.Job, set *rules.RuleSet) []evaluator.Outcome
}

// FormRule is a rule echoed back to the query form, words joined by spaces.
type FormRule struct {
	Enabled bool       `json:"enabled"`
	Field   jobs.Field `json:"field"`
	Mode    rules.Mode `json:"mode"`
	Words   string     `json:"words"`
}

// Result is everything the presentation layer needs for one query.
type Result struct {
	AfterYear      string       `json:"afterYear,omitempty"`
	AfterMonth     string       `json:"afterMonth,omitempty"`
	AfterDay       string       `json:"afterDay,omitempty"`
	Rules          []FormRule   `json:"rules"`
	Fields         []jobs.Field `json:"fields"`
	JobsCount      int          `json:"jobsCount"`
	Jobs           []jobs.Job   `json:"jobs"`
	ResultsCount   string       `json:"resultsCount"`
	NoResults      bool         `json:"noResults"`
	SingleResult   bool         `json:"singleResult"`
	Overflow       bool         `json:"overflow"`
	FailedCount    int          `json:"failedCount"`
	TodayHumanDate string       `json:"todayHumanDate"`
}

// Assembler combines the date bound, rule evaluation and result cap.
type Assembler struct {
	catalog    *jobs.Catalog
	evaluator  RuleEvaluator
	maxResults int
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxResults overrides DefaultMaxResults.
func WithMaxResults(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

// WithMetrics records query metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithClock replaces time.Now for the "today" label.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

func New(catalog *jobs.Catalog, ev RuleEvaluator, opts ...Option) *Assembler {
	a := &Assembler{
		catalog:    catalog,
		evaluator:  ev,
		maxResults: DefaultMaxResults,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble filters the catalog by q's date bound, then by its compiled rules,
// and caps the survivors at the configured maximum, keeping catalog order.
// Jobs whose evaluation failed are left out and counted in FailedCount. It
// returns an error wrapping ErrOracleUnavailable only when every evaluated
// job failed.
func (a *Assembler) Assemble(ctx context.Context, q rules.Query) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "result-assembler")
	if a.catalog == nil {
		return nil, apperrors.New(apperrors.ErrNotProvisioned, http.StatusServiceUnavailable, "no job catalog loaded")
	}

	candidates := a.catalog.Jobs()
	if span := tracing.SpanFromContext(ctx); span != nil {
		span.SetAttr("catalog_jobs", len(candidates))
	}
	if q.After != nil {
		after := *q.After
		dated := make([]jobs.Job, 0, len(candidates))
		for _, job := range candidates {
			if job.Date.After(after) {
				dated = append(dated, job)
			}
		}
		candidates = dated
	}

	failed := 0
	set := q.RuleSet()
	if !set.Empty() {
		_, span := tracing.StartChildSpan(ctx, "evaluate")
		span.SetAttr("jobs", len(candidates))
		span.SetAttr("buckets", set.Len())
		outcomes := a.evaluator.Evaluate(ctx, candidates, set)
		span.End()
		kept := make([]jobs.Job, 0, len(outcomes))
		for _, o := range outcomes {
			switch o.Status {
			case evaluator.StatusKept:
				kept = append(kept, o.Job)
			case evaluator.StatusFailed:
				failed++
				log.Warn("job evaluation failed", "job_id", o.Job.ID, "error", o.Err)
			}
		}
		if failed > 0 && failed == len(outcomes) {
			a.observe(start, "error", 0)
			return nil, apperrors.Newf(apperrors.ErrOracleUnavailable, http.StatusServiceUnavailable,
				"all %d job evaluations failed", failed)
		}
		span.SetAttr("kept", len(kept))
		span.SetAttr("failed", failed)
		candidates = kept
	}

	overflow := false
	if len(candidates) > a.maxResults {
		overflow = true
		candidates = candidates[:a.maxResults:a.maxResults]
	}

	res := &Result{
		Rules:          formRules(q.Rules),
		Fields:         a.catalog.Fields(),
		JobsCount:      a.catalog.Len(),
		Jobs:           candidates,
		ResultsCount:   strconv.Itoa(len(candidates)),
		NoResults:      len(candidates) == 0,
		SingleResult:   len(candidates) == 1,
		Overflow:       overflow,
		FailedCount:    failed,
		TodayHumanDate: HumanDate(a.now()),
	}
	if overflow {
		res.ResultsCount += "+"
	}
	if q.After != nil {
		res.AfterYear = q.After.Format("2006")
		res.AfterMonth = q.After.Format("01")
		res.AfterDay = q.After.Format("02")
	}

	resultType := "ok"
	switch {
	case overflow:
		resultType = "overflow"
	case res.NoResults:
		resultType = "zero_result"
	}
	a.observe(start, resultType, len(candidates))
	log.Debug("query assembled",
		"rules", len(q.Rules),
		"buckets", set.Len(),
		"results", res.ResultsCount,
		"failed", failed,
	)
	return res, nil
}

func (a *Assembler) observe(start time.Time, resultType string, n int) {
	if a.metrics == nil {
		return
	}
	a.metrics.FilterQueriesTotal.WithLabelValues(resultType).Inc()
	a.metrics.FilterLatency.Observe(time.Since(start).Seconds())
	if resultType != "error" {
		a.metrics.FilterResultsCount.Observe(float64(n))
	}
}

func formRules(rs []rules.Rule) []FormRule {
	out := make([]FormRule, len(rs))
	for i, r := range rs {
		out[i] = FormRule{
			Enabled: r.Enabled,
			Field:   r.Field,
			Mode:    r.Mode,
			Words:   strings.Join(r.Words, " "),
		}
	}
	return out
}

// HumanDate formats t like "March 3rd 2024".
func HumanDate(t time.Time) string {
	return fmt.Sprintf("%s %d%s %d", t.Month(), t.Day(), ordinalSuffix(t.Day()), t.Year())
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
