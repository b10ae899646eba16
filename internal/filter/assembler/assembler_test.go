package assembler

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle/oracletest"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/provision"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/rules"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := jobs.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(id jobs.ID, day, title string) jobs.Record {
	return jobs.Record{
		Job: jobs.Job{ID: id, Date: date(day), Title: title},
		Words: map[jobs.Field][]string{
			jobs.FieldTitle:    {title},
			jobs.FieldLocation: {},
		},
	}
}

type harness struct {
	assembler *Assembler
	store     *oracletest.FaultyStore
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T, records []jobs.Record, opts ...Option) *harness {
	t.Helper()
	mem := oracle.NewMemoryStore()
	catalog, err := provision.New(mem, provision.Options{Concurrency: 4}, nil).Run(context.Background(), records)
	require.NoError(t, err)

	store := &oracletest.FaultyStore{Store: mem}
	ev, err := evaluator.New(oracle.New(store, oracle.Options{Timeout: time.Second}, nil), 8, nil)
	require.NoError(t, err)
	t.Cleanup(ev.Release)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	clock := func() time.Time { return time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC) }
	opts = append([]Option{WithMetrics(m), WithClock(clock)}, opts...)
	return &harness{assembler: New(catalog, ev, opts...), store: store, metrics: m}
}

func ids(js []jobs.Job) []jobs.ID {
	out := make([]jobs.ID, len(js))
	for i, j := range js {
		out[i] = j.ID
	}
	return out
}

func twoJobs() []jobs.Record {
	return []jobs.Record{
		rec("1", "2024-01-01", "engineer"),
		rec("2", "2024-02-01", "designer"),
	}
}

func ruleQuery(mode, words string) url.Values {
	return url.Values{
		rules.ParamRulesEnabled: {"true"},
		rules.ParamRulesWords:   {words},
		rules.ParamRulesField:   {"title"},
		rules.ParamRulesMode:    {mode},
	}
}

func TestScenarioRequire(t *testing.T) {
	h := newHarness(t, twoJobs())
	res, err := h.assembler.Assemble(context.Background(), rules.Parse(ruleQuery("require", "engineer")))
	require.NoError(t, err)

	assert.Equal(t, []jobs.ID{"1"}, ids(res.Jobs))
	assert.Equal(t, "1", res.ResultsCount)
	assert.True(t, res.SingleResult)
	assert.False(t, res.NoResults)
	assert.Equal(t, 2, res.JobsCount)
	assert.Equal(t, []FormRule{{Enabled: true, Field: jobs.FieldTitle, Mode: rules.ModeRequire, Words: "engineer"}}, res.Rules)
}

func TestScenarioExclude(t *testing.T) {
	h := newHarness(t, twoJobs())
	res, err := h.assembler.Assemble(context.Background(), rules.Parse(ruleQuery("exclude", "Engineer")))
	require.NoError(t, err)

	assert.Equal(t, []jobs.ID{"2"}, ids(res.Jobs))
}

func TestScenarioDateOnly(t *testing.T) {
	h := newHarness(t, twoJobs())
	q := rules.Parse(url.Values{
		rules.ParamAfterYear:  {"2024"},
		rules.ParamAfterMonth: {"1"},
		rules.ParamAfterDay:   {"15"},
	})
	res, err := h.assembler.Assemble(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []jobs.ID{"2"}, ids(res.Jobs))
	assert.Equal(t, "2024", res.AfterYear)
	assert.Equal(t, "01", res.AfterMonth)
	assert.Equal(t, "15", res.AfterDay)
	assert.Zero(t, h.store.Calls(), "no rules means no oracle queries")
}

func TestDateBoundIsStrict(t *testing.T) {
	h := newHarness(t, twoJobs())
	q := rules.Query{After: ptr(date("2024-02-01"))}
	res, err := h.assembler.Assemble(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, res.NoResults)
	assert.Equal(t, "0", res.ResultsCount)
}

func TestDisabledRulesAreEchoedButNotApplied(t *testing.T) {
	h := newHarness(t, twoJobs())
	v := ruleQuery("require", "nobody")
	v.Set(rules.ParamRulesEnabled, "false")
	res, err := h.assembler.Assemble(context.Background(), rules.Parse(v))
	require.NoError(t, err)

	assert.Equal(t, []jobs.ID{"1", "2"}, ids(res.Jobs))
	require.Len(t, res.Rules, 1)
	assert.False(t, res.Rules[0].Enabled)
	assert.Zero(t, h.store.Calls())
}

func manyJobs(n int) []jobs.Record {
	out := make([]jobs.Record, n)
	for i := range out {
		out[i] = rec(jobs.ID(fmt.Sprint(i+1)), "2024-01-01", "engineer")
	}
	return out
}

func TestOverflow(t *testing.T) {
	tests := []struct {
		name     string
		jobs     int
		query    url.Values
		want     int
		overflow bool
		label    string
	}{
		{"250 without rules", 250, url.Values{}, 200, true, "200+"},
		{"250 with rules", 250, ruleQuery("require", "engineer"), 200, true, "200+"},
		{"exactly 200", 200, ruleQuery("contain", "engineer"), 200, false, "200"},
		{"under the cap", 150, url.Values{}, 150, false, "150"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, manyJobs(tt.jobs))
			res, err := h.assembler.Assemble(context.Background(), rules.Parse(tt.query))
			require.NoError(t, err)

			require.Len(t, res.Jobs, tt.want)
			assert.Equal(t, tt.overflow, res.Overflow)
			assert.Equal(t, tt.label, res.ResultsCount)
			for i, j := range res.Jobs {
				assert.Equal(t, jobs.ID(fmt.Sprint(i+1)), j.ID, "original order is kept")
			}
		})
	}
}

func TestMaxResultsOption(t *testing.T) {
	h := newHarness(t, manyJobs(10), WithMaxResults(3))
	res, err := h.assembler.Assemble(context.Background(), rules.Query{})
	require.NoError(t, err)
	assert.Equal(t, "3+", res.ResultsCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.FilterQueriesTotal.WithLabelValues("overflow")))
}

func TestPartialOracleFailureExcludesJob(t *testing.T) {
	h := newHarness(t, manyJobs(3))
	h.store.FailKey = func(key string) bool { return key == oracle.Key("2", jobs.FieldTitle) }

	res, err := h.assembler.Assemble(context.Background(), rules.Parse(ruleQuery("require", "engineer")))
	require.NoError(t, err)
	assert.Equal(t, []jobs.ID{"1", "3"}, ids(res.Jobs))
	assert.Equal(t, 1, res.FailedCount)
}

func TestTotalOracleOutageIsAnError(t *testing.T) {
	h := newHarness(t, manyJobs(3))
	h.store.FailKey = func(string) bool { return true }

	res, err := h.assembler.Assemble(context.Background(), rules.Parse(ruleQuery("exclude", "engineer")))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperrors.ErrOracleUnavailable)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.FilterQueriesTotal.WithLabelValues("error")))
}

func TestOutageWithNothingToEvaluateIsNotAnError(t *testing.T) {
	h := newHarness(t, twoJobs())
	h.store.FailKey = func(string) bool { return true }
	v := ruleQuery("require", "engineer")
	v.Set(rules.ParamAfterYear, "2030")
	v.Set(rules.ParamAfterMonth, "1")
	v.Set(rules.ParamAfterDay, "1")

	res, err := h.assembler.Assemble(context.Background(), rules.Parse(v))
	require.NoError(t, err)
	assert.True(t, res.NoResults)
}

func TestHumanDate(t *testing.T) {
	tests := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 23: "23rd", 31: "31st"}
	for day, want := range tests {
		got := HumanDate(time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, "January "+want+" 2024", got)
	}
}

func TestTodayLabel(t *testing.T) {
	h := newHarness(t, twoJobs())
	res, err := h.assembler.Assemble(context.Background(), rules.Query{})
	require.NoError(t, err)
	assert.Equal(t, "March 3rd 2024", res.TodayHumanDate)
	assert.Equal(t, []jobs.Field{jobs.FieldTitle, jobs.FieldLocation}, res.Fields)
}

func TestUnprovisioned(t *testing.T) {
	_, err := New(nil, nil).Assemble(context.Background(), rules.Query{})
	assert.ErrorIs(t, err, apperrors.ErrNotProvisioned)
}

func TestEvaluationSpan(t *testing.T) {
	h := newHarness(t, twoJobs())
	ctx, root := tracing.StartSpan(context.Background(), "filter", "req-1")
	_, err := h.assembler.Assemble(ctx, rules.Parse(ruleQuery("require", "engineer")))
	require.NoError(t, err)

	children := root.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "evaluate", children[0].Name)
	kept, _ := children[0].Attr("kept")
	assert.Equal(t, 1, kept)
	total, _ := root.Attr("catalog_jobs")
	assert.Equal(t, 2, total)
}

func ptr(t time.Time) *time.Time { return &t }
