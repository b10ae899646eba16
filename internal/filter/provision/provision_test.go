package provision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id jobs.ID, title, location []string) jobs.Record {
	return jobs.Record{
		Job:   jobs.Job{ID: id, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		Words: map[jobs.Field][]string{jobs.FieldTitle: title, jobs.FieldLocation: location},
	}
}

func TestRunBuildsFilters(t *testing.T) {
	ctx := context.Background()
	store := oracle.NewMemoryStore()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	p := New(store, Options{Concurrency: 4}, m)

	records := []jobs.Record{
		record("1", []string{"go", "engineer"}, []string{"remote"}),
		record("2", []string{"designer"}, []string{}),
	}
	catalog, err := p.Run(ctx, records)
	require.NoError(t, err)
	assert.True(t, p.Done())

	require.Equal(t, 2, catalog.Len())
	assert.Equal(t, jobs.ID("1"), catalog.Jobs()[0].ID)
	assert.Equal(t, jobs.ID("2"), catalog.Jobs()[1].ID)
	assert.Equal(t, 4, store.Len())
	assert.Equal(t, float64(4), testutil.ToFloat64(m.IndexesProvisioned))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CatalogJobs))

	for _, rec := range records {
		assert.Nil(t, rec.Words, "word lists are released after provisioning")
	}

	got, err := store.TestAll(ctx, oracle.Key("1", jobs.FieldTitle), "engineer", "go", "designer")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, got)

	got, err = store.TestAll(ctx, oracle.Key("2", jobs.FieldLocation), "remote")
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, got)
}

func TestRunReplacesStaleFilters(t *testing.T) {
	ctx := context.Background()
	store := oracle.NewMemoryStore()
	key := oracle.Key("1", jobs.FieldTitle)
	require.NoError(t, store.Reserve(ctx, key, DefaultFalsePositiveRate, 10))
	require.NoError(t, store.AddAll(ctx, key, "stale"))

	_, err := New(store, Options{}, nil).Run(ctx, []jobs.Record{record("1", []string{"fresh"}, []string{"x"})})
	require.NoError(t, err)

	got, err := store.TestAll(ctx, key, "stale", "fresh")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, got)
}

func TestRunMissingData(t *testing.T) {
	store := oracle.NewMemoryStore()
	rec := record("7", []string{"go"}, nil)
	delete(rec.Words, jobs.FieldLocation)
	p := New(store, Options{}, nil)

	_, err := p.Run(context.Background(), []jobs.Record{record("1", []string{"a"}, []string{"b"}), rec})
	assert.ErrorIs(t, err, apperrors.ErrMissingData)
	assert.ErrorContains(t, err, "job 7 field location")
	assert.False(t, p.Done())
	assert.Zero(t, store.Len(), "nothing is provisioned when data is missing")
}

type flakyStore struct {
	*oracle.MemoryStore
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) Reserve(ctx context.Context, key string, fp float64, capacity uint) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("connection reset")
	}
	s.mu.Unlock()
	return s.MemoryStore.Reserve(ctx, key, fp, capacity)
}

func TestRunRetriesTransientErrors(t *testing.T) {
	store := &flakyStore{MemoryStore: oracle.NewMemoryStore(), failures: 2}
	p := New(store, Options{Retry: resilience.Backoff{Attempts: 3, Base: time.Millisecond}}, nil)

	_, err := p.Run(context.Background(), []jobs.Record{record("1", []string{"go"}, []string{"remote"})})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestRunFailsWhenStoreIsDown(t *testing.T) {
	store := &flakyStore{MemoryStore: oracle.NewMemoryStore(), failures: 100}
	p := New(store, Options{Retry: resilience.Backoff{Attempts: 2, Base: time.Millisecond}}, nil)

	_, err := p.Run(context.Background(), []jobs.Record{record("1", []string{"go"}, []string{"remote"})})
	assert.ErrorContains(t, err, "connection reset")
	assert.False(t, p.Done())
}
