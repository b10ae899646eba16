package oracle_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle/oracletest"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fpRate = 0.000000001

func TestKey(t *testing.T) {
	assert.Equal(t, "42_title_words", oracle.Key("42", jobs.FieldTitle))
	assert.Equal(t, "a-1_location_words", oracle.Key("a-1", jobs.FieldLocation))
}

func TestMemoryStoreNoFalseNegatives(t *testing.T) {
	ctx := context.Background()
	s := oracle.NewMemoryStore()
	words := make([]string, 5000)
	for i := range words {
		words[i] = fmt.Sprintf("word-%d", i)
	}
	require.NoError(t, s.Reserve(ctx, "k", fpRate, uint(len(words))))
	require.NoError(t, s.AddAll(ctx, "k", words...))

	got, err := s.TestAll(ctx, "k", words...)
	require.NoError(t, err)
	for i, present := range got {
		require.True(t, present, "inserted word %q tested absent", words[i])
	}

	absent, err := s.TestAll(ctx, "k", "missing-1", "missing-2")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, absent)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := oracle.NewMemoryStore()

	got, err := s.TestAll(ctx, "unknown", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, got, "unknown key answers absent")

	assert.ErrorIs(t, s.AddAll(ctx, "unknown", "a"), oracle.ErrKeyNotFound)

	require.NoError(t, s.Reserve(ctx, "k", fpRate, 0))
	assert.ErrorIs(t, s.Reserve(ctx, "k", fpRate, 10), oracle.ErrKeyExists)

	require.NoError(t, s.AddAll(ctx, "k", "old"))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Reserve(ctx, "k", fpRate, 1))
	require.NoError(t, s.AddAll(ctx, "k", "new"))

	got, err = s.TestAll(ctx, "k", "old", "new")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, got, "delete leaves no stale words")
	assert.Equal(t, 1, s.Len())
}

func newOracle(t *testing.T, store oracle.Store, opts oracle.Options) (*oracle.Oracle, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return oracle.New(store, opts, m), m
}

func provisioned(t *testing.T, id jobs.ID, field jobs.Field, words ...string) *oracle.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := oracle.NewMemoryStore()
	key := oracle.Key(id, field)
	require.NoError(t, s.Reserve(ctx, key, fpRate, uint(len(words))))
	require.NoError(t, s.AddAll(ctx, key, words...))
	return s
}

func TestOracleTestAll(t *testing.T) {
	o, m := newOracle(t, provisioned(t, "1", jobs.FieldTitle, "go", "engineer"), oracle.Options{Timeout: time.Second})

	got, err := o.TestAll(context.Background(), "1", jobs.FieldTitle, []string{"engineer", "designer", "go"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, got)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OracleCallsTotal.WithLabelValues("ok")))
}

func TestOracleEmptyWordsSkipsStore(t *testing.T) {
	store := &oracletest.FaultyStore{Store: oracle.NewMemoryStore()}
	o, _ := newOracle(t, store, oracle.Options{})

	got, err := o.TestAll(context.Background(), "1", jobs.FieldTitle, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, store.Calls())
}

func TestOracleStoreFailureIsNotAbsence(t *testing.T) {
	store := &oracletest.FaultyStore{
		Store:   provisioned(t, "1", jobs.FieldTitle, "go"),
		FailKey: func(string) bool { return true },
	}
	o, m := newOracle(t, store, oracle.Options{Timeout: time.Second})

	got, err := o.TestAll(context.Background(), "1", jobs.FieldTitle, []string{"go"})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrOracleUnavailable)
	assert.ErrorIs(t, err, oracletest.ErrInjected)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OracleCallsTotal.WithLabelValues("error")))
}

func TestOracleShortAnswerIsFailure(t *testing.T) {
	store := &oracletest.FaultyStore{Store: provisioned(t, "1", jobs.FieldTitle, "go"), Short: true}
	o, _ := newOracle(t, store, oracle.Options{Timeout: time.Second})

	_, err := o.TestAll(context.Background(), "1", jobs.FieldTitle, []string{"go", "rust"})
	assert.ErrorIs(t, err, apperrors.ErrOracleUnavailable)
}

func TestOracleTimeout(t *testing.T) {
	store := &oracletest.FaultyStore{Store: provisioned(t, "1", jobs.FieldTitle, "go"), Delay: time.Second}
	o, _ := newOracle(t, store, oracle.Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := o.TestAll(context.Background(), "1", jobs.FieldTitle, []string{"go"})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, apperrors.ErrOracleUnavailable)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestOracleBreakerFailsFast(t *testing.T) {
	store := &oracletest.FaultyStore{
		Store:   provisioned(t, "1", jobs.FieldTitle, "go"),
		FailKey: func(string) bool { return true },
	}
	o, m := newOracle(t, store, oracle.Options{
		Timeout:             time.Second,
		BreakerThreshold:    2,
		BreakerResetTimeout: time.Minute,
	})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := o.TestAll(ctx, "1", jobs.FieldTitle, []string{"go"})
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, o.BreakerState())
	assert.Equal(t, float64(resilience.StateOpen), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("membership-oracle")))

	_, err := o.TestAll(ctx, "1", jobs.FieldTitle, []string{"go"})
	assert.ErrorIs(t, err, apperrors.ErrOracleUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int64(2), store.Calls(), "open breaker does not reach the store")
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := pkgredis.Dial(config.RedisConfig{Addr: "127.0.0.1:1", PoolSize: 1})
	defer client.Close()
	o, _ := newOracle(t, oracle.NewRedisStore(client), oracle.Options{Timeout: 3 * time.Second})

	got, err := o.TestAll(context.Background(), "1", jobs.FieldTitle, []string{"go"})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrOracleUnavailable)
}

func TestRedisStoreEmptyWords(t *testing.T) {
	client := pkgredis.Dial(config.RedisConfig{Addr: "127.0.0.1:1", PoolSize: 1})
	defer client.Close()
	s := oracle.NewRedisStore(client)

	require.NoError(t, s.AddAll(context.Background(), "k"))
	got, err := s.TestAll(context.Background(), "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}
