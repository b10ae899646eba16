// Package oracle answers "is word W possibly in job J's field F" using one
// Bloom filter per (job, field). A true answer means possibly present; a
// false answer means definitely absent. Store failures are reported as
// errors wrapping ErrOracleUnavailable and never as absence.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/redis"
	"github.com/bits-and-blooms/bloom/v3"
)

var (
	ErrKeyExists   = errors.New("filter already exists")
	ErrKeyNotFound = errors.New("filter not found")
)

// Store is the approximate-membership backend.
type Store interface {
	// Delete removes the filter at key if it exists.
	Delete(ctx context.Context, key string) error
	// Reserve creates an empty filter sized for capacity items at the given
	// false-positive rate. It fails if key already exists.
	Reserve(ctx context.Context, key string, fpRate float64, capacity uint) error
	// AddAll inserts words into the filter at key.
	AddAll(ctx context.Context, key string, words ...string) error
	// TestAll returns one membership answer per word, in order. A key with
	// no filter answers false for every word.
	TestAll(ctx context.Context, key string, words ...string) ([]bool, error)
}

// Key is the store key of the filter for a job's field.
func Key(id jobs.ID, field jobs.Field) string {
	return fmt.Sprintf("%s_%s_words", id, field)
}

// RedisStore keeps filters in a Redis server with the RedisBloom module.
type RedisStore struct {
	client *pkgredis.Client
}

func NewRedisStore(client *pkgredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key)
}

func (s *RedisStore) Reserve(ctx context.Context, key string, fpRate float64, capacity uint) error {
	return s.client.BFReserve(ctx, key, fpRate, int64(capacity))
}

func (s *RedisStore) AddAll(ctx context.Context, key string, words ...string) error {
	if len(words) == 0 {
		return nil
	}
	return s.client.BFMAdd(ctx, key, words...)
}

func (s *RedisStore) TestAll(ctx context.Context, key string, words ...string) ([]bool, error) {
	if len(words) == 0 {
		return []bool{}, nil
	}
	return s.client.BFMExists(ctx, key, words...)
}

// MemoryStore keeps filters in process. Filters are only read after
// provisioning, so tests take a shared lock.
type MemoryStore struct {
	mu      sync.RWMutex
	filters map[string]*bloom.BloomFilter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{filters: make(map[string]*bloom.BloomFilter)}
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.filters, key)
	return nil
}

func (s *MemoryStore) Reserve(_ context.Context, key string, fpRate float64, capacity uint) error {
	if capacity == 0 {
		capacity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.filters[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrKeyExists)
	}
	s.filters[key] = bloom.NewWithEstimates(capacity, fpRate)
	return nil
}

func (s *MemoryStore) AddAll(_ context.Context, key string, words ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filters[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	for _, w := range words {
		f.AddString(w)
	}
	return nil
}

func (s *MemoryStore) TestAll(_ context.Context, key string, words ...string) ([]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bool, len(words))
	f, ok := s.filters[key]
	if !ok {
		return out, nil
	}
	for i, w := range words {
		out[i] = f.TestString(w)
	}
	return out, nil
}

// Len returns the number of filters held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filters)
}
