// Package oracletest provides Store wrappers for exercising failure paths.
package oracletest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle"
)

// ErrInjected is returned by FaultyStore for keys selected to fail.
var ErrInjected = errors.New("injected store failure")

// FaultyStore wraps a Store, failing or delaying membership tests for
// selected keys. Provisioning calls pass straight through.
type FaultyStore struct {
	oracle.Store
	// FailKey selects keys whose TestAll returns ErrInjected. Nil fails none.
	FailKey func(key string) bool
	// Delay is applied to every TestAll before answering; it honours ctx.
	Delay time.Duration
	// Short truncates every TestAll answer by one element.
	Short bool

	calls atomic.Int64
}

func (s *FaultyStore) TestAll(ctx context.Context, key string, words ...string) ([]bool, error) {
	s.calls.Add(1)
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.FailKey != nil && s.FailKey(key) {
		return nil, ErrInjected
	}
	res, err := s.Store.TestAll(ctx, key, words...)
	if err != nil {
		return nil, err
	}
	if s.Short && len(res) > 0 {
		res = res[:len(res)-1]
	}
	return res, nil
}

// Calls returns how many TestAll calls reached the store.
func (s *FaultyStore) Calls() int64 {
	return s.calls.Load()
}
