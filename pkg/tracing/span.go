// Package tracing keeps a per-request tree of timed spans in the context and
// writes it to slog when the request is done. Nothing is exported to a
// collector; the tree exists to explain slow requests in debug logs.
package tracing

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

// Span is one timed operation. Evaluation workers add children and set
// attributes concurrently; every mutable field is guarded by mu.
type Span struct {
	Name      string
	TraceID   string
	ID        string
	StartTime time.Time

	parent *Span

	mu       sync.Mutex
	duration time.Duration
	children []*Span
	attrs    map[string]any
}

func newSpan(name, traceID string, parent *Span) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		ID:        uuid.NewString()[:8],
		StartTime: time.Now(),
		parent:    parent,
		attrs:     map[string]any{},
	}
}

// StartSpan begins a root span for traceID and returns a context carrying it.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := newSpan(name, traceID, nil)
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan begins a span under the one in ctx. Without a parent the
// span is detached: it works as usual but belongs to no tree.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	var s *Span
	if parent == nil {
		s = newSpan(name, "", nil)
	} else {
		s = newSpan(name, parent.TraceID, parent)
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

// SpanFromContext returns the innermost span in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

func (s *Span) End() {
	s.mu.Lock()
	s.duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

// Children returns a snapshot of the direct children in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.children)
}

// Log writes the tree rooted at s at debug level, parents before children.
// Each record carries its offset from the root's start so concurrent
// children can be lined up.
func (s *Span) Log(logger *slog.Logger) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.walk(func(sp *Span) {
		sp.mu.Lock()
		args := []any{
			"trace_id", sp.TraceID,
			"span", sp.Name,
			"span_id", sp.ID,
			"offset_ms", sp.StartTime.Sub(s.StartTime).Milliseconds(),
			"duration_ms", sp.duration.Milliseconds(),
		}
		if sp.parent != nil {
			args = append(args, "parent", sp.parent.Name, "parent_id", sp.parent.ID)
		}
		for _, k := range slices.Sorted(maps.Keys(sp.attrs)) {
			args = append(args, k, sp.attrs[k])
		}
		sp.mu.Unlock()
		logger.Debug("span", args...)
	})
}

func (s *Span) walk(fn func(*Span)) {
	fn(s)
	for _, c := range s.Children() {
		c.walk(fn)
	}
}
