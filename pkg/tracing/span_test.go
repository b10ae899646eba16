package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "filter", "req-1")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := StartChildSpan(ctx, "evaluate")
			child.SetAttr("jobs", 1)
			child.End()
		}()
	}
	wg.Wait()
	root.End()

	children := root.Children()
	require.Len(t, children, 10)
	assert.Equal(t, "req-1", children[0].TraceID)
	v, ok := children[0].Attr("jobs")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestLogOrdersAttributes(t *testing.T) {
	_, root := StartSpan(context.Background(), "filter", "req-3")
	root.SetAttr("zeta", 1)
	root.SetAttr("alpha", 2)
	root.End()

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	assert.Less(t, strings.Index(out, "alpha=2"), strings.Index(out, "zeta=1"))
}

func TestDetachedChild(t *testing.T) {
	_, child := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, child.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestLogRespectsLevel(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "filter", "req-2")
	_, child := StartChildSpan(ctx, "assemble")
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	assert.Empty(t, buf.String())

	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=filter")
	assert.Contains(t, lines[1], "span=assemble")
	assert.Contains(t, lines[1], "parent=filter")
	assert.Contains(t, lines[1], "parent_id="+root.ID)
	assert.NotContains(t, lines[0], "parent=")
}
