package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/logger"
)

var timeoutBody = []byte(`{"error":"request timeout"}`)

// Timeout gives each request a deadline. If the handler has not started its
// response when the deadline passes, the client gets a 504 with a JSON body
// and anything the handler writes afterwards is dropped.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			gw := &guardedWriter{w: w, h: make(http.Header)}
			finished := make(chan struct{})
			go func() {
				defer close(finished)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-finished:
				if ctx.Err() == nil {
					return
				}
			case <-ctx.Done():
			}
			if gw.expire() {
				logger.FromContext(r.Context()).Warn("request timed out",
					"method", r.Method, "path", r.URL.Path, "timeout", timeout)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				w.Write(timeoutBody)
			}
		})
	}
}

// guardedWriter lets either the handler or the timeout own the response,
// whichever gets there first. The handler's headers are staged in h and
// copied out when it starts the response.
type guardedWriter struct {
	w http.ResponseWriter
	h http.Header

	mu      sync.Mutex
	started bool
	expired bool
}

func (g *guardedWriter) Header() http.Header { return g.h }

func (g *guardedWriter) start(code int) {
	if g.started {
		return
	}
	g.started = true
	dst := g.w.Header()
	for k, v := range g.h {
		dst[k] = v
	}
	g.w.WriteHeader(code)
}

// expire marks the writer dead and reports whether the response was still
// unstarted, in which case the caller must write the timeout reply.
func (g *guardedWriter) expire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = true
	return !g.started
}

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return
	}
	g.start(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return 0, http.ErrHandlerTimeout
	}
	g.start(http.StatusOK)
	return g.w.Write(b)
}
