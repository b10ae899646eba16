package handler

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/middleware"
)

// RouterConfig holds the pieces served next to the filter itself. Any of
// them may be nil.
type RouterConfig struct {
	Checker   *health.Checker
	Analytics *analytics.Handler
	Metrics   *metrics.Metrics
	Timeout   time.Duration
}

// NewRouter builds the service's HTTP handler.
//
//	GET /               → redirect to /jobs
//	GET /jobs           → filter result
//	GET /analytics      → aggregated filter statistics
//	GET /health/live    → liveness
//	GET /health/ready   → readiness
//
// Middleware chain (outermost first): RequestID → Metrics → Timeout → mux.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /jobs", h.Jobs)
	if cfg.Analytics != nil {
		mux.HandleFunc("GET /analytics", cfg.Analytics.Stats)
	}
	if cfg.Checker != nil {
		mux.HandleFunc("GET /health/live", cfg.Checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", cfg.Checker.ReadyHandler())
	}

	var chain http.Handler = mux
	if cfg.Timeout > 0 {
		chain = middleware.Timeout(cfg.Timeout)(chain)
	}
	if cfg.Metrics != nil {
		chain = middleware.Metrics(cfg.Metrics, middleware.MuxRoute(mux))(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
