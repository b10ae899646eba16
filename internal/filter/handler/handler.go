// Package handler serves the job filter over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/assembler"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/rules"
	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/tracing"
)

type ResultAssembler interface {
	Assemble(ctx context.Context, q rules.Query) (*assembler.Result, error)
}

// Tracker receives one event per filter request.
type Tracker interface {
	Track(event analytics.FilterEvent)
}

type Handler struct {
	assembler ResultAssembler
	tracker   Tracker
	logger    *slog.Logger
}

// New creates a Handler. tracker may be nil.
func New(a ResultAssembler, tracker Tracker) *Handler {
	return &Handler{
		assembler: a,
		tracker:   tracker,
		logger:    logger.WithComponent("filter-handler"),
	}
}

// Index sends the browser to the filter page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/jobs", http.StatusFound)
}

// Jobs parses the filter form from the query string and answers with the
// assembled Result.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "filter", middleware.GetRequestID(ctx))
	defer func() {
		span.End()
		span.Log(log)
	}()

	q := rules.Parse(r.URL.Query())
	event := analytics.FilterEvent{
		RequestID: middleware.GetRequestID(ctx),
		After:     q.After,
		Rules:     len(q.Rules),
		Words:     ruleWords(q),
	}

	res, err := h.assembler.Assemble(ctx, q)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("filter failed", "rules", len(q.Rules), "status", status, "error", err)
		event.Type = analytics.EventFailure
		h.track(event, start)
		h.writeError(w, status, apperrors.PublicMessage(err))
		return
	}

	event.Results = len(res.Jobs)
	event.Overflow = res.Overflow
	event.FailedJobs = res.FailedCount
	h.track(event, start)

	log.Info("filter completed",
		"rules", len(q.Rules),
		"results", res.ResultsCount,
		"failed_jobs", res.FailedCount,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) track(event analytics.FilterEvent, start time.Time) {
	if h.tracker == nil {
		return
	}
	event.LatencyMs = time.Since(start).Milliseconds()
	event.Timestamp = time.Now().UTC()
	h.tracker.Track(event)
}

// ruleWords lists the distinct words of the enabled rules.
func ruleWords(q rules.Query) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, b := range q.RuleSet().Buckets() {
		for _, w := range b.Words {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
