// Package analytics records filter queries: every request becomes a
// FilterEvent that is aggregated in process and, when Kafka is enabled,
// published for offline analysis.
package analytics

import "time"

type EventType string

const (
	EventFilter     EventType = "filter"
	EventZeroResult EventType = "zero_result"
	EventOverflow   EventType = "overflow"
	EventFailure    EventType = "failure"
)

// FilterEvent describes one filter request.
type FilterEvent struct {
	Type       EventType  `json:"type"`
	RequestID  string     `json:"request_id,omitempty"`
	After      *time.Time `json:"after,omitempty"`
	Rules      int        `json:"rules"`
	Words      []string   `json:"words"`
	Results    int        `json:"results"`
	Overflow   bool       `json:"overflow"`
	FailedJobs int        `json:"failed_jobs"`
	LatencyMs  int64      `json:"latency_ms"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Classify picks the event type from the outcome fields.
func (e FilterEvent) Classify() EventType {
	switch {
	case e.Type == EventFailure:
		return EventFailure
	case e.Overflow:
		return EventOverflow
	case e.Results == 0:
		return EventZeroResult
	default:
		return EventFilter
	}
}
