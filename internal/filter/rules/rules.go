// Package rules turns raw filter query parameters into a Query and compiles
// its rules into per-(mode, field) word buckets.
package rules

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
)

// Mode is the predicate a rule applies to its words.
type Mode int

const (
	// ModeRequire keeps a job only if every word is present.
	ModeRequire Mode = iota
	// ModeContain keeps a job if at least one word is present.
	ModeContain
	// ModeExclude keeps a job only if no word is present.
	ModeExclude
)

// Modes lists every Mode in evaluation order.
var Modes = []Mode{ModeRequire, ModeContain, ModeExclude}

func (m Mode) String() string {
	switch m {
	case ModeRequire:
		return "require"
	case ModeContain:
		return "contain"
	case ModeExclude:
		return "exclude"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ModeRequire, ModeContain, ModeExclude:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("unknown mode %d", int(m))
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, ok := ParseMode(string(text))
	if !ok {
		return fmt.Errorf("unknown mode %q", text)
	}
	*m = mode
	return nil
}

// ParseMode returns the Mode named s.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "require":
		return ModeRequire, true
	case "contain":
		return ModeContain, true
	case "exclude":
		return ModeExclude, true
	}
	return 0, false
}

// Rule is one validated rule slot from the query form.
type Rule struct {
	Enabled bool       `json:"enabled"`
	Field   jobs.Field `json:"field"`
	Mode    Mode       `json:"mode"`
	Words   []string   `json:"words"`
}

// Query is a parsed filter request. After is nil when no date bound applies.
// Rules holds every well-formed rule, enabled or not, in slot order.
type Query struct {
	After *time.Time
	Rules []Rule
}

// RuleSet returns the compiled buckets of q's enabled rules.
func (q Query) RuleSet() *RuleSet {
	return Compile(q.Rules)
}
