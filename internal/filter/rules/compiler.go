package rules

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
)

// Bucket is the union of the words of every enabled rule sharing a mode and
// field.
type Bucket struct {
	Mode  Mode
	Field jobs.Field
	Words []string
}

type bucketKey struct {
	mode  Mode
	field jobs.Field
}

// RuleSet is a compiled set of buckets. Empty buckets are never stored.
type RuleSet struct {
	buckets map[bucketKey]map[string]struct{}
}

// Compile unions the words of all enabled rules into buckets. The result
// does not depend on rule order, and compiling a rule twice adds nothing.
func Compile(rs []Rule) *RuleSet {
	set := &RuleSet{buckets: make(map[bucketKey]map[string]struct{})}
	for _, r := range rs {
		if !r.Enabled || len(r.Words) == 0 || !r.wellFormed() {
			continue
		}
		key := bucketKey{mode: r.Mode, field: r.Field}
		ws, ok := set.buckets[key]
		if !ok {
			ws = make(map[string]struct{}, len(r.Words))
			set.buckets[key] = ws
		}
		for _, w := range r.Words {
			ws[w] = struct{}{}
		}
	}
	return set
}

// Empty reports whether the set has no buckets.
func (s *RuleSet) Empty() bool {
	return s == nil || len(s.buckets) == 0
}

// Len returns the number of buckets.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.buckets)
}

// Words returns the sorted words of the (mode, field) bucket, or nil.
func (s *RuleSet) Words(mode Mode, field jobs.Field) []string {
	if s == nil {
		return nil
	}
	ws, ok := s.buckets[bucketKey{mode: mode, field: field}]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ws))
	for w := range ws {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}

// Buckets returns every bucket ordered by mode then field, each with sorted
// words.
func (s *RuleSet) Buckets() []Bucket {
	if s.Empty() {
		return nil
	}
	out := make([]Bucket, 0, len(s.buckets))
	for _, mode := range Modes {
		for _, field := range jobs.Fields {
			if ws := s.Words(mode, field); len(ws) > 0 {
				out = append(out, Bucket{Mode: mode, Field: field, Words: ws})
			}
		}
	}
	return out
}

func (r Rule) wellFormed() bool {
	if _, ok := jobs.ParseField(string(r.Field)); !ok {
		return false
	}
	_, ok := ParseMode(r.Mode.String())
	return ok
}
