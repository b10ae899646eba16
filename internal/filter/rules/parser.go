package rules

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/words"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
)

// Query parameter names.
const (
	ParamAfterYear    = "after_year"
	ParamAfterMonth   = "after_month"
	ParamAfterDay     = "after_day"
	ParamRulesEnabled = "rules_enabled"
	ParamRulesWords   = "rules_words"
	ParamRulesField   = "rules_field"
	ParamRulesMode    = "rules_mode"
)

// Parse reads a Query from positionally aligned form values. The number of
// rule slots is the number of rules_enabled values. Slots with an unknown
// field or mode, or with no valid words, are dropped without error.
func Parse(values url.Values) Query {
	q := Query{
		After: ParseAfter(
			values.Get(ParamAfterYear),
			values.Get(ParamAfterMonth),
			values.Get(ParamAfterDay),
		),
	}
	enabled := values[ParamRulesEnabled]
	wordsList := values[ParamRulesWords]
	fields := values[ParamRulesField]
	modes := values[ParamRulesMode]

	q.Rules = make([]Rule, 0, len(enabled))
	for i, enabledStr := range enabled {
		field, ok := jobs.ParseField(at(fields, i))
		if !ok {
			continue
		}
		mode, ok := ParseMode(at(modes, i))
		if !ok {
			continue
		}
		ws := words.Split(at(wordsList, i))
		if len(ws) == 0 {
			continue
		}
		q.Rules = append(q.Rules, Rule{
			Enabled: enabledStr == "true",
			Field:   field,
			Mode:    mode,
			Words:   ws,
		})
	}
	return q
}

// ParseAfter builds a UTC midnight date from year, month (1-12) and day.
// It returns nil if any part is missing or not a number, or if the parts do
// not name a real calendar date.
func ParseAfter(year, month, day string) *time.Time {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return nil
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil {
		return nil
	}
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil {
		return nil
	}
	if y < 0 || y > 9999 || m < 1 || m > 12 || d < 1 {
		return nil
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow (Feb 30 -> Mar 2); reject instead.
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return nil
	}
	return &t
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
