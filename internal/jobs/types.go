// Package jobs holds the job catalog the filter runs against: the Job record,
// the closed set of searchable fields, and loaders for the precomputed data
// the membership indexes are built from.
package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Field is a searchable job attribute. The set is closed.
type Field string

const (
	FieldTitle    Field = "title"
	FieldLocation Field = "location"
)

// Fields lists every Field in display order.
var Fields = []Field{FieldTitle, FieldLocation}

// ParseField returns the Field named s.
func ParseField(s string) (Field, bool) {
	switch Field(s) {
	case FieldTitle, FieldLocation:
		return Field(s), true
	}
	return "", false
}

// ID is a job identifier. The data files carry it as either a JSON number or
// a string; it is always held as a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("job id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Job is an immutable job posting.
type Job struct {
	ID          ID        `json:"ID"`
	Date        time.Time `json:"date"`
	Title       string    `json:"title,omitempty"`
	Company     string    `json:"company,omitempty"`
	Location    string    `json:"location,omitempty"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Record pairs a Job with its precomputed per-field word lists. A nil list
// means the data for that field is missing; an empty list means the field
// has no words.
type Record struct {
	Job   Job
	Words map[Field][]string
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDate accepts RFC 3339 timestamps and bare calendar dates, all in UTC
// unless an offset is given.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
