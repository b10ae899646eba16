// Package words validates and canonicalises the tokens users put in filter
// rules.
package words

import "strings"

// MaxLength is the longest accepted token, in bytes.
const MaxLength = 50

// Valid reports whether s is 1 to MaxLength printable ASCII characters
// (0x20 through 0x7E).
func Valid(s string) bool {
	if len(s) == 0 || len(s) > MaxLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// Normalize returns the lower-cased token and true if s is valid.
func Normalize(s string) (string, bool) {
	if !Valid(s) {
		return "", false
	}
	return strings.ToLower(s), true
}

// Split breaks raw on whitespace and returns the valid tokens, normalised,
// without duplicates, in first-seen order. Invalid tokens are dropped.
func Split(raw string) []string {
	fields := strings.Fields(raw)
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		w, ok := Normalize(f)
		if !ok {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
