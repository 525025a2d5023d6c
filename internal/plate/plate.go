// Package plate normalizes and validates OCR plate text ahead of
// deduplication. Normalization is idempotent; validation accepts the Indian
// registration grammar only.
package plate

import (
	"regexp"
	"strings"
)

// NoPlate is the normalized form of every known non-actionable OCR outcome.
const NoPlate = "no plate"

const (
	MinLength = 8
	MaxLength = 10
)

// sentinels are reader outcomes that mean "nothing usable", lowercased.
var sentinels = map[string]bool{
	"error":            true,
	"unreadable":       true,
	"incomplete":       true,
	"no_plate_visible": true,
	"low_quality":      true,
	"not_configured":   true,
}

// grammar: 2 letters (state), 2 digits (district), 1-2 letters (series),
// 3-4 digits (number). Total length 8-10.
var grammar = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{1,2}[0-9]{3,4}$`)

// Normalize strips dashes, spaces and newlines, uppercases, and collapses
// sentinel values to NoPlate. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	if sentinels[strings.ToLower(strings.TrimSpace(raw))] {
		return NoPlate
	}
	r := strings.NewReplacer("-", "", " ", "", "\n", "", "\r", "", "\t", "")
	normalized := strings.ToUpper(r.Replace(raw))
	if normalized == strings.ToUpper(NoPlate) || normalized == "NOPLATE" {
		return NoPlate
	}
	return normalized
}

// Valid reports whether normalized text matches the plate grammar and the
// length bounds. The NoPlate sentinel is never valid.
func Valid(normalized string) bool {
	if len(normalized) < MinLength || len(normalized) > MaxLength {
		return false
	}
	return grammar.MatchString(normalized)
}
