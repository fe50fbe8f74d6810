package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred value type of a column.
type Kind string

const (
	KindInteger   Kind = "integer"
	KindReal      Kind = "real"
	KindBoolean   Kind = "boolean"
	KindTimestamp Kind = "timestamp"
	KindText      Kind = "text"
)

// Column describes one field of a dataset after normalization and
// type inference.
type Column struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Nullable bool   `json:"nullable"`
}

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)

// booleanTokens is intentionally word-based: "1"/"0" are treated as
// integers, never booleans.
var booleanTokens = map[string]bool{
	"true":  true,
	"false": true,
	"yes":   true,
	"no":    true,
}

// timestampLayouts are tried in order when probing a column for
// date/time values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// NormalizeName maps a raw field name to a SQL-identifier-safe form:
// lowercase, runs of non-alphanumeric characters collapsed to a single
// underscore, leading/trailing underscores stripped. An empty result is
// left empty; callers substitute a positional placeholder.
func NormalizeName(raw string) string {
	cleaned := nonAlnumPattern.ReplaceAllString(strings.ToLower(raw), "_")
	return strings.Trim(cleaned, "_")
}

// Infer derives one Column per header position. It never fails: columns
// whose values fit no narrower kind fall back to text, and an all-empty
// column is nullable text.
func Infer(header []string, rows [][]string) []Column {
	columns := make([]Column, len(header))
	taken := make(map[string]bool, len(header))

	for i, raw := range header {
		name := NormalizeName(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		// Suffix until free: a later duplicate must not land on a name an
		// earlier field (or an earlier suffix) already claimed.
		if taken[name] {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d", name, n)
				if !taken[candidate] {
					name = candidate
					break
				}
			}
		}
		taken[name] = true
		columns[i] = Column{Name: name}
	}

	for i := range columns {
		columns[i].Kind, columns[i].Nullable = inferKind(i, rows)
	}
	return columns
}

func inferKind(index int, rows [][]string) (Kind, bool) {
	nullable := false
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if index >= len(row) {
			nullable = true
			continue
		}
		value := strings.TrimSpace(row[index])
		if value == "" {
			nullable = true
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return KindText, true
	}

	if allMatch(values, isInteger) {
		return KindInteger, nullable
	}
	if allMatch(values, isReal) {
		return KindReal, nullable
	}
	if allMatch(values, isBoolean) {
		return KindBoolean, nullable
	}
	if allMatch(values, isTimestamp) {
		return KindTimestamp, nullable
	}
	return KindText, nullable
}

func allMatch(values []string, probe func(string) bool) bool {
	for _, value := range values {
		if !probe(value) {
			return false
		}
	}
	return true
}

func isInteger(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

func isReal(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

func isBoolean(value string) bool {
	return booleanTokens[strings.ToLower(value)]
}

func isTimestamp(value string) bool {
	_, ok := ParseTimestamp(value)
	return ok
}

// ParseTimestamp parses a value under the accepted layouts.
func ParseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
