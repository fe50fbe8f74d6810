package schema

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// MaxTableNameLength matches the common SQL identifier limit.
const MaxTableNameLength = 63

// ResolveTableName maps a (dataset name, business label) pair to a
// stable physical table name. The same inputs always yield the same
// name; over-long slugs are truncated with a hash suffix so distinct
// pairs cannot collide after truncation.
func ResolveTableName(datasetName, businessLabel string) string {
	parts := make([]string, 0, 2)
	if slug := NormalizeName(businessLabel); slug != "" {
		parts = append(parts, slug)
	}
	if slug := NormalizeName(datasetName); slug != "" {
		parts = append(parts, slug)
	}
	name := strings.Join(parts, "_")
	if name == "" {
		name = "dataset"
	}
	if len(name) <= MaxTableNameLength {
		return name
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return name[:MaxTableNameLength-len(suffix)] + suffix
}

// Reconcile merges a table's existing columns with a newly inferred
// set. Existing columns keep their position; columns present only in
// the incoming set are appended as nullable. A kind mismatch on a
// shared name widens instead of failing: text subsumes everything,
// real subsumes integer, and any other disagreement degrades to text.
func Reconcile(existing, incoming []Column) []Column {
	merged := make([]Column, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, column := range merged {
		index[column.Name] = i
	}

	for _, column := range incoming {
		at, ok := index[column.Name]
		if !ok {
			column.Nullable = true
			index[column.Name] = len(merged)
			merged = append(merged, column)
			continue
		}
		merged[at].Kind = widen(merged[at].Kind, column.Kind)
		if column.Nullable {
			merged[at].Nullable = true
		}
	}
	return merged
}

// Widens returns true when a reconciled kind is strictly looser than
// the stored one, meaning the physical column needs a type change.
func Widens(stored, reconciled Kind) bool {
	return stored != reconciled && widen(stored, reconciled) == reconciled
}

func widen(a, b Kind) Kind {
	if a == b {
		return a
	}
	if a == KindText || b == KindText {
		return KindText
	}
	if (a == KindInteger && b == KindReal) || (a == KindReal && b == KindInteger) {
		return KindReal
	}
	// boolean and timestamp are never widened into by other kinds
	return KindText
}
