package collection

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/samber/mo"

	"github.com/kalambet/jobtrail/internal/record"
)

// Criterion is one optional filter value. None means no constraint.
type Criterion = mo.Option[string]

// AllSentinel is the value older clients send to mean "no constraint".
const AllSentinel = "all"

// Any returns a criterion that matches everything.
func Any() Criterion { return mo.None[string]() }

// Is returns a criterion that requires value.
func Is(value string) Criterion { return mo.Some(value) }

// ParseCriterion converts raw user input (query strings, select boxes) into a
// criterion. Empty input and the "all" sentinel both mean no constraint; use
// Is to match a category literally named "all".
func ParseCriterion(raw string) Criterion {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, AllSentinel) {
		return Any()
	}
	return Is(raw)
}

// FieldCriterion binds a criterion to a field.
type FieldCriterion struct {
	Field string
	Value Criterion
}

// Predicate is a set of optional criteria combined with logical AND.
type Predicate struct {
	// Query matches case-insensitively as a substring of any QueryFields.
	Query       Criterion
	QueryFields []string

	// Exact fields match by value equality.
	Exact []FieldCriterion

	// Contains fields match as case-insensitive substrings.
	Contains []FieldCriterion
}

// Match reports whether r satisfies every set criterion of p.
func (p Predicate) Match(r record.Record) bool {
	if q, ok := p.Query.Get(); ok {
		q = strings.ToLower(q)
		hit := false
		for _, f := range p.QueryFields {
			if strings.Contains(strings.ToLower(textOf(r[f])), q) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, c := range p.Exact {
		if want, ok := c.Value.Get(); ok && textOf(r[c.Field]) != want {
			return false
		}
	}
	for _, c := range p.Contains {
		if want, ok := c.Value.Get(); ok &&
			!strings.Contains(strings.ToLower(textOf(r[c.Field])), strings.ToLower(want)) {
			return false
		}
	}
	return true
}

// Filtered yields the records of items that satisfy p, in their original
// order. The sequence is lazy and can be ranged over more than once.
func Filtered(items []record.Record, p Predicate) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for _, r := range items {
			if !p.Match(r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Stats holds per-value counts for one field plus the total.
type Stats struct {
	Total int
	By    map[string]int
}

// Count returns the number of records whose field held value.
func (s Stats) Count(value string) int { return s.By[value] }

// CountBy counts items by the value of field. Records without the field
// count only toward Total.
func CountBy(items []record.Record, field string) Stats {
	st := Stats{Total: len(items), By: make(map[string]int)}
	for _, r := range items {
		v, ok := r[field]
		if !ok || v == nil {
			continue
		}
		st.By[textOf(v)]++
	}
	return st
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// IDString returns the canonical string form of an id value.
func IDString(v any) string { return textOf(v) }
