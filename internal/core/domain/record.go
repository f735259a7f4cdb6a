// Package domain defines the values threaded through a resolver pipeline:
// records, storage operations, per-invocation contexts and typed errors.
package domain

import (
	"maps"
	"slices"
)

// Record is one stored item, keyed by attribute name.
type Record map[string]any

// Clone returns a deep copy of the record. Nested maps and slices produced by
// JSON decoding are copied as well so that stored items never alias caller values.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a new record holding r's attributes overlaid with other's.
// Attributes in other win.
func (r Record) Merge(other Record) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(other))
	}
	for k, v := range other {
		out[k] = cloneValue(v)
	}
	return out
}

// Keys returns the attribute names in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
