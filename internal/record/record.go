package record

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Record is a tree of named fields. Nested objects are map[string]any and
// lists are []any, the same shapes encoding/json produces.
//
// Records are values: nothing in this package modifies a Record in place.
// Every update returns a new Record that shares untouched subtrees with the
// original.
type Record map[string]any

// Patch is a shallow-merge patch: top-level field name to new value.
type Patch map[string]any

type absent struct{}

// Absent marks a field that is not present. In a patch it deletes the field;
// in a captured previous value it records that the field did not exist.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent marker.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Apply merges p into r and returns the new record together with the
// previous values of exactly the patched fields.
func Apply(r Record, p Patch) (Record, Patch) {
	next := make(Record, len(r)+len(p))
	for k, v := range r {
		next[k] = v
	}
	prev := make(Patch, len(p))
	for k, v := range p {
		if old, ok := r[k]; ok {
			prev[k] = old
		} else {
			prev[k] = Absent
		}
		if IsAbsent(v) {
			delete(next, k)
		} else {
			next[k] = v
		}
	}
	return next, prev
}

// Fields returns the field names touched by p.
func (p Patch) Fields() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}

// String returns the string stored at field, or "" when the field is missing
// or holds something else.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Lookup returns the value at a dot-separated path such as "otherInfo.skills".
func (r Record) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range splitPath(path) {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set returns a copy of r with value stored at path. Intermediate objects
// are created as needed; a non-object on the way is replaced.
func Set(r Record, path string, value any) Record {
	parts := splitPath(path)
	if len(parts) == 0 {
		return r
	}
	return Record(setIn(map[string]any(r), parts, value))
}

// Delete returns a copy of r without the value at path.
func Delete(r Record, path string) Record {
	parts := splitPath(path)
	if len(parts) == 0 {
		return r
	}
	if _, ok := r.Lookup(path); !ok {
		return r
	}
	return Record(setIn(map[string]any(r), parts, Absent))
}

// Append returns a copy of r with value appended to the list at path.
// A missing list is created.
func Append(r Record, path string, value any) (Record, error) {
	list, err := listAt(r, path)
	if err != nil {
		return r, err
	}
	next := make([]any, len(list), len(list)+1)
	copy(next, list)
	next = append(next, value)
	return Set(r, path, next), nil
}

// RemoveAt returns a copy of r with element i removed from the list at path.
func RemoveAt(r Record, path string, i int) (Record, error) {
	list, err := listAt(r, path)
	if err != nil {
		return r, err
	}
	if i < 0 || i >= len(list) {
		return r, fmt.Errorf("index %d out of range for %s (len %d)", i, path, len(list))
	}
	next := make([]any, 0, len(list)-1)
	next = append(next, list[:i]...)
	next = append(next, list[i+1:]...)
	return Set(r, path, next), nil
}

// PathPatch turns a deep edit into a shallow patch: it returns a Patch that
// replaces the top-level subtree containing path with one that has value
// stored at path.
func PathPatch(r Record, path string, value any) Patch {
	parts := splitPath(path)
	if len(parts) == 0 {
		return Patch{}
	}
	next := Set(r, path, value)
	top := parts[0]
	if v, ok := next[top]; ok {
		return Patch{top: v}
	}
	return Patch{top: Absent}
}

// SubtreePatch returns a patch replacing the top-level subtree of path with
// the one found in next.
func SubtreePatch(next Record, path string) Patch {
	parts := splitPath(path)
	if len(parts) == 0 {
		return Patch{}
	}
	if v, ok := next[parts[0]]; ok {
		return Patch{parts[0]: v}
	}
	return Patch{parts[0]: Absent}
}

// Equal reports whether two field values are deeply equal.
func Equal(a, b any) bool {
	if IsAbsent(a) || IsAbsent(b) {
		return IsAbsent(a) && IsAbsent(b)
	}
	return reflect.DeepEqual(a, b)
}

// Clone returns a deep copy of r.
func Clone(r Record) Record {
	if r == nil {
		return nil
	}
	return Record(cloneValue(map[string]any(r)).(map[string]any))
}

// FromValue converts any JSON-encodable value into a Record.
func FromValue(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return r, nil
}

// Decode fills v from r using JSON field names.
func Decode(r Record, v any) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	return json.Unmarshal(b, v)
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return map[string]any(m), true
	}
	return nil, false
}

func setIn(m map[string]any, parts []string, value any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	key := parts[0]
	if len(parts) == 1 {
		if IsAbsent(value) {
			delete(out, key)
		} else {
			out[key] = value
		}
		return out
	}
	child, ok := asMap(m[key])
	if !ok {
		child = map[string]any{}
	}
	out[key] = setIn(child, parts[1:], value)
	return out
}

func listAt(r Record, path string) ([]any, error) {
	v, ok := r.Lookup(path)
	if !ok || v == nil {
		return nil, nil
	}
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s is not a list", path)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Record:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
