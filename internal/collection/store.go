package collection

import (
	"errors"
	"sync"

	"github.com/kalambet/jobtrail/internal/record"
)

// ErrNotFound is returned when an operation names an entity the store does
// not hold.
var ErrNotFound = errors.New("entity not found")

// DefaultIDField is the field holding the backend-assigned identifier.
const DefaultIDField = "id"

// Removal captures an entity taken out of the store so it can be put back.
type Removal struct {
	Record record.Record
	Index  int

	// version is the store's structural version right after the removal.
	version uint64
}

// Store holds the authoritative local copy of a collection of entities.
//
// Every method is one critical section and none of them fail: operations on
// an unknown id are no-ops that report ok=false. Records are never modified
// in place, so a Snapshot can be read without holding the lock.
type Store struct {
	idField string

	mu      sync.RWMutex
	items   []record.Record
	index   map[string]int
	version uint64 // bumped on every insert, removal or replace
	changes uint64 // bumped on every change of any kind
}

// NewStore creates an empty Store keyed by idField ("id" when empty).
func NewStore(idField string) *Store {
	if idField == "" {
		idField = DefaultIDField
	}
	return &Store{
		idField: idField,
		index:   make(map[string]int),
	}
}

// IDField returns the name of the identifier field.
func (s *Store) IDField() string { return s.idField }

// IDOf returns the identifier of r.
func (s *Store) IDOf(r record.Record) string {
	return IDString(r[s.idField])
}

// Replace sets the authoritative state, typically on initial load.
// Uniqueness of ids is the backend's job; a later duplicate wins the index.
func (s *Store) Replace(items []record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]record.Record, len(items))
	copy(s.items, items)
	s.reindex()
	s.version++
	s.changes++
}

// Insert appends r, or overwrites the entity with the same id in place.
func (s *Store) Insert(r record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(s.IDOf(r), r)
}

// Mutate shallow-merges patch into the entity with the given id and returns
// the previous values of the patched fields. The id field is never patched.
func (s *Store) Mutate(id string, patch record.Patch) (record.Patch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	patch = s.withoutID(patch)
	next, prev := record.Apply(s.items[i], patch)
	s.items[i] = next
	s.changes++
	return prev, true
}

// Revert rolls back a mutation: each field in prev is restored only while it
// still holds the value in applied. Fields a later mutation has overwritten
// are left alone. It returns the fields that were actually restored.
func (s *Store) Revert(id string, prev, applied record.Patch) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	cur := s.items[i]
	restore := make(record.Patch, len(prev))
	for field, old := range prev {
		now, present := cur[field]
		if !present {
			now = record.Absent
		}
		if record.Equal(now, applied[field]) {
			restore[field] = old
		}
	}
	if len(restore) == 0 {
		return nil, true
	}
	next, _ := record.Apply(cur, s.withoutID(restore))
	s.items[i] = next
	s.changes++
	return restore.Fields(), true
}

// Remove deletes the entity with the given id and returns it together with
// its position.
func (s *Store) Remove(id string) (Removal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return Removal{}, false
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.reindex()
	s.version++
	s.changes++
	return Removal{Record: removed, Index: i, version: s.version}, true
}

// Restore re-inserts previous under id, overwriting an entity with that id
// in place or appending it at the end.
func (s *Store) Restore(id string, previous record.Record) {
	if previous == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(id, previous)
}

// Reinsert puts a removed entity back. It goes back to its original index
// when nothing was inserted or removed since; otherwise it is appended.
// It reports whether the original position was used.
func (s *Store) Reinsert(rm Removal) bool {
	if rm.Record == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.IDOf(rm.Record)
	if _, exists := s.index[id]; exists || s.version != rm.version || rm.Index > len(s.items) {
		s.upsert(id, rm.Record)
		return false
	}
	s.items = append(s.items, nil)
	copy(s.items[rm.Index+1:], s.items[rm.Index:])
	s.items[rm.Index] = rm.Record
	s.reindex()
	s.version++
	s.changes++
	return true
}

// Get returns the entity with the given id.
func (s *Store) Get(id string) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.items[i], true
}

// Snapshot returns the current collection in display order.
func (s *Store) Snapshot() []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]record.Record, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Changes returns a counter that increases on every change. Views use it to
// know when to recompute.
func (s *Store) Changes() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changes
}

func (s *Store) upsert(id string, r record.Record) {
	if i, ok := s.index[id]; ok {
		s.items[i] = r
		s.changes++
		return
	}
	s.items = append(s.items, r)
	s.index[id] = len(s.items) - 1
	s.version++
	s.changes++
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, r := range s.items {
		s.index[s.IDOf(r)] = i
	}
}

func (s *Store) withoutID(p record.Patch) record.Patch {
	if _, ok := p[s.idField]; !ok {
		return p
	}
	out := make(record.Patch, len(p))
	for k, v := range p {
		if k != s.idField {
			out[k] = v
		}
	}
	return out
}
