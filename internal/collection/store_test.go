package collection

import (
	"testing"

	"github.com/kalambet/jobtrail/internal/record"
)

func jobsFixture() []record.Record {
	return []record.Record{
		{"id": "1", "title": "Dev", "company": "Acme", "status": "Saved"},
		{"id": "2", "title": "QA", "company": "Beta", "status": "Applied"},
		{"id": "3", "title": "Ops", "company": "Gamma", "status": "Applied"},
	}
}

func ids(rs []record.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = IDString(r["id"])
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStore_MutateReturnsPrevious(t *testing.T) {
	s := NewStore("")
	s.Replace(jobsFixture())

	prev, ok := s.Mutate("1", record.Patch{"status": "Applied"})
	if !ok {
		t.Fatal("Mutate reported missing entity")
	}
	if prev["status"] != "Saved" {
		t.Errorf("prev status = %v, want Saved", prev["status"])
	}
	got, _ := s.Get("1")
	if got.String("status") != "Applied" {
		t.Errorf("status = %q, want Applied", got.String("status"))
	}
}

func TestStore_UnknownIDIsNoOp(t *testing.T) {
	s := NewStore("")
	s.Replace(jobsFixture())
	before := s.Changes()

	if prev, ok := s.Mutate("404", record.Patch{"status": "Applied"}); ok || prev != nil {
		t.Errorf("Mutate(404) = %v, %v; want nil, false", prev, ok)
	}
	if _, ok := s.Remove("404"); ok {
		t.Error("Remove(404) reported ok")
	}
	if _, ok := s.Revert("404", record.Patch{"status": "x"}, record.Patch{"status": "y"}); ok {
		t.Error("Revert(404) reported ok")
	}
	if s.Changes() != before {
		t.Error("no-op operations changed the store")
	}
}

func TestStore_IDIsNeverPatched(t *testing.T) {
	s := NewStore("")
	s.Replace(jobsFixture())

	s.Mutate("1", record.Patch{"id": "99", "title": "Senior Dev"})

	got, ok := s.Get("1")
	if !ok {
		t.Fatal("entity lost its id")
	}
	if got.String("title") != "Senior Dev" {
		t.Errorf("title = %q", got.String("title"))
	}
	if _, ok := s.Get("99"); ok {
		t.Error("id was reassigned")
	}
}

func TestStore_RemoveAndReinsertOriginalPosition(t *testing.T) {
	s := NewStore("")
	s.Replace(jobsFixture())

	rm, ok := s.Remove("2")
	if !ok {
		t.Fatal("Remove failed")
	}
	if rm.Index != 1 {
		t.Errorf("index = %d, want 1", rm.Index)
	}
	if !equalIDs(ids(s.Snapshot()), []string{"1", "3"}) {
		t.Errorf("after remove = %v", ids(s.Snapshot()))
	}

	if !s.Reinsert(rm) {
		t.Error("expected original position to be used")
	}
	if !equalIDs(ids(s.Snapshot()), []string{"1", "2", "3"}) {
		t.Errorf("after reinsert = %v", ids(s.Snapshot()))
	}
}

func TestStore_ReinsertAppendsAfterStructuralChange(t *testing.T) {
	s := NewStore("")
	s.Replace(jobsFixture())

	rm, _ := s.Remove("1")
	s.Remove("3")

	if s.Reinsert(rm) {
		t.Error("expected append fallback")
	}
	if !equalIDs(ids(s.Snapshot()), []string{"2", "1"}) {
		t.Errorf("order = %v, want [2 1]", ids(s.Snapshot()))
	}
}

func TestStore_RestoreOverwritesOrAppends(t *testing.T) {
	s := NewStore("")
	s.Replace(jobsFixture())

	s.Restore("2", record.Record{"id": "2", "title": "QA Lead"})
	got, _ := s.Get("2")
	if got.String("title") != "QA Lead" {
		t.Errorf("title = %q", got.String("title"))
	}

	s.Restore("4", record.Record{"id": "4", "title": "PM"})
	if !equalIDs(ids(s.Snapshot()), []string{"1", "2", "3", "4"}) {
		t.Errorf("order = %v", ids(s.Snapshot()))
	}
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore("")
	s.Replace(jobsFixture())

	snap := s.Snapshot()
	s.Mutate("1", record.Patch{"status": "Rejected"})
	s.Remove("2")

	if snap[0].String("status") != "Saved" {
		t.Error("snapshot saw a later mutation")
	}
	if len(snap) != 3 {
		t.Error("snapshot saw a later removal")
	}
}

func TestStore_NumericIDs(t *testing.T) {
	s := NewStore("")
	s.Replace([]record.Record{{"id": float64(1), "title": "Dev"}})

	if _, ok := s.Get("1"); !ok {
		t.Error("numeric id not addressable by its string form")
	}
}
