package recovery

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "recovery.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBufferIDIsStableForSamePath(t *testing.T) {
	a := BufferID("/tmp/foo.go")
	b := BufferID("/tmp/foo.go")
	if a != b {
		t.Fatalf("BufferID not stable: %q vs %q", a, b)
	}
	if BufferID("/tmp/bar.go") == a {
		t.Fatal("BufferID collided for distinct paths")
	}
}

func TestAllocateIDIsDistinctAcrossCalls(t *testing.T) {
	s := openTestStore(t)
	a := s.AllocateID()
	b := s.AllocateID()
	if a == b {
		t.Fatalf("AllocateID returned the same id twice: %q", a)
	}
}

func TestSaveThenLoadRoundtrips(t *testing.T) {
	s := openTestStore(t)
	id := BufferID("/tmp/foo.go")
	snap := Snapshot{
		Path:    "/tmp/foo.go",
		Content: "package foo\n",
		Cursors: []CursorSnapshot{{AnchorByte: 0, ActiveByte: 4}},
	}
	if err := s.Save(id, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load: want hit, got miss")
	}
	if got.Path != snap.Path || got.Content != snap.Content {
		t.Fatalf("Load = %+v, want %+v", got, snap)
	}
	if len(got.Cursors) != 1 || got.Cursors[0] != snap.Cursors[0] {
		t.Fatalf("Load cursors = %+v, want %+v", got.Cursors, snap.Cursors)
	}
}

func TestSaveOverwritesPreviousSnapshotForSameID(t *testing.T) {
	s := openTestStore(t)
	id := BufferID("/tmp/foo.go")

	if err := s.Save(id, Snapshot{Path: "/tmp/foo.go", Content: "v1"}); err != nil {
		t.Fatalf("Save v1: %v", err)
	}
	if err := s.Save(id, Snapshot{Path: "/tmp/foo.go", Content: "v2"}); err != nil {
		t.Fatalf("Save v2: %v", err)
	}

	got, ok, err := s.Load(id)
	if err != nil || !ok {
		t.Fatalf("Load: %v, ok=%v", err, ok)
	}
	if got.Content != "v2" {
		t.Fatalf("Content = %q, want v2", got.Content)
	}

	ids, err := s.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("ListAll = %v, want exactly one row for repeated Save", ids)
	}
}

func TestLoadMissReturnsFalseNotError(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Load("does-not-exist")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("Load: want miss for unknown id")
	}
}

func TestDeleteRemovesSnapshot(t *testing.T) {
	s := openTestStore(t)
	id := BufferID("/tmp/foo.go")
	if err := s.Save(id, Snapshot{Path: "/tmp/foo.go", Content: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("Load: want miss after Delete")
	}
}

func TestListStaleFindsOldEntriesOnly(t *testing.T) {
	s := openTestStore(t)
	fresh := BufferID("/tmp/fresh.go")
	if err := s.Save(fresh, Snapshot{Path: "/tmp/fresh.go", Content: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stale, err := s.ListStale(0)
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	found := false
	for _, id := range stale {
		if id == fresh {
			found = true
		}
	}
	if !found {
		t.Fatal("ListStale(0) should include every row already written")
	}

	stale, err = s.ListStale(24 * time.Hour)
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("ListStale(24h) = %v, want none for a just-written row", stale)
	}
}

func TestNilStoreMethodsAreSafe(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
	if err := s.Save("id", Snapshot{}); err == nil {
		t.Fatal("Save on nil store should report unconfigured, not panic")
	}
	if _, ok, err := s.Load("id"); err != nil || ok {
		t.Fatalf("Load on nil store = ok=%v err=%v, want miss/nil", ok, err)
	}
	if err := s.Delete("id"); err != nil {
		t.Fatalf("Delete on nil store: %v", err)
	}
	if ids, err := s.ListAll(); err != nil || ids != nil {
		t.Fatalf("ListAll on nil store = %v, %v, want nil, nil", ids, err)
	}
}
