package cursor

import (
	"testing"

	"github.com/realagiorganization/fresh/internal/fresherr"
	"github.com/realagiorganization/fresh/internal/piecetree"
)

func TestNewSetHasSinglePrimary(t *testing.T) {
	s := NewSet(5)
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if s.Primary().SourceByte != 5 {
		t.Fatalf("Primary().SourceByte = %d, want 5", s.Primary().SourceByte)
	}
}

func TestAddRemoveCursor(t *testing.T) {
	s := NewSet(0)
	id := s.AddCursor(10)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if s.Get(id).SourceByte != 10 {
		t.Fatalf("Get(id).SourceByte = %d, want 10", s.Get(id).SourceByte)
	}
	s.RemoveCursor(id)
	if s.Len() != 1 {
		t.Fatalf("Len() after remove = %d, want 1", s.Len())
	}
}

func TestRemoveCursorNeverRemovesLastOrPrimary(t *testing.T) {
	s := NewSet(0)
	primaryID := s.Primary().ID
	s.RemoveCursor(primaryID)
	if s.Len() != 1 {
		t.Fatalf("RemoveCursor removed the sole primary cursor: Len() = %d", s.Len())
	}

	id := s.AddCursor(3)
	s.RemoveCursor(id)
	s.RemoveCursor(primaryID) // now the only cursor again — still protected
	if s.Len() != 1 {
		t.Fatalf("RemoveCursor removed the last remaining cursor: Len() = %d", s.Len())
	}
}

func TestCollapseToPrimary(t *testing.T) {
	s := NewSet(0)
	s.AddCursor(5)
	s.AddCursor(9)
	s.CollapseToPrimary()
	if s.Len() != 1 {
		t.Fatalf("Len() after collapse = %d, want 1", s.Len())
	}
	if s.Primary().SourceByte != 0 {
		t.Fatalf("Primary().SourceByte after collapse = %d, want 0", s.Primary().SourceByte)
	}
}

func TestAdjustForEditShiftsCursorsAfterInsert(t *testing.T) {
	s := NewSet(2)
	after := s.AddCursor(10)
	before := s.AddCursor(2)
	_ = before

	// Insert 4 bytes at position 5: cursors before 5 untouched, at/after shift by +4.
	s.AdjustForEdit(5, 0, 4)

	if s.Primary().SourceByte != 2 {
		t.Fatalf("cursor before edit point moved: got %d, want 2", s.Primary().SourceByte)
	}
	if got := s.Get(after).SourceByte; got != 14 {
		t.Fatalf("cursor after edit point = %d, want 14", got)
	}
}

func TestAdjustForEditCollapsesCursorsInsideDeletedRange(t *testing.T) {
	s := NewSet(7) // inside the deleted range [5,10)
	outside := s.AddCursor(20)

	s.AdjustForEdit(5, 5, 0) // delete [5,10)

	if s.Primary().SourceByte != 5 {
		t.Fatalf("cursor inside deleted range = %d, want collapsed to 5", s.Primary().SourceByte)
	}
	if got := s.Get(outside).SourceByte; got != 15 {
		t.Fatalf("cursor after deleted range = %d, want 15", got)
	}
}

func TestNormalizeOverlapsMergesDuplicatePositions(t *testing.T) {
	s := NewSet(5)
	dup := s.AddCursor(5)
	s.AddCursor(9)

	s.NormalizeOverlaps()

	if s.Len() != 2 {
		t.Fatalf("Len() after normalize = %d, want 2", s.Len())
	}
	if s.Get(dup) != nil {
		t.Fatal("duplicate non-primary cursor at the primary's position should have been evicted")
	}
}

func TestAddCursorNextMatchCyclesThenReportsNoFreeMatch(t *testing.T) {
	content := "foo bar foo baz foo"
	pt := piecetree.NewFromBytes([]byte(content))
	s := NewSet(0)

	if err := s.AddCursorNextMatch(pt, []byte("foo")); err != nil {
		t.Fatalf("1st AddCursorNextMatch: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() after 1st match = %d, want 2", s.Len())
	}

	if err := s.AddCursorNextMatch(pt, []byte("foo")); err != nil {
		t.Fatalf("2nd AddCursorNextMatch: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() after 2nd match = %d, want 3", s.Len())
	}

	err := s.AddCursorNextMatch(pt, []byte("foo"))
	if fresherr.Of(err) != fresherr.KindNoFreeMatch {
		t.Fatalf("3rd AddCursorNextMatch = %v, want KindNoFreeMatch (all 3 occurrences already covered)", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() after exhausting matches = %d, want 3 (unchanged)", s.Len())
	}
}

func TestAddCursorNextMatchOnEmptyPattern(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("anything"))
	s := NewSet(0)
	err := s.AddCursorNextMatch(pt, nil)
	if fresherr.Of(err) != fresherr.KindNoFreeMatch {
		t.Fatalf("empty pattern = %v, want KindNoFreeMatch", err)
	}
}
