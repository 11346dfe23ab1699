package editlog

import (
	"testing"

	"github.com/realagiorganization/fresh/internal/fresherr"
	"github.com/realagiorganization/fresh/internal/piecetree"
)

// bufferApplier applies Insert/Delete events directly to a PieceTree, used
// to exercise EventLog's sequencing against real buffer content rather than
// a mock.
type bufferApplier struct {
	pt *piecetree.PieceTree
}

func (a *bufferApplier) Apply(e Event) error {
	switch e.Kind {
	case KindInsert:
		return a.pt.Insert(e.Position, e.Text)
	case KindDelete:
		return a.pt.Delete(e.Range)
	default:
		return nil
	}
}

func (a *bufferApplier) Invert(e Event) (Event, error) {
	switch e.Kind {
	case KindInsert:
		return Event{
			Kind:  KindDelete,
			Range: piecetree.Range{Start: e.Position, End: e.Position + len(e.Text)},
		}, nil
	case KindDelete:
		return Event{Kind: KindInsert, Position: e.Range.Start, Text: e.Removed}, nil
	default:
		return e, nil
	}
}

func newFixture(initial string) (*piecetree.PieceTree, *EventLog) {
	pt := piecetree.NewFromBytes([]byte(initial))
	log := New(&bufferApplier{pt: pt})
	return pt, log
}

func TestRecordAndUndoRoundtrip(t *testing.T) {
	pt, log := newFixture("hello")
	if err := pt.Insert(5, []byte(" world")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	log.Record(Event{Kind: KindInsert, Position: 5, Text: []byte(" world")})

	if got, want := pt.String(), "hello world"; got != want {
		t.Fatalf("content after insert = %q, want %q", got, want)
	}
	if !log.CanUndo() {
		t.Fatal("CanUndo() = false, want true")
	}
	if err := log.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got, want := pt.String(), "hello"; got != want {
		t.Fatalf("content after undo = %q, want %q", got, want)
	}
	if log.CanUndo() {
		t.Fatal("CanUndo() = true after undoing only event, want false")
	}
	if !log.CanRedo() {
		t.Fatal("CanRedo() = false, want true")
	}
	if err := log.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if got, want := pt.String(), "hello world"; got != want {
		t.Fatalf("content after redo = %q, want %q", got, want)
	}
}

func TestUndoAtStartReturnsInconsistentUndo(t *testing.T) {
	_, log := newFixture("")
	err := log.Undo()
	if fresherr.Of(err) != fresherr.KindInconsistentUndo {
		t.Fatalf("Undo() on empty log = %v, want KindInconsistentUndo", err)
	}
}

func TestRecordAfterUndoDiscardsRedoHistory(t *testing.T) {
	pt, log := newFixture("ab")
	pt.Insert(2, []byte("c"))
	log.Record(Event{Kind: KindInsert, Position: 2, Text: []byte("c")})

	if err := log.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	pt.Insert(2, []byte("z"))
	log.Record(Event{Kind: KindInsert, Position: 2, Text: []byte("z")})

	if log.CanRedo() {
		t.Fatal("CanRedo() = true after recording over undone history, want false")
	}
	if got, want := pt.String(), "abz"; got != want {
		t.Fatalf("content = %q, want %q", got, want)
	}
}

func TestConsecutiveInsertsByCursorCoalesce(t *testing.T) {
	pt, log := newFixture("")
	for i, ch := range []byte("abc") {
		pos := i
		if err := pt.Insert(pos, []byte{ch}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		log.Record(Event{Kind: KindInsert, CursorID: 1, Position: pos, Text: []byte{ch}})
	}
	if got, want := pt.String(), "abc"; got != want {
		t.Fatalf("content = %q, want %q", got, want)
	}
	// All three single-char inserts by the same cursor at adjacent offsets
	// should have coalesced into one undo step.
	if err := log.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got, want := pt.String(), ""; got != want {
		t.Fatalf("content after one undo = %q, want %q (coalesced insert did not undo as a unit)", got, want)
	}
	if log.CanUndo() {
		t.Fatal("CanUndo() = true, want false after undoing the single coalesced event")
	}
}

func TestInsertsByDifferentCursorsDoNotCoalesce(t *testing.T) {
	pt, log := newFixture("")
	pt.Insert(0, []byte("a"))
	log.Record(Event{Kind: KindInsert, CursorID: 1, Position: 0, Text: []byte("a")})
	pt.Insert(1, []byte("b"))
	log.Record(Event{Kind: KindInsert, CursorID: 2, Position: 1, Text: []byte("b")})

	if err := log.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got, want := pt.String(), "a"; got != want {
		t.Fatalf("content after one undo = %q, want %q", got, want)
	}
}

func TestBeginEndBatchCollapsesToOneUndoStep(t *testing.T) {
	pt, log := newFixture("xx")
	log.BeginBatch()
	pt.Insert(0, []byte("1"))
	log.Record(Event{Kind: KindInsert, CursorID: 1, Position: 0, Text: []byte("1")})
	pt.Insert(3, []byte("2"))
	log.Record(Event{Kind: KindInsert, CursorID: 2, Position: 3, Text: []byte("2")})
	log.EndBatch()

	if got, want := pt.String(), "1xx2"; got != want {
		t.Fatalf("content = %q, want %q", got, want)
	}
	if err := log.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got, want := pt.String(), "xx"; got != want {
		t.Fatalf("content after batch undo = %q, want %q", got, want)
	}
	if log.CanUndo() {
		t.Fatal("CanUndo() = true, want false: batch should undo as a single step")
	}
}

func TestModifiedFlagTracksSavedIndex(t *testing.T) {
	pt, log := newFixture("a")
	if log.Modified() {
		t.Fatal("Modified() = true on fresh log, want false")
	}
	pt.Insert(1, []byte("b"))
	log.Record(Event{Kind: KindInsert, Position: 1, Text: []byte("b")})
	if !log.Modified() {
		t.Fatal("Modified() = false after recording an edit, want true")
	}
	log.MarkSaved()
	if log.Modified() {
		t.Fatal("Modified() = true immediately after MarkSaved, want false")
	}
	if err := log.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !log.Modified() {
		t.Fatal("Modified() = false after undoing past the saved point, want true")
	}
}

func TestRecoveryDirtyClearedOnDemand(t *testing.T) {
	pt, log := newFixture("a")
	if log.RecoveryDirty() {
		t.Fatal("RecoveryDirty() = true on fresh log, want false")
	}
	pt.Insert(1, []byte("b"))
	log.Record(Event{Kind: KindInsert, Position: 1, Text: []byte("b")})
	if !log.RecoveryDirty() {
		t.Fatal("RecoveryDirty() = false after an edit, want true")
	}
	log.ClearRecoveryDirty()
	if log.RecoveryDirty() {
		t.Fatal("RecoveryDirty() = true after ClearRecoveryDirty, want false")
	}
}

func TestRecentEventsBounded(t *testing.T) {
	_, log := newFixture("")
	for i := 0; i < recentEventCap+50; i++ {
		log.Record(Event{Kind: KindScroll, ScrollDeltaLines: 1})
	}
	if got := len(log.RecentEvents()); got != recentEventCap {
		t.Fatalf("len(RecentEvents()) = %d, want %d", got, recentEventCap)
	}
}
