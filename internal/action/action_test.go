package action

import (
	"testing"

	"github.com/realagiorganization/fresh/internal/cursor"
	"github.com/realagiorganization/fresh/internal/editlog"
	"github.com/realagiorganization/fresh/internal/layout"
	"github.com/realagiorganization/fresh/internal/piecetree"
)

func TestTranslateInsertText(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("ab"))
	cs := cursor.NewSet(1)
	lay := layout.Build(pt, 0, 4)

	events := Translate(pt, cs, lay, Action{Kind: InsertText, Text: []byte("X")}, 4)
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	e := events[0]
	if e.Kind != editlog.KindInsert || e.Position != 1 || string(e.Text) != "X" {
		t.Fatalf("event = %+v, want Insert at 1 of %q", e, "X")
	}
}

func TestTranslateDeleteBackwardAtBufferStartIsNoop(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("ab"))
	cs := cursor.NewSet(0)
	lay := layout.Build(pt, 0, 4)

	events := Translate(pt, cs, lay, Action{Kind: DeleteBackward}, 4)
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Range.Start != events[0].Range.End {
		t.Fatalf("expected empty range at buffer start, got %+v", events[0].Range)
	}
}

func TestTranslateDeleteBackwardRemovesPrevRune(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("abc"))
	cs := cursor.NewSet(3)
	lay := layout.Build(pt, 0, 4)

	events := Translate(pt, cs, lay, Action{Kind: DeleteBackward}, 4)
	e := events[0]
	if e.Range.Start != 2 || e.Range.End != 3 || string(e.Removed) != "c" {
		t.Fatalf("event = %+v, want Range{2,3} Removed=%q", e, "c")
	}
}

func TestTranslateDeleteSelectionUsesSelectionRange(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("hello world"))
	cs := cursor.NewSet(11)
	cs.Primary().Selection = &cursor.Selection{Anchor: 6, Active: 11}
	lay := layout.Build(pt, 0, 4)

	events := Translate(pt, cs, lay, Action{Kind: DeleteSelection}, 4)
	e := events[0]
	if e.Range.Start != 6 || e.Range.End != 11 || string(e.Removed) != "world" {
		t.Fatalf("event = %+v, want Range{6,11} Removed=%q", e, "world")
	}
}

func TestTranslateMoveLeftRight(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("abc"))
	cs := cursor.NewSet(1)
	lay := layout.Build(pt, 0, 4)

	events := Translate(pt, cs, lay, Action{Kind: MoveLeft}, 4)
	if events[0].ToByte != 0 {
		t.Fatalf("MoveLeft ToByte = %d, want 0", events[0].ToByte)
	}

	events = Translate(pt, cs, lay, Action{Kind: MoveRight}, 4)
	if events[0].ToByte != 2 {
		t.Fatalf("MoveRight ToByte = %d, want 2", events[0].ToByte)
	}
}

func TestTranslateMoveLineStartEnd(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("one\ntwo\nthree"))
	cs := cursor.NewSet(5) // inside "two"
	lay := layout.Build(pt, 0, 4)

	events := Translate(pt, cs, lay, Action{Kind: MoveLineStart}, 4)
	if events[0].ToByte != 4 {
		t.Fatalf("MoveLineStart ToByte = %d, want 4", events[0].ToByte)
	}

	events = Translate(pt, cs, lay, Action{Kind: MoveLineEnd}, 4)
	if events[0].ToByte != 7 {
		t.Fatalf("MoveLineEnd ToByte = %d, want 7", events[0].ToByte)
	}
}

func TestTranslateMoveDownAcrossLines(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("aaa\nbbb\nccc"))
	cs := cursor.NewSet(1) // column 1 of line 0
	lay := layout.Build(pt, 0, 4)

	events := Translate(pt, cs, lay, Action{Kind: MoveDown}, 4)
	if events[0].ToByte != 5 { // column 1 of line 1, which starts at byte 4
		t.Fatalf("MoveDown ToByte = %d, want 5", events[0].ToByte)
	}
}

func TestTranslateMultiCursorInsertProducesOneEventEach(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("ab"))
	cs := cursor.NewSet(0)
	cs.AddCursor(2)
	lay := layout.Build(pt, 0, 4)

	events := Translate(pt, cs, lay, Action{Kind: InsertText, Text: []byte("!")}, 4)
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
}

func TestTranslateUndoRedoProduceNoEvents(t *testing.T) {
	pt := piecetree.NewFromBytes([]byte("ab"))
	cs := cursor.NewSet(0)
	lay := layout.Build(pt, 0, 4)

	if events := Translate(pt, cs, lay, Action{Kind: Undo}, 4); events != nil {
		t.Fatalf("Undo produced events: %+v", events)
	}
	if events := Translate(pt, cs, lay, Action{Kind: Redo}, 4); events != nil {
		t.Fatalf("Redo produced events: %+v", events)
	}
}
