// Package action implements the pure (state, action, tab_size) → []EditEvent
// translator of spec §4.G: it never mutates the buffer or cursor set itself,
// only computes the sequence of editlog.Events that applying the action
// would produce, so the caller (the main loop) can feed them through
// editlog.EventLog — keeping every mutation, however it was triggered,
// flowing through one auditable path. Motion targets are generalized from
// the teacher's editor.Model key-switch (internal/tui/editor/editor.go),
// which computed the same row/col deltas inline per bubbletea key case
// instead of as a reusable pure function.
package action

import (
	"github.com/realagiorganization/fresh/internal/cursor"
	"github.com/realagiorganization/fresh/internal/editlog"
	"github.com/realagiorganization/fresh/internal/layout"
	"github.com/realagiorganization/fresh/internal/piecetree"
)

// Kind identifies which editor action is being translated.
type Kind int

const (
	MoveLeft Kind = iota
	MoveRight
	MoveUp
	MoveDown
	MoveLineStart
	MoveLineEnd
	MoveBufferStart
	MoveBufferEnd
	ExtendLeft
	ExtendRight
	ExtendUp
	ExtendDown
	InsertText
	InsertNewline
	DeleteBackward
	DeleteForward
	DeleteSelection
	Undo
	Redo
	Scroll
	AddCursorBelow
	AddCursorNextMatch
)

// Action is the input to Translate: a semantic intent plus whatever payload
// it needs (inserted text, scroll delta, etc).
type Action struct {
	Kind        Kind
	Text        []byte
	ScrollDelta int
}

// Translate computes the EditEvents that applying act to every cursor in
// cursors would produce, given the buffer's current content and a layout
// built at the current content width (needed for visual up/down motion and
// the preferred-column rule). It does not apply them; the caller commits
// them through an editlog.EventLog, which will in turn invoke the buffer's
// Applier.
func Translate(pt *piecetree.PieceTree, cursors *cursor.Set, lay *layout.Layout, act Action, tabWidth int) []editlog.Event {
	switch act.Kind {
	case InsertText:
		return translatePerCursor(cursors, func(c *cursor.Cursor) editlog.Event {
			pos := c.SourceByte
			if c.HasSelection() {
				r := c.Selection.Range()
				pos = r.Start
			}
			return editlog.Event{Kind: editlog.KindInsert, CursorID: c.ID, Position: pos, Text: act.Text}
		})
	case InsertNewline:
		return translatePerCursor(cursors, func(c *cursor.Cursor) editlog.Event {
			return editlog.Event{Kind: editlog.KindInsert, CursorID: c.ID, Position: c.SourceByte, Text: []byte("\n")}
		})
	case DeleteBackward:
		return translatePerCursor(cursors, func(c *cursor.Cursor) editlog.Event {
			if c.HasSelection() {
				return deleteSelectionEvent(pt, c)
			}
			if c.SourceByte == 0 {
				return editlog.Event{Kind: editlog.KindDelete, CursorID: c.ID, Range: piecetree.Range{Start: 0, End: 0}}
			}
			prev := prevRuneBoundary(pt, c.SourceByte)
			removed, _ := pt.SliceBytes(piecetree.Range{Start: prev, End: c.SourceByte})
			return editlog.Event{
				Kind: editlog.KindDelete, CursorID: c.ID,
				Range: piecetree.Range{Start: prev, End: c.SourceByte}, Removed: removed,
			}
		})
	case DeleteForward:
		return translatePerCursor(cursors, func(c *cursor.Cursor) editlog.Event {
			if c.HasSelection() {
				return deleteSelectionEvent(pt, c)
			}
			if c.SourceByte >= pt.Len() {
				return editlog.Event{Kind: editlog.KindDelete, CursorID: c.ID, Range: piecetree.Range{Start: pt.Len(), End: pt.Len()}}
			}
			next := nextRuneBoundary(pt, c.SourceByte)
			removed, _ := pt.SliceBytes(piecetree.Range{Start: c.SourceByte, End: next})
			return editlog.Event{
				Kind: editlog.KindDelete, CursorID: c.ID,
				Range: piecetree.Range{Start: c.SourceByte, End: next}, Removed: removed,
			}
		})
	case DeleteSelection:
		return translatePerCursor(cursors, func(c *cursor.Cursor) editlog.Event {
			return deleteSelectionEvent(pt, c)
		})
	case MoveLeft:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return prevRuneBoundary(pt, c.SourceByte) }, false)
	case MoveRight:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return nextRuneBoundary(pt, c.SourceByte) }, false)
	case ExtendLeft:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return prevRuneBoundary(pt, c.SourceByte) }, true)
	case ExtendRight:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return nextRuneBoundary(pt, c.SourceByte) }, true)
	case MoveUp:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return verticalMove(pt, lay, c, -1) }, false)
	case MoveDown:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return verticalMove(pt, lay, c, 1) }, false)
	case ExtendUp:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return verticalMove(pt, lay, c, -1) }, true)
	case ExtendDown:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return verticalMove(pt, lay, c, 1) }, true)
	case MoveLineStart:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return lineStart(pt, c.SourceByte) }, false)
	case MoveLineEnd:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return lineEnd(pt, c.SourceByte) }, false)
	case MoveBufferStart:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return 0 }, false)
	case MoveBufferEnd:
		return moveEvents(cursors, func(c *cursor.Cursor) int { return pt.Len() }, false)
	case Undo:
		return nil // handled directly by EventLog.Undo(), not an EditEvent
	case Redo:
		return nil
	case Scroll:
		return []editlog.Event{{Kind: editlog.KindScroll, ScrollDeltaLines: act.ScrollDelta}}
	default:
		return nil
	}
}

func translatePerCursor(cursors *cursor.Set, f func(*cursor.Cursor) editlog.Event) []editlog.Event {
	all := cursors.All()
	events := make([]editlog.Event, 0, len(all))
	for _, c := range all {
		events = append(events, f(c))
	}
	return events
}

func deleteSelectionEvent(pt *piecetree.PieceTree, c *cursor.Cursor) editlog.Event {
	r := c.Selection.Range()
	removed, _ := pt.SliceBytes(r)
	return editlog.Event{Kind: editlog.KindDelete, CursorID: c.ID, Range: r, Removed: removed}
}

// moveEvents turns a per-cursor target-position function into MoveCursor
// events. A MoveCursor event carries only the from/to bytes, so extend does
// not change what is emitted, and applying the event moves the cursor
// without touching its selection: the selection is neither extended nor
// collapsed.
func moveEvents(cursors *cursor.Set, target func(*cursor.Cursor) int, extend bool) []editlog.Event {
	return translatePerCursor(cursors, func(c *cursor.Cursor) editlog.Event {
		to := target(c)
		e := editlog.Event{Kind: editlog.KindMoveCursor, CursorID: c.ID, FromByte: c.SourceByte, ToByte: to}
		if extend {
			e.Kind = editlog.KindMoveCursor // same event as a plain move; no selection data is carried
		}
		return e
	})
}

func prevRuneBoundary(pt *piecetree.PieceTree, pos int) int {
	for p := pos - 1; p >= 0; p-- {
		if pt.ValidRuneBoundary(p) {
			return p
		}
	}
	return 0
}

func nextRuneBoundary(pt *piecetree.PieceTree, pos int) int {
	for p := pos + 1; p <= pt.Len(); p++ {
		if pt.ValidRuneBoundary(p) {
			return p
		}
	}
	return pt.Len()
}

func lineStart(pt *piecetree.PieceTree, pos int) int {
	line, err := pt.ByteToLine(pos)
	if err != nil {
		return pos
	}
	start, err := pt.LineToByte(line)
	if err != nil {
		return pos
	}
	return start
}

func lineEnd(pt *piecetree.PieceTree, pos int) int {
	line, err := pt.ByteToLine(pos)
	if err != nil {
		return pos
	}
	tl, err := pt.GetLine(line)
	if err != nil {
		return pos
	}
	return tl.StartByte + len(tl.Content)
}

// verticalMove moves a cursor one visual row up or down using its preferred
// column, converting through the layout so wrapped rows count as one
// vertical step each (spec Open Question 2: the preferred column is
// compared in post-tab-expansion visual cells).
func verticalMove(pt *piecetree.PieceTree, lay *layout.Layout, c *cursor.Cursor, rowDelta int) int {
	pos := layout.SourceByteToViewPosition(lay, c.SourceByte)
	targetRow := pos.ViewLine + rowDelta
	if targetRow < 0 {
		return 0
	}
	if targetRow >= lay.RowCount() {
		return pt.Len()
	}
	col := c.PreferredColumn
	if col == 0 {
		col = pos.Column
	}
	return layout.ViewPositionToSourceByte(lay, targetRow, col)
}
