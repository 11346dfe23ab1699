// Package cursor implements the multi-cursor and selection model of spec
// §4.C: a set of independent cursors over a single buffer, each carrying an
// optional selection, kept consistent across edits via a shared adjustment
// rule. Single-cursor row/col/selection bookkeeping follows the teacher's
// internal/tui/editor.Model (Anchor/active selection, clampCursor);
// generalized here to N cursors with stable dense IDs instead of one bound
// field per Model.
package cursor

import (
	"bytes"
	"sort"

	"github.com/realagiorganization/fresh/internal/fresherr"
	"github.com/realagiorganization/fresh/internal/piecetree"
)

// SelectionMode distinguishes a normal (stream) selection from a rectangular
// block selection.
type SelectionMode int

const (
	SelectionNormal SelectionMode = iota
	SelectionBlock
)

// Selection is a byte range anchored at Anchor and extended to Active;
// Active is the end the cursor moves when extending the selection.
type Selection struct {
	Mode   SelectionMode
	Anchor int
	Active int
}

// Range returns the selection's byte bounds in order regardless of
// direction.
func (s Selection) Range() piecetree.Range {
	if s.Anchor <= s.Active {
		return piecetree.Range{Start: s.Anchor, End: s.Active}
	}
	return piecetree.Range{Start: s.Active, End: s.Anchor}
}

func (s Selection) Empty() bool { return s.Anchor == s.Active }

// ViewPosition locates a cursor both in the wrapped/laid-out view and in the
// underlying byte stream, so layout and buffer code can translate between
// them without re-deriving one from the other.
type ViewPosition struct {
	ViewLine   int
	Column     int
	SourceByte int
}

// Cursor is one insertion point plus its optional selection and the
// preferred visual column used when moving across lines of differing
// length (spec Open Question 2: compared in post-tab-expansion visual
// cells).
type Cursor struct {
	ID              int
	SourceByte      int
	PreferredColumn int
	Selection       *Selection
}

// HasSelection reports whether the cursor currently has a non-empty
// selection.
func (c *Cursor) HasSelection() bool {
	return c.Selection != nil && !c.Selection.Empty()
}

// Set is the ordered collection of cursors active on one buffer.
type Set struct {
	cursors   map[int]*Cursor
	order     []int // insertion order, for stable iteration before sorting
	primaryID int
	nextID    int
}

// NewSet creates a Set with a single primary cursor at the given byte
// offset.
func NewSet(initialByte int) *Set {
	s := &Set{cursors: make(map[int]*Cursor)}
	id := s.allocID()
	s.cursors[id] = &Cursor{ID: id, SourceByte: initialByte}
	s.order = append(s.order, id)
	s.primaryID = id
	return s
}

func (s *Set) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

// Primary returns the primary cursor.
func (s *Set) Primary() *Cursor { return s.cursors[s.primaryID] }

// Get returns the cursor with the given ID, or nil.
func (s *Set) Get(id int) *Cursor { return s.cursors[id] }

// All returns every cursor ordered by ascending byte position.
func (s *Set) All() []*Cursor {
	out := make([]*Cursor, 0, len(s.cursors))
	for _, id := range s.order {
		out = append(out, s.cursors[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceByte < out[j].SourceByte })
	return out
}

// Len returns the number of active cursors.
func (s *Set) Len() int { return len(s.cursors) }

// AddCursor creates a new, non-primary cursor at the given byte offset and
// returns its ID.
func (s *Set) AddCursor(sourceByte int) int {
	id := s.allocID()
	s.cursors[id] = &Cursor{ID: id, SourceByte: sourceByte}
	s.order = append(s.order, id)
	return id
}

// RemoveCursor removes a non-primary cursor. Removing the primary or the
// last remaining cursor is a no-op: a buffer always keeps at least one
// cursor and a designated primary.
func (s *Set) RemoveCursor(id int) {
	if id == s.primaryID || len(s.cursors) <= 1 {
		return
	}
	delete(s.cursors, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// CollapseToPrimary removes every cursor except the primary, e.g. on Escape.
func (s *Set) CollapseToPrimary() {
	primary := s.cursors[s.primaryID]
	s.cursors = map[int]*Cursor{s.primaryID: primary}
	s.order = []int{s.primaryID}
}

// AdjustForEdit applies the cursor-adjustment rule (spec §4.C): a cursor
// before the edit's start is untouched; a cursor at or after the end of the
// removed range (editStart+removedLen) shifts by the edit's net length
// delta, so for a pure insert a cursor exactly at editStart shifts too; a
// cursor inside the deleted range collapses to the edit's start. Call this
// once per committed Insert/Delete, after the
// buffer mutation, for every cursor in the set including the one that
// caused the edit.
func (s *Set) AdjustForEdit(editStart, removedLen, insertedLen int) {
	delta := insertedLen - removedLen
	editEnd := editStart + removedLen
	adjust := func(pos int) int {
		switch {
		case pos < editStart:
			return pos
		case pos >= editEnd:
			return pos + delta
		default:
			return editStart
		}
	}
	for _, c := range s.cursors {
		c.SourceByte = adjust(c.SourceByte)
		if c.Selection != nil {
			c.Selection.Anchor = adjust(c.Selection.Anchor)
			c.Selection.Active = adjust(c.Selection.Active)
		}
	}
}

// NormalizeOverlaps merges cursors that now occupy the same byte position
// (e.g. after AdjustForEdit collapses two into the same spot), keeping the
// lowest ID — which is the primary whenever the primary is among the
// duplicates, since the primary is always allocated first.
func (s *Set) NormalizeOverlaps() {
	seen := make(map[int]int) // byte position -> surviving ID
	for _, id := range append([]int{}, s.order...) {
		c := s.cursors[id]
		if survivor, ok := seen[c.SourceByte]; ok {
			if id != s.primaryID {
				s.RemoveCursor(id)
				continue
			}
			// The primary always survives; evict the earlier duplicate instead.
			if survivor != s.primaryID {
				s.RemoveCursor(survivor)
			}
			seen[c.SourceByte] = s.primaryID
			continue
		}
		seen[c.SourceByte] = id
	}
}

// AddCursorNextMatch implements "add cursor at next match" (spec scenario
// S-1): it searches forward from the primary cursor (or its selection's
// end, if any) for the next occurrence of needle, wrapping around the end
// of the buffer exactly once. It reports fresherr.KindNoFreeMatch if needle
// does not occur anywhere in the buffer outside the positions already
// covered by an existing cursor or selection.
func (s *Set) AddCursorNextMatch(pt *piecetree.PieceTree, needle []byte) error {
	if len(needle) == 0 {
		return fresherr.New(fresherr.KindNoFreeMatch, "empty search pattern")
	}
	content, err := pt.SliceBytes(piecetree.Range{Start: 0, End: pt.Len()})
	if err != nil {
		return err
	}

	primary := s.Primary()
	searchFrom := primary.SourceByte
	if primary.HasSelection() {
		searchFrom = primary.Selection.Range().End
	}

	occupied := make(map[int]bool)
	for _, c := range s.cursors {
		start := c.SourceByte
		if c.HasSelection() {
			start = c.Selection.Range().Start
		}
		occupied[start] = true
	}

	firstMatch := -1
	try := func(from int) int {
		idx := bytes.Index(content[from:], needle)
		if idx < 0 {
			return -1
		}
		return from + idx
	}

	pos := try(searchFrom)
	wrapped := false
	for {
		if pos < 0 {
			if wrapped {
				break
			}
			wrapped = true
			pos = try(0)
			continue
		}
		if firstMatch == -1 {
			firstMatch = pos
		} else if pos == firstMatch {
			// Cycled back to the very first match we considered: every
			// occurrence is already covered by a cursor.
			break
		}
		if !occupied[pos] {
			s.addMatchCursor(pos, len(needle))
			return nil
		}
		next := try(pos + 1)
		if next < 0 && !wrapped {
			wrapped = true
			next = try(0)
		}
		pos = next
	}
	return fresherr.New(fresherr.KindNoFreeMatch, "no further occurrence of the search pattern")
}

func (s *Set) addMatchCursor(matchStart, matchLen int) {
	id := s.AddCursor(matchStart + matchLen)
	s.cursors[id].Selection = &Selection{Anchor: matchStart, Active: matchStart + matchLen}
}
