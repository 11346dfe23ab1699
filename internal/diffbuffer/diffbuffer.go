// Package diffbuffer implements the composite (diff) buffer: a read-mostly
// view that aligns two source buffers line-by-line for side-by-side or
// unified display (spec §4.L). It generalizes the teacher's
// internal/tui/gitdiff.go, which parses `git diff --unified=0` text into
// gutter-dot markers for a single buffer, into the full LineAlignment model:
// instead of regexing "@@ -a,b +c,d @@" headers out of a git subprocess, the
// hunk list is computed structurally with github.com/hexops/gotextdiff
// (already a teacher dependency) directly against the two buffers' current
// text.
package diffbuffer

import (
	"sort"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/realagiorganization/fresh/internal/workspace"
)

// Hunk is the structural equivalent of a unified-diff hunk header, in the
// same shape the teacher's parseHunkHeader extracted from text:
// {old_start, old_count, new_start, new_count}, all 0-indexed line numbers.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
}

// computeHunks diffs oldText against newText and returns their hunks. It
// plays the role GitFileMarkers' `git diff` subprocess played for the
// teacher, but needs no subprocess and works on any two in-memory buffers,
// not just a file against its git HEAD.
func computeHunks(oldText, newText string) []Hunk {
	edits := myers.ComputeEdits(span.URIFromPath("old"), oldText, newText)
	unified := gotextdiff.ToUnified("old", "new", oldText, edits)

	hunks := make([]Hunk, 0, len(unified.Hunks))
	for _, h := range unified.Hunks {
		// ToUnified pads each hunk with Equal context lines and numbers its
		// lines from 1; trim the padding and convert to 0-indexed starts.
		lines := h.Lines
		lead := 0
		for lead < len(lines) && lines[lead].Kind == gotextdiff.Equal {
			lead++
		}
		for len(lines) > lead && lines[len(lines)-1].Kind == gotextdiff.Equal {
			lines = lines[:len(lines)-1]
		}
		lines = lines[lead:]
		var oldCount, newCount int
		for _, l := range lines {
			switch l.Kind {
			case gotextdiff.Delete:
				oldCount++
			case gotextdiff.Insert:
				newCount++
			case gotextdiff.Equal:
				oldCount++
				newCount++
			}
		}
		hunks = append(hunks, Hunk{
			OldStart: h.FromLine - 1 + lead,
			OldCount: oldCount,
			NewStart: h.ToLine - 1 + lead,
			NewCount: newCount,
		})
	}
	return hunks
}

// RowKind classifies one row of a LineAlignment.
type RowKind int

const (
	RowContext RowKind = iota
	RowAddition
	RowDeletion
	RowModification
)

// AlignedRow pairs an old-side line number with a new-side line number, one
// or the other being -1 (filler) when the row has no counterpart on that
// side.
type AlignedRow struct {
	OldLine int
	NewLine int
	Kind    RowKind
}

// LineAlignment is the row-by-row alignment of two files' lines, built from
// a hunk list per spec §4.L: context rows advance both sides in lockstep;
// a pure deletion hunk advances the old side only (the new pane shows
// filler); a pure addition advances the new side only; a hunk with both
// sides non-empty ("a modification") renders as paired rows, one per line
// on whichever side has more, the shorter side padded with filler.
type LineAlignment struct {
	rows       []AlignedRow
	hunkStarts []int // row index each hunk begins at, ascending
}

// appendContextRun appends one context row per line spanned by
// [oldFrom,oldTo) and [newFrom,newTo), in lockstep. The two spans are
// ordinarily the same length (a context line is identical on both sides);
// when they differ — e.g. the caller only has approximate total line
// counts for each side — the longer side's extra rows get filler on the
// shorter side rather than being dropped.
func appendContextRun(rows *[]AlignedRow, oldFrom, oldTo, newFrom, newTo int) {
	n := oldTo - oldFrom
	if newTo-newFrom > n {
		n = newTo - newFrom
	}
	for i := 0; i < n; i++ {
		row := AlignedRow{OldLine: -1, NewLine: -1, Kind: RowContext}
		if oldFrom+i < oldTo {
			row.OldLine = oldFrom + i
		}
		if newFrom+i < newTo {
			row.NewLine = newFrom + i
		}
		*rows = append(*rows, row)
	}
}

// BuildAlignment aligns oldTotal/newTotal lines given the hunks that
// separate them.
func BuildAlignment(hunks []Hunk, oldTotal, newTotal int) *LineAlignment {
	a := &LineAlignment{}
	oldCursor, newCursor := 0, 0

	for _, h := range hunks {
		appendContextRun(&a.rows, oldCursor, h.OldStart, newCursor, h.NewStart)
		oldCursor, newCursor = h.OldStart, h.NewStart

		a.hunkStarts = append(a.hunkStarts, len(a.rows))

		switch {
		case h.OldCount == 0:
			for i := 0; i < h.NewCount; i++ {
				a.rows = append(a.rows, AlignedRow{OldLine: -1, NewLine: h.NewStart + i, Kind: RowAddition})
			}
		case h.NewCount == 0:
			for i := 0; i < h.OldCount; i++ {
				a.rows = append(a.rows, AlignedRow{OldLine: h.OldStart + i, NewLine: -1, Kind: RowDeletion})
			}
		default:
			n := h.OldCount
			if h.NewCount > n {
				n = h.NewCount
			}
			for i := 0; i < n; i++ {
				row := AlignedRow{OldLine: -1, NewLine: -1, Kind: RowModification}
				if i < h.OldCount {
					row.OldLine = h.OldStart + i
				}
				if i < h.NewCount {
					row.NewLine = h.NewStart + i
				}
				a.rows = append(a.rows, row)
			}
		}

		oldCursor = h.OldStart + h.OldCount
		newCursor = h.NewStart + h.NewCount
	}

	appendContextRun(&a.rows, oldCursor, oldTotal, newCursor, newTotal)

	return a
}

// RowCount returns the number of aligned rows.
func (a *LineAlignment) RowCount() int { return len(a.rows) }

// Row returns the aligned row at index i.
func (a *LineAlignment) Row(i int) AlignedRow { return a.rows[i] }

// NextHunkRow returns the row index of the first hunk beginning strictly
// after r, or -1 if there is none.
func (a *LineAlignment) NextHunkRow(r int) int {
	i := sort.SearchInts(a.hunkStarts, r+1)
	if i >= len(a.hunkStarts) {
		return -1
	}
	return a.hunkStarts[i]
}

// PrevHunkRow returns the row index of the last hunk beginning at or before
// r, or -1 if there is none.
func (a *LineAlignment) PrevHunkRow(r int) int {
	i := sort.SearchInts(a.hunkStarts, r+1) - 1
	if i < 0 {
		return -1
	}
	return a.hunkStarts[i]
}

// SourcePane is one side of a composite buffer: a reference to a live
// buffer in the registry, not an owned copy of its text (spec §4.L:
// "the composite does not own text").
type SourcePane struct {
	Buffer *workspace.Buffer
	Label  string
}

// Layout selects how a CompositeBuffer's aligned rows are rendered.
type Layout int

const (
	SideBySide Layout = iota
	Stacked
	Unified
)

// CompositeBuffer presents two SourcePanes aligned for diff viewing. It
// recomputes its alignment from the panes' live content on Refresh rather
// than caching text, so edits made through the standard event pipeline on
// either pane are reflected the next time the composite is read.
type CompositeBuffer struct {
	Old, New  SourcePane
	Alignment *LineAlignment
	Layout    Layout
}

// NewCompositeBuffer builds a composite over two panes and computes its
// initial alignment.
func NewCompositeBuffer(old, new SourcePane, layout Layout) *CompositeBuffer {
	c := &CompositeBuffer{Old: old, New: new, Layout: layout}
	c.Refresh()
	return c
}

// Refresh recomputes the hunk list and alignment from the panes' current
// buffer content.
func (c *CompositeBuffer) Refresh() {
	oldText := c.Old.Buffer.Content.String()
	newText := c.New.Buffer.Content.String()
	hunks := computeHunks(oldText, newText)
	c.Alignment = BuildAlignment(hunks, c.Old.Buffer.Content.LineCount(), c.New.Buffer.Content.LineCount())
}

// RowCount returns the number of rows in the current alignment.
func (c *CompositeBuffer) RowCount() int { return c.Alignment.RowCount() }

// NextHunkRow returns the row index of the next hunk after r.
func (c *CompositeBuffer) NextHunkRow(r int) int { return c.Alignment.NextHunkRow(r) }

// PrevHunkRow returns the row index of the hunk at or before r.
func (c *CompositeBuffer) PrevHunkRow(r int) int { return c.Alignment.PrevHunkRow(r) }
