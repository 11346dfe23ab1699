// Package viewport keeps a stable scroll position across layout rebuilds
// (spec §4.E). Rather than tracking a row index, which shifts whenever the
// buffer above it changes line count, the viewport anchors on a source
// byte offset and re-derives the row to display it at each time the layout
// changes — the same anchor-by-content approach the teacher's editor uses
// for its own single-cursor clampScroll, generalized to survive layout
// rebuilds rather than just intra-layout scrolling.
package viewport

import "github.com/realagiorganization/fresh/internal/layout"

// Viewport tracks the visible window of ViewLine rows.
type Viewport struct {
	Height int

	anchorByte int // source byte that must remain on screen across rebuilds
	topRow     int // first visible ViewLine row, valid only for the layout
	// the viewport was last stabilized against
}

// New creates a Viewport of the given height in rows.
func New(height int) *Viewport {
	return &Viewport{Height: height}
}

// TopRow returns the first visible row.
func (v *Viewport) TopRow() int { return v.topRow }

// BottomRow returns the last visible row (inclusive).
func (v *Viewport) BottomRow() int {
	if v.Height <= 0 {
		return v.topRow
	}
	return v.topRow + v.Height - 1
}

// ScrollBy shifts the top row by delta rows, clamped to the layout's bounds,
// and updates the anchor to the byte now at the top row.
func (v *Viewport) ScrollBy(l *layout.Layout, delta int) {
	v.topRow = clamp(v.topRow+delta, 0, maxTopRow(l, v.Height))
	v.syncAnchorToTopRow(l)
}

// ScrollTo sets the top row directly, clamped to the layout's bounds.
func (v *Viewport) ScrollTo(l *layout.Layout, row int) {
	v.topRow = clamp(row, 0, maxTopRow(l, v.Height))
	v.syncAnchorToTopRow(l)
}

func (v *Viewport) syncAnchorToTopRow(l *layout.Layout) {
	if l == nil || v.topRow >= len(l.Lines) {
		return
	}
	v.anchorByte = l.Lines[v.topRow].StartByte
}

// EnsureVisible scrolls the minimum amount necessary so that sourceByte's
// row is within [TopRow, BottomRow].
func (v *Viewport) EnsureVisible(l *layout.Layout, sourceByte int) {
	row := rowForByte(l, sourceByte)
	switch {
	case row < v.topRow:
		v.ScrollTo(l, row)
	case row > v.BottomRow():
		v.ScrollTo(l, row-v.Height+1)
	default:
		v.syncAnchorToTopRow(l)
	}
}

// StabilizeAfterLayoutChange re-derives TopRow for a new layout (produced
// after an edit changed line counts or wrapping) so the same content stays
// on screen instead of snapping back to the top.
func (v *Viewport) StabilizeAfterLayoutChange(l *layout.Layout) {
	row := rowForByte(l, v.anchorByte)
	v.topRow = clamp(row, 0, maxTopRow(l, v.Height))
}

// rowForByte finds the row of the ViewLine whose content contains
// sourceByte, preferring the last row whose StartByte is <= sourceByte.
func rowForByte(l *layout.Layout, sourceByte int) int {
	if l == nil || len(l.Lines) == 0 {
		return 0
	}
	best := 0
	for i, vl := range l.Lines {
		if vl.StartByte <= sourceByte {
			best = i
		} else {
			break
		}
	}
	return best
}

func maxTopRow(l *layout.Layout, height int) int {
	if l == nil {
		return 0
	}
	max := len(l.Lines) - height
	if max < 0 {
		return 0
	}
	return max
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
