// Package layout turns buffer lines into the wrapped grid of ViewLine rows
// the viewport actually renders, tracking for every rendered rune which
// source byte produced it so cursor motion and mouse clicks can map back
// and forth between view space and buffer space (spec §4.D). The
// tab-expansion and per-row wrapping math is generalized from the teacher's
// internal/tui/editor.Model (expandTabs/visualRowCount/visualToBuffer),
// which does the same thing for a single unwrapped cursor instead of an
// arbitrary source-byte-addressed buffer.
package layout

import (
	"github.com/realagiorganization/fresh/internal/cursor"
	"github.com/realagiorganization/fresh/internal/piecetree"
)

// TabWidth is the number of visual columns a tab expands to. Overridable
// per document via config (editor.tab_size); callers pass their own value
// into Build rather than relying on this default directly.
const TabWidth = 4

// LineStartKind classifies why a ViewLine begins where it does.
type LineStartKind int

const (
	// AfterSourceNewline means this row starts a new buffer line.
	AfterSourceNewline LineStartKind = iota
	// AfterBreak means this row is a wrap continuation of the previous
	// buffer line (content_width was exceeded).
	AfterBreak
	// AfterInjectedNewline means this row follows a newline that a plugin
	// or overlay injected into the rendered stream without it existing in
	// the underlying buffer (e.g. a diff hunk separator).
	AfterInjectedNewline
)

// ViewLine is one rendered row: its text plus, for every rune in Text, the
// source byte offset that produced it (CharMappings[i] corresponds to the
// i-th rune of Text, not the i-th byte).
type ViewLine struct {
	Text          string
	CharMappings  []int
	Kind          LineStartKind
	SourceLine    int // 0-indexed buffer line this row belongs to
	StartByte     int // source byte of the first rune on this row
}

// Layout is the full wrapped grid for a buffer at a given content width.
type Layout struct {
	ContentWidth int
	TabWidth     int
	Lines        []ViewLine
}

// Build lays out every line of pt, wrapping at contentWidth visual columns.
// contentWidth <= 0 disables wrapping (one ViewLine per buffer line).
func Build(pt *piecetree.PieceTree, contentWidth, tabWidth int) *Layout {
	if tabWidth <= 0 {
		tabWidth = TabWidth
	}
	l := &Layout{ContentWidth: contentWidth, TabWidth: tabWidth}

	lineCount := pt.LineCount()
	for n := 0; n < lineCount; n++ {
		textLine, err := pt.GetLine(n)
		if err != nil {
			break
		}
		runes, mappings := expandLine(textLine.Content, textLine.StartByte, tabWidth)
		l.Lines = append(l.Lines, wrapRow(runes, mappings, n, textLine.StartByte, contentWidth)...)
	}
	if len(l.Lines) == 0 {
		l.Lines = []ViewLine{{Kind: AfterSourceNewline, SourceLine: 0, StartByte: 0}}
	}
	return l
}

// expandLine converts a line's content into its visual rune stream plus a
// parallel slice mapping each visual rune back to the source byte that
// produced it (a tab expands to N runes that all map to the same source
// byte — the tab character itself).
func expandLine(content string, startByte int, tabWidth int) ([]rune, []int) {
	var runes []rune
	var mappings []int
	col := 0
	byteOffset := startByte
	for _, r := range content {
		if r == '\t' {
			spaces := tabWidth - (col % tabWidth)
			for i := 0; i < spaces; i++ {
				runes = append(runes, ' ')
				mappings = append(mappings, byteOffset)
			}
			col += spaces
		} else {
			runes = append(runes, r)
			mappings = append(mappings, byteOffset)
			col++
		}
		byteOffset += runeByteLen(r)
	}
	return runes, mappings
}

func runeByteLen(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	default:
		return 4
	}
}

// wrapRow splits one buffer line's expanded rune stream into one or more
// ViewLines at contentWidth boundaries.
func wrapRow(runes []rune, mappings []int, sourceLine, lineStartByte, contentWidth int) []ViewLine {
	if contentWidth <= 0 || len(runes) <= contentWidth {
		return []ViewLine{{
			Text:         string(runes),
			CharMappings: mappings,
			Kind:         AfterSourceNewline,
			SourceLine:   sourceLine,
			StartByte:    lineStartByte,
		}}
	}

	var out []ViewLine
	for i := 0; i < len(runes); i += contentWidth {
		end := i + contentWidth
		if end > len(runes) {
			end = len(runes)
		}
		kind := AfterBreak
		if i == 0 {
			kind = AfterSourceNewline
		}
		start := lineStartByte
		if len(mappings) > 0 {
			start = mappings[i]
		}
		out = append(out, ViewLine{
			Text:         string(runes[i:end]),
			CharMappings: append([]int{}, mappings[i:end]...),
			Kind:         kind,
			SourceLine:   sourceLine,
			StartByte:    start,
		})
	}
	return out
}

// SourceByteToViewPosition finds the ViewPosition (view row, visual column,
// and the source byte itself) of the rune that a given source byte offset
// falls within, searching forward from the first ViewLine whose content
// could contain it.
func SourceByteToViewPosition(l *Layout, sourceByte int) cursor.ViewPosition {
	for row, vl := range l.Lines {
		if len(vl.CharMappings) == 0 {
			if sourceByte == vl.StartByte {
				return cursor.ViewPosition{ViewLine: row, Column: 0, SourceByte: sourceByte}
			}
			continue
		}
		last := vl.CharMappings[len(vl.CharMappings)-1]
		// The row "owns" sourceByte if it falls within [first mapping, last
		// mapping], or past the last rune but before the next row's first
		// byte (the line's end, where its newline sits); the final row of
		// the whole layout also owns the end-of-buffer position.
		if sourceByte >= vl.CharMappings[0] && sourceByte <= last {
			for col, b := range vl.CharMappings {
				if b == sourceByte {
					return cursor.ViewPosition{ViewLine: row, Column: col, SourceByte: sourceByte}
				}
			}
		}
		if sourceByte > last && (row == len(l.Lines)-1 || sourceByte < l.Lines[row+1].StartByte) {
			return cursor.ViewPosition{ViewLine: row, Column: len(vl.CharMappings), SourceByte: sourceByte}
		}
	}
	return cursor.ViewPosition{ViewLine: 0, Column: 0, SourceByte: sourceByte}
}

// ViewPositionToSourceByte is the inverse of SourceByteToViewPosition: given
// a view row and visual column, it returns the source byte at that
// position, clamping the column to the row's length.
func ViewPositionToSourceByte(l *Layout, viewLine, column int) int {
	if viewLine < 0 || viewLine >= len(l.Lines) {
		return 0
	}
	vl := l.Lines[viewLine]
	if len(vl.CharMappings) == 0 {
		return vl.StartByte
	}
	if column >= len(vl.CharMappings) {
		last := vl.CharMappings[len(vl.CharMappings)-1]
		return last + 1
	}
	if column < 0 {
		column = 0
	}
	return vl.CharMappings[column]
}

// RowCount returns the number of ViewLines in the layout.
func (l *Layout) RowCount() int { return len(l.Lines) }
