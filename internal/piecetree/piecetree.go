// Package piecetree implements the append-only, piece-table-backed text
// store described in spec §4.A: two byte vaults ("original" and "add") plus
// an ordered list of pieces referencing slices of either vault. Edits never
// mutate existing bytes — they only append to the add vault and re-splice
// the piece list — which is what makes undo cheap and large-file streaming
// possible.
package piecetree

import (
	"bytes"

	"github.com/realagiorganization/fresh/internal/fresherr"
)

// DefaultLargeFileThreshold matches the config key
// editor.large_file_threshold_bytes' documented default (spec §6).
const DefaultLargeFileThreshold = 8 * 1024 * 1024

type vaultKind int

const (
	vaultOriginal vaultKind = iota
	vaultAdd
)

// piece references a contiguous byte range in one vault, plus the offsets
// (relative to the piece's start) of every '\n' it contains.
type piece struct {
	vault      vaultKind
	offset     int
	length     int
	lineStarts []int
}

func (p *piece) isEmpty() bool { return p.length == 0 }

// Range is a half-open byte range [Start, End) in the logical document.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// TextLine is the result of GetLine: the 0-indexed line's starting byte
// offset and its content, excluding the trailing newline.
type TextLine struct {
	StartByte int
	Content   string
}

// PieceTree is the buffer's content store.
type PieceTree struct {
	original Vault
	add      *memVault
	pieces   []piece
	length   int
	version  int // bumped on every successful Insert/Delete, even a same-length splice
}

// Version returns a counter bumped on every mutation, including a
// same-length in-place edit that leaves Len() unchanged. A cache of derived
// state keyed by (Len(), range) alone can't distinguish "nothing changed"
// from "a character was replaced by another of the same length", which is
// why highlight.SpanHighlighter keys its cache on Version().
func (pt *PieceTree) Version() int { return pt.version }

// NewFromBytes builds a PieceTree whose original vault is the given content,
// held entirely in memory.
func NewFromBytes(content []byte) *PieceTree {
	pt := &PieceTree{
		original: newMemVault(content),
		add:      newMemVault(nil),
	}
	if len(content) > 0 {
		pt.pieces = []piece{{
			vault:      vaultOriginal,
			offset:     0,
			length:     len(content),
			lineStarts: findNewlines(content),
		}}
		pt.length = len(content)
	}
	return pt
}

// NewFromVault builds a PieceTree whose original vault is a pre-opened
// range-mapped view (e.g. a large file or a remote filesystem read), scanning
// it once to compute newline offsets without retaining the bytes themselves.
// scanChunk is called to stream the content for that one-time scan.
func NewFromVault(v Vault, scanChunk func(yield func([]byte) bool)) (*PieceTree, error) {
	pt := &PieceTree{
		original: v,
		add:      newMemVault(nil),
	}
	size := v.Len()
	if size == 0 {
		return pt, nil
	}
	var lineStarts []int
	pos := 0
	scanChunk(func(chunk []byte) bool {
		for i, b := range chunk {
			if b == '\n' {
				lineStarts = append(lineStarts, pos+i)
			}
		}
		pos += len(chunk)
		return true
	})
	pt.pieces = []piece{{vault: vaultOriginal, offset: 0, length: size, lineStarts: lineStarts}}
	pt.length = size
	return pt, nil
}

func findNewlines(b []byte) []int {
	var out []int
	idx := 0
	for {
		i := bytes.IndexByte(b[idx:], '\n')
		if i < 0 {
			break
		}
		out = append(out, idx+i)
		idx += i + 1
	}
	return out
}

// Len returns the total byte length of the logical content.
func (pt *PieceTree) Len() int { return pt.length }

// LineCount returns the number of lines, per spec §4.A: the number of '\n'
// separators plus one, minus one if the content ends with '\n'.
func (pt *PieceTree) LineCount() int {
	if pt.length == 0 {
		return 1
	}
	newlines := pt.totalNewlines()
	if pt.endsWithNewline() {
		return newlines
	}
	return newlines + 1
}

func (pt *PieceTree) endsWithNewline() bool {
	if pt.length == 0 {
		return false
	}
	b, err := pt.sliceOne(pt.length - 1)
	if err != nil {
		return false
	}
	return b == '\n'
}

func (pt *PieceTree) sliceOne(pos int) (byte, error) {
	b, err := pt.SliceBytes(Range{Start: pos, End: pos + 1})
	if err != nil || len(b) == 0 {
		return 0, err
	}
	return b[0], nil
}

// pieceVault resolves which Vault backs a piece.
func (pt *PieceTree) pieceVault(p *piece) Vault {
	if p.vault == vaultAdd {
		return pt.add
	}
	return pt.original
}

// locate finds the piece index containing byte position and the offset
// within that piece. If position == pt.length, it returns one past the last
// piece (len(pieces), 0) to represent the end-of-document insertion point.
func (pt *PieceTree) locate(position int) (pieceIdx, localOffset int) {
	acc := 0
	for i := range pt.pieces {
		p := &pt.pieces[i]
		if position <= acc+p.length {
			return i, position - acc
		}
		acc += p.length
	}
	return len(pt.pieces), 0
}

// isBoundary reports whether byte position `pos` in the logical content is a
// valid UTF-8 scalar boundary (start of a rune, or exactly at an edge).
func (pt *PieceTree) isBoundary(pos int) bool {
	if pos <= 0 || pos >= pt.length {
		return true
	}
	b, err := pt.sliceOne(pos)
	if err != nil {
		return true
	}
	// Continuation bytes are 10xxxxxx.
	return b&0xC0 != 0x80
}

// SliceBytes returns the bytes in the given range, reading across however
// many pieces it spans.
func (pt *PieceTree) SliceBytes(r Range) ([]byte, error) {
	if r.Start < 0 || r.End > pt.length || r.Start > r.End {
		return nil, fresherr.New(fresherr.KindPositionOutOfRange, "slice range out of bounds")
	}
	if r.Start == r.End {
		return nil, nil
	}
	out := make([]byte, 0, r.Len())
	acc := 0
	for i := range pt.pieces {
		p := &pt.pieces[i]
		pieceStart, pieceEnd := acc, acc+p.length
		acc = pieceEnd
		if pieceEnd <= r.Start || pieceStart >= r.End {
			continue
		}
		lo := max(0, r.Start-pieceStart)
		hi := min(p.length, r.End-pieceStart)
		b, err := pt.pieceVault(p).ReadRange(p.offset+lo, hi-lo)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		if pieceEnd >= r.End {
			break
		}
	}
	return out, nil
}

// Insert splits the piece containing position and splices in a new piece
// referencing freshly appended bytes in the add vault.
func (pt *PieceTree) Insert(position int, text []byte) error {
	if position < 0 || position > pt.length {
		return fresherr.New(fresherr.KindPositionOutOfRange, "insert position out of bounds")
	}
	if len(text) == 0 {
		return nil
	}
	if !pt.isBoundary(position) {
		return fresherr.New(fresherr.KindInvalidUTF8Boundary, "insert position splits a scalar")
	}

	addOffset := pt.add.append(text)
	newPiece := piece{vault: vaultAdd, offset: addOffset, length: len(text), lineStarts: findNewlines(text)}

	idx, local := pt.locate(position)
	if idx == len(pt.pieces) {
		pt.pieces = append(pt.pieces, newPiece)
		pt.length += len(text)
		pt.version++
		return nil
	}

	old := pt.pieces[idx]
	var replacement []piece
	if local > 0 {
		replacement = append(replacement, splitPiece(&old, 0, local))
	}
	replacement = append(replacement, newPiece)
	if local < old.length {
		replacement = append(replacement, splitPiece(&old, local, old.length))
	}

	pt.pieces = spliceReplace(pt.pieces, idx, idx+1, replacement)
	pt.length += len(text)
	pt.version++
	return nil
}

// Delete removes the bytes in the given range, splitting at both endpoints.
func (pt *PieceTree) Delete(r Range) error {
	if r.Start < 0 || r.End > pt.length || r.Start > r.End {
		return fresherr.New(fresherr.KindPositionOutOfRange, "delete range out of bounds")
	}
	if r.Start == r.End {
		return nil
	}
	if !pt.isBoundary(r.Start) || !pt.isBoundary(r.End) {
		return fresherr.New(fresherr.KindInvalidUTF8Boundary, "delete range splits a scalar")
	}

	startIdx, startLocal := pt.locate(r.Start)
	endIdx, endLocal := pt.locate(r.End)

	if startIdx == endIdx {
		old := pt.pieces[startIdx]
		var replacement []piece
		if startLocal > 0 {
			replacement = append(replacement, splitPiece(&old, 0, startLocal))
		}
		if endLocal < old.length {
			replacement = append(replacement, splitPiece(&old, endLocal, old.length))
		}
		pt.pieces = spliceReplace(pt.pieces, startIdx, startIdx+1, replacement)
		pt.length -= r.Len()
		pt.version++
		return nil
	}

	var replacement []piece
	first := pt.pieces[startIdx]
	if startLocal > 0 {
		replacement = append(replacement, splitPiece(&first, 0, startLocal))
	}
	if endIdx < len(pt.pieces) {
		last := pt.pieces[endIdx]
		if endLocal < last.length {
			replacement = append(replacement, splitPiece(&last, endLocal, last.length))
		}
	}
	pt.pieces = spliceReplace(pt.pieces, startIdx, endIdx+1, replacement)
	pt.length -= r.Len()
	pt.version++
	return nil
}

// splitPiece returns a new piece covering the local range [lo, hi) of p.
func splitPiece(p *piece, lo, hi int) piece {
	var ls []int
	for _, off := range p.lineStarts {
		if off >= lo && off < hi {
			ls = append(ls, off-lo)
		}
	}
	return piece{vault: p.vault, offset: p.offset + lo, length: hi - lo, lineStarts: ls}
}

// spliceReplace replaces pieces[from:to] with replacement, dropping any
// resulting empty pieces.
func spliceReplace(pieces []piece, from, to int, replacement []piece) []piece {
	kept := replacement[:0:0]
	for _, p := range replacement {
		if !p.isEmpty() {
			kept = append(kept, p)
		}
	}
	out := make([]piece, 0, len(pieces)-(to-from)+len(kept))
	out = append(out, pieces[:from]...)
	out = append(out, kept...)
	out = append(out, pieces[to:]...)
	return out
}

// LineToByte returns the starting byte offset of the given 0-indexed line.
func (pt *PieceTree) LineToByte(n int) (int, error) {
	if n < 0 || n >= pt.LineCount() {
		return 0, fresherr.New(fresherr.KindPositionOutOfRange, "line number out of bounds")
	}
	return pt.lineStartByNewlineIndex(n)
}

// ByteToLine returns the 0-indexed line number containing byte offset b.
func (pt *PieceTree) ByteToLine(b int) (int, error) {
	if b < 0 || b > pt.length {
		return 0, fresherr.New(fresherr.KindPositionOutOfRange, "byte offset out of bounds")
	}
	line := 0
	acc := 0
	for i := range pt.pieces {
		p := &pt.pieces[i]
		for _, off := range p.lineStarts {
			if acc+off < b {
				line++
			}
		}
		acc += p.length
	}
	return line, nil
}

// GetLine returns the 0-indexed line's starting byte and its content,
// excluding any trailing newline.
func (pt *PieceTree) GetLine(n int) (TextLine, error) {
	start, err := pt.LineToByte(n)
	if err != nil {
		return TextLine{}, err
	}
	var end int
	if n < pt.totalNewlines() {
		// Line n is terminated by a real '\n' in the buffer, whether or not
		// that newline is also the buffer's final byte.
		next, err := pt.lineStartByNewlineIndex(n + 1)
		if err != nil {
			return TextLine{}, err
		}
		end = next - 1
	} else {
		end = pt.length
	}
	if end < start {
		end = start
	}
	b, err := pt.SliceBytes(Range{Start: start, End: end})
	if err != nil {
		return TextLine{}, err
	}
	return TextLine{StartByte: start, Content: string(b)}, nil
}

// totalNewlines returns the number of '\n' bytes in the buffer.
func (pt *PieceTree) totalNewlines() int {
	n := 0
	for i := range pt.pieces {
		n += len(pt.pieces[i].lineStarts)
	}
	return n
}

// lineStartByNewlineIndex returns the starting byte of the line following
// the k-th newline (1-indexed), i.e. the same computation LineToByte(k)
// performs, exposed separately so GetLine can call it without re-deriving
// LineCount-relative bounds.
func (pt *PieceTree) lineStartByNewlineIndex(k int) (int, error) {
	if k == 0 {
		return 0, nil
	}
	seen := 0
	acc := 0
	for i := range pt.pieces {
		p := &pt.pieces[i]
		for _, off := range p.lineStarts {
			seen++
			if seen == k {
				return acc + off + 1, nil
			}
		}
		acc += p.length
	}
	return pt.length, nil
}

// String materializes the whole buffer. Intended for small buffers/tests;
// large files should prefer SliceBytes over bounded ranges.
func (pt *PieceTree) String() string {
	b, _ := pt.SliceBytes(Range{Start: 0, End: pt.length})
	return string(b)
}

// ValidRuneBoundary reports whether pos lies on a UTF-8 scalar boundary,
// exposed so callers (e.g. the cursor adjustment rule) can check clamped
// positions before handing them back to Insert/Delete.
func (pt *PieceTree) ValidRuneBoundary(pos int) bool { return pt.isBoundary(pos) }
