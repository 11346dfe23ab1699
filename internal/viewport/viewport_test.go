package viewport

import (
	"strings"
	"testing"

	"github.com/realagiorganization/fresh/internal/layout"
	"github.com/realagiorganization/fresh/internal/piecetree"
)

func buildLines(n int) *layout.Layout {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line"
	}
	pt := piecetree.NewFromBytes([]byte(strings.Join(lines, "\n")))
	return layout.Build(pt, 0, 4)
}

func TestScrollByClampsToBounds(t *testing.T) {
	l := buildLines(20)
	v := New(5)

	v.ScrollBy(l, -10)
	if v.TopRow() != 0 {
		t.Fatalf("TopRow() = %d, want 0 (clamped)", v.TopRow())
	}

	v.ScrollBy(l, 1000)
	if got, want := v.TopRow(), 15; got != want {
		t.Fatalf("TopRow() = %d, want %d", got, want)
	}
}

func TestEnsureVisibleScrollsDown(t *testing.T) {
	l := buildLines(20)
	v := New(5)

	// Row 10's line starts at byte 10*5 = 50 ("line\n" is 5 bytes).
	target := l.Lines[10].StartByte
	v.EnsureVisible(l, target)

	if v.BottomRow() < 10 || v.TopRow() > 10 {
		t.Fatalf("row 10 not visible: top=%d bottom=%d", v.TopRow(), v.BottomRow())
	}
}

func TestEnsureVisibleScrollsUp(t *testing.T) {
	l := buildLines(20)
	v := New(5)
	v.ScrollTo(l, 15)

	target := l.Lines[2].StartByte
	v.EnsureVisible(l, target)

	if v.TopRow() != 2 {
		t.Fatalf("TopRow() = %d, want 2", v.TopRow())
	}
}

func TestStabilizeAfterLayoutChangeKeepsAnchorVisible(t *testing.T) {
	l1 := buildLines(20)
	v := New(5)
	v.ScrollTo(l1, 10)

	// Simulate an edit that inserted 3 lines above row 10: the content the
	// user was looking at is now at row 13, not row 10.
	l2 := buildLines(23)
	// Re-derive the anchor's byte as it would appear in the new layout
	// (same StartByte value, since lines are identical "line" rows).
	v.anchorByte = l2.Lines[13].StartByte

	v.StabilizeAfterLayoutChange(l2)
	if v.TopRow() != 13 {
		t.Fatalf("TopRow() after stabilize = %d, want 13", v.TopRow())
	}
}
