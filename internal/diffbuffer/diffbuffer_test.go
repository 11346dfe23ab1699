package diffbuffer

import "testing"

func TestBuildAlignmentRowCountAndHunkNavigation(t *testing.T) {
	hunks := []Hunk{{OldStart: 50, OldCount: 3, NewStart: 50, NewCount: 4}}
	a := BuildAlignment(hunks, 100, 100)

	if got, want := a.RowCount(), 101; got != want {
		t.Fatalf("RowCount() = %d, want %d", got, want)
	}
	if got, want := a.NextHunkRow(0), 50; got != want {
		t.Fatalf("NextHunkRow(0) = %d, want %d", got, want)
	}
	if got, want := a.PrevHunkRow(101), 50; got != want {
		t.Fatalf("PrevHunkRow(101) = %d, want %d", got, want)
	}
}

func TestBuildAlignmentPureDeletionShowsFillerOnNewSide(t *testing.T) {
	hunks := []Hunk{{OldStart: 2, OldCount: 2, NewStart: 2, NewCount: 0}}
	a := BuildAlignment(hunks, 5, 3)

	start := a.NextHunkRow(-1)
	if start != 2 {
		t.Fatalf("hunk start row = %d, want 2", start)
	}
	for i := 0; i < 2; i++ {
		row := a.Row(start + i)
		if row.Kind != RowDeletion || row.NewLine != -1 || row.OldLine != 2+i {
			t.Fatalf("row %d = %+v, want Deletion{Old:%d,New:-1}", start+i, row, 2+i)
		}
	}
}

func TestBuildAlignmentPureAdditionShowsFillerOnOldSide(t *testing.T) {
	hunks := []Hunk{{OldStart: 1, OldCount: 0, NewStart: 1, NewCount: 3}}
	a := BuildAlignment(hunks, 2, 5)

	start := a.NextHunkRow(-1)
	for i := 0; i < 3; i++ {
		row := a.Row(start + i)
		if row.Kind != RowAddition || row.OldLine != -1 || row.NewLine != 1+i {
			t.Fatalf("row %d = %+v, want Addition{Old:-1,New:%d}", start+i, row, 1+i)
		}
	}
}

func TestNextPrevHunkRowNoHunksReturnsNegativeOne(t *testing.T) {
	a := BuildAlignment(nil, 10, 10)
	if a.NextHunkRow(0) != -1 {
		t.Fatal("NextHunkRow on a hunkless alignment should be -1")
	}
	if a.PrevHunkRow(5) != -1 {
		t.Fatal("PrevHunkRow on a hunkless alignment should be -1")
	}
}

func TestNextHunkRowSkipsToSecondHunkPastFirst(t *testing.T) {
	hunks := []Hunk{
		{OldStart: 2, OldCount: 1, NewStart: 2, NewCount: 1},
		{OldStart: 8, OldCount: 1, NewStart: 8, NewCount: 1},
	}
	a := BuildAlignment(hunks, 12, 12)

	first := a.NextHunkRow(-1)
	second := a.NextHunkRow(first)
	if second <= first {
		t.Fatalf("second hunk row %d should be after first %d", second, first)
	}
	if a.PrevHunkRow(second) != second {
		t.Fatalf("PrevHunkRow(second) = %d, want %d", a.PrevHunkRow(second), second)
	}
	if a.PrevHunkRow(second-1) != first {
		t.Fatalf("PrevHunkRow(second-1) = %d, want first hunk row %d", a.PrevHunkRow(second-1), first)
	}
}

func TestComputeHunksIdenticalTextProducesNoHunks(t *testing.T) {
	hunks := computeHunks("a\nb\nc\n", "a\nb\nc\n")
	if len(hunks) != 0 {
		t.Fatalf("computeHunks(identical) = %+v, want no hunks", hunks)
	}
}

func TestComputeHunksDetectsSingleLineChange(t *testing.T) {
	hunks := computeHunks("a\nb\nc\n", "a\nX\nc\n")
	if len(hunks) != 1 {
		t.Fatalf("len(hunks) = %d, want 1", len(hunks))
	}
	h := hunks[0]
	if h.OldCount == 0 || h.NewCount == 0 {
		t.Fatalf("hunk = %+v, want both sides non-empty for a single-line change", h)
	}
}
