package terminal

import "testing"

func TestProcessOutputCursorPositioning(t *testing.T) {
	s := NewTerminalState(80, 24)
	s.ProcessOutput([]byte("\x1b[5;10H"))
	col, row := s.CursorPosition()
	if col != 9 || row != 4 {
		t.Fatalf("CursorPosition() = (%d,%d), want (9,4)", col, row)
	}
}

func TestProcessOutputSGRRedThenReset(t *testing.T) {
	s := NewTerminalState(80, 24)
	s.ProcessOutput([]byte("\x1b[31mRED\x1b[0m"))

	for i, want := range []rune{'R', 'E', 'D'} {
		cell := s.Grid[0][i]
		if cell.Char != want {
			t.Fatalf("Grid[0][%d].Char = %q, want %q", i, cell.Char, want)
		}
		if cell.Fg.Default || cell.Fg.R < 150 || cell.Fg.G > 50 || cell.Fg.B > 50 {
			t.Fatalf("Grid[0][%d].Fg = %+v, want high-R low-G low-B red", i, cell.Fg)
		}
	}

	// After the reset, the cursor sits on the next printable cell (column 3)
	// and subsequent writes pick up default attributes again.
	s.putChar('x')
	cell := s.Grid[0][3]
	if cell.Bold || cell.Italic || cell.Underline || !cell.Fg.Default {
		t.Fatalf("cell after SGR reset = %+v, want default attributes", cell)
	}
}

func TestProcessOutputPlainTextAdvancesCursor(t *testing.T) {
	s := NewTerminalState(80, 24)
	s.ProcessOutput([]byte("hi"))
	if s.Cursor != 2 || s.CursorRow != 0 {
		t.Fatalf("cursor = (%d,%d), want (2,0)", s.Cursor, s.CursorRow)
	}
	if s.Grid[0][0].Char != 'h' || s.Grid[0][1].Char != 'i' {
		t.Fatalf("Grid[0] = %q%q, want \"hi\"", s.Grid[0][0].Char, s.Grid[0][1].Char)
	}
}

func TestProcessOutputWrapsAtLastColumn(t *testing.T) {
	s := NewTerminalState(2, 3)
	s.ProcessOutput([]byte("abcd"))
	if s.CursorRow != 1 || s.Cursor != 1 {
		t.Fatalf("cursor = (%d,%d), want (1,1) after wrapping", s.Cursor, s.CursorRow)
	}
	if s.Grid[0][0].Char != 'a' || s.Grid[0][1].Char != 'b' || s.Grid[0][2].Char != 'c' {
		t.Fatalf("row 0 = %q%q%q, want \"abc\"", s.Grid[0][0].Char, s.Grid[0][1].Char, s.Grid[0][2].Char)
	}
	if s.Grid[1][0].Char != 'd' {
		t.Fatalf("row 1 col 0 = %q, want 'd'", s.Grid[1][0].Char)
	}
}

func TestProcessOutputScrollsOnLastLine(t *testing.T) {
	s := NewTerminalState(2, 6)
	s.ProcessOutput([]byte("one\r\ntwo\r\nthree"))
	if s.Grid[0][0].Char != 't' || s.Grid[0][1].Char != 'w' || s.Grid[0][2].Char != 'o' {
		t.Fatalf("row 0 after scroll = %q%q%q, want \"two\"", s.Grid[0][0].Char, s.Grid[0][1].Char, s.Grid[0][2].Char)
	}
	if s.Grid[1][0].Char != 't' || s.Grid[1][1].Char != 'h' {
		t.Fatalf("row 1 = %q%q, want starting \"th\"", s.Grid[1][0].Char, s.Grid[1][1].Char)
	}
}

func TestProcessOutputEraseLine(t *testing.T) {
	s := NewTerminalState(80, 24)
	s.ProcessOutput([]byte("hello"))
	s.ProcessOutput([]byte("\x1b[H\x1b[K"))
	if s.Grid[0][0].Char != ' ' || s.Grid[0][4].Char != ' ' {
		t.Fatalf("row 0 after erase = %q%q%q%q%q, want all spaces",
			s.Grid[0][0].Char, s.Grid[0][1].Char, s.Grid[0][2].Char, s.Grid[0][3].Char, s.Grid[0][4].Char)
	}
}

func TestProcessOutputScrollRegion(t *testing.T) {
	s := NewTerminalState(80, 24)
	s.ProcessOutput([]byte("\x1b[5;10r"))
	if s.scrollTop != 4 || s.scrollBottom != 9 {
		t.Fatalf("scroll region = (%d,%d), want (4,9)", s.scrollTop, s.scrollBottom)
	}
	if !s.ScrollRegionUsed {
		t.Fatal("ScrollRegionUsed = false, want true after DECSTBM")
	}
}

func TestResizePreservesTopLeftContent(t *testing.T) {
	s := NewTerminalState(3, 3)
	s.ProcessOutput([]byte("ab"))
	s.Resize(5, 5)
	if s.Rows != 5 || s.Cols != 5 {
		t.Fatalf("size after resize = (%d,%d), want (5,5)", s.Rows, s.Cols)
	}
	if s.Grid[0][0].Char != 'a' || s.Grid[0][1].Char != 'b' {
		t.Fatalf("Grid[0] after resize = %q%q, want \"ab\"", s.Grid[0][0].Char, s.Grid[0][1].Char)
	}
}

func TestOSCTitleIsCaptured(t *testing.T) {
	s := NewTerminalState(80, 24)
	s.ProcessOutput([]byte("\x1b]0;hello\x07"))
	if s.Title != "hello" {
		t.Fatalf("Title = %q, want %q", s.Title, "hello")
	}
}
