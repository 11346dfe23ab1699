// Package gitgutter derives per-line added/changed/deleted markers from
// `git diff` for the gutter column next to a buffer's line numbers.
// Adapted from the teacher's internal/tui/gitdiff.go, which computed the
// same markers keyed into its own editor.Model.GutterMark; here the marker
// type stands alone so any buffer view (the main editor, a split, a diff
// pane) can consume it without depending on a specific widget.
package gitgutter

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// Mark identifies the kind of change at a buffer line.
type Mark int

const (
	MarkAdd Mark = iota
	MarkChange
	MarkDelete
)

// FileMarkers runs `git diff` for filePath and returns gutter markers keyed
// by 0-indexed line number in the working-tree version of the file.
// Returns nil (not error) outside a git repo or for an untracked file.
func FileMarkers(ctx context.Context, filePath string) map[int]Mark {
	cmd := exec.CommandContext(ctx, "git", "diff", "--unified=0", "--", filePath)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	_ = cmd.Run()

	return ParseDiffMarkers(stdout.String())
}

// ParseDiffMarkers parses unified diff output (--unified=0) into gutter
// markers keyed by 0-indexed line number in the new file.
func ParseDiffMarkers(diff string) map[int]Mark {
	if strings.TrimSpace(diff) == "" {
		return nil
	}

	markers := make(map[int]Mark)

	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "@@ ") {
			continue
		}

		newStart, newCount, oldCount, ok := parseHunkHeader(line)
		if !ok {
			continue
		}

		switch {
		case newCount == 0:
			row := newStart - 1
			if row < 0 {
				row = 0
			}
			markers[row] = MarkDelete
		case oldCount == 0:
			for i := 0; i < newCount; i++ {
				markers[newStart-1+i] = MarkAdd
			}
		default:
			for i := 0; i < newCount; i++ {
				markers[newStart-1+i] = MarkChange
			}
		}
	}

	if len(markers) == 0 {
		return nil
	}
	return markers
}

// parseHunkHeader extracts newStart, newCount, oldCount from a @@ line:
// "@@ -oldStart[,oldCount] +newStart[,newCount] @@".
func parseHunkHeader(line string) (newStart, newCount, oldCount int, ok bool) {
	idx := strings.Index(line[3:], " @@")
	if idx < 0 {
		return 0, 0, 0, false
	}
	header := line[3 : 3+idx]

	parts := strings.Fields(header)
	if len(parts) != 2 {
		return 0, 0, 0, false
	}

	old := strings.TrimPrefix(parts[0], "-")
	_, oldCount = parseRange(old)

	neu := strings.TrimPrefix(parts[1], "+")
	newStart, newCount = parseRange(neu)

	if newStart == 0 {
		return 0, 0, 0, false
	}
	return newStart, newCount, oldCount, true
}

// parseRange parses "start,count" or "start" (count defaults to 1).
func parseRange(s string) (start, count int) {
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		start, _ = strconv.Atoi(s[:idx])
		count, _ = strconv.Atoi(s[idx+1:])
		return start, count
	}
	start, _ = strconv.Atoi(s)
	return start, 1
}
