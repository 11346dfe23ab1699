package modal

import (
	"strconv"
	"strings"
)

// BufferSource describes one open buffer for the buffer-switcher modal. The
// editor's workspace package owns the real Buffer type; this package stays
// free of that dependency and takes the handful of fields it needs to render
// and round-trip a selection.
type BufferSource struct {
	ID   int
	Name string
	Path string
}

// BufferSearchFunc builds a SearchFunc that lists buffers, filtering by a
// case-insensitive substring match against name and path. The chosen Item's
// Desc carries the buffer's ID so the caller can recover which buffer was
// picked from an ActionSelect without this package knowing about
// workspace.BufferID.
func BufferSearchFunc(buffers []BufferSource) SearchFunc {
	return func(query string) []Item {
		q := strings.ToLower(query)
		items := make([]Item, 0, len(buffers))
		for _, b := range buffers {
			name := b.Name
			if name == "" {
				name = "[scratch]"
			}
			if q != "" && !strings.Contains(strings.ToLower(name), q) && !strings.Contains(strings.ToLower(b.Path), q) {
				continue
			}
			items = append(items, Item{Name: name, Desc: bufferDesc(b.ID)})
		}
		return items
	}
}

// ParseBufferDesc recovers the buffer ID encoded by BufferSearchFunc into an
// Item's Desc, the inverse of bufferDesc.
func ParseBufferDesc(desc string) (int, bool) {
	const prefix = "buf:"
	if !strings.HasPrefix(desc, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(desc[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func bufferDesc(id int) string {
	return "buf:" + strconv.Itoa(id)
}

// CommandSearchFunc builds a SearchFunc for a fixed list of named actions
// (the command palette), matching by case-insensitive substring against name
// and description.
func CommandSearchFunc(items []Item) SearchFunc {
	return func(query string) []Item {
		if query == "" {
			return items
		}
		q := strings.ToLower(query)
		out := make([]Item, 0, len(items))
		for _, it := range items {
			if strings.Contains(strings.ToLower(it.Name), q) || strings.Contains(strings.ToLower(it.Desc), q) {
				out = append(out, it)
			}
		}
		return out
	}
}
