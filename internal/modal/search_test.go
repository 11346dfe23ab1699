package modal

import "testing"

func TestBufferSearchFuncFiltersByNameAndPath(t *testing.T) {
	search := BufferSearchFunc([]BufferSource{
		{ID: 1, Name: "main.go", Path: "/src/main.go"},
		{ID: 2, Name: "", Path: ""},
		{ID: 3, Name: "readme.md", Path: "/docs/readme.md"},
	})

	all := search("")
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}

	got := search("main")
	if len(got) != 1 || got[0].Name != "main.go" {
		t.Fatalf("expected [main.go], got %+v", got)
	}

	got = search("docs")
	if len(got) != 1 || got[0].Name != "readme.md" {
		t.Fatalf("expected [readme.md] via path match, got %+v", got)
	}

	scratch := search("scratch")
	if len(scratch) != 1 || scratch[0].Name != "[scratch]" {
		t.Fatalf("expected unnamed buffer to render as [scratch], got %+v", scratch)
	}
}

func TestBufferSearchFuncRoundTripsID(t *testing.T) {
	search := BufferSearchFunc([]BufferSource{{ID: 42, Name: "x.go", Path: "/x.go"}})
	items := search("")
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	id, ok := ParseBufferDesc(items[0].Desc)
	if !ok || id != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", id, ok)
	}
}

func TestParseBufferDescRejectsMalformed(t *testing.T) {
	if _, ok := ParseBufferDesc("not-a-buffer"); ok {
		t.Fatal("expected false for non-buffer desc")
	}
	if _, ok := ParseBufferDesc("buf:abc"); ok {
		t.Fatal("expected false for non-numeric id")
	}
}

func TestCommandSearchFuncFiltersByNameOrDesc(t *testing.T) {
	items := []Item{
		{Name: "Open Terminal", Desc: "spawn a shell in a new split"},
		{Name: "Diff Buffers", Desc: "compare two open buffers"},
	}
	search := CommandSearchFunc(items)

	if len(search("")) != 2 {
		t.Fatalf("expected empty query to return all items")
	}
	got := search("shell")
	if len(got) != 1 || got[0].Name != "Open Terminal" {
		t.Fatalf("expected [Open Terminal] via desc match, got %+v", got)
	}
	got = search("diff")
	if len(got) != 1 || got[0].Name != "Diff Buffers" {
		t.Fatalf("expected [Diff Buffers] via name match, got %+v", got)
	}
}
