package fsconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Theme != "" || cfg.Editor.TabSize != 0 {
		t.Fatalf("Load(missing) = %+v, want zero-value Config", cfg)
	}
}

func TestLoadParsesKnownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"theme":"dracula","editor":{"tab_size":4}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Theme != "dracula" || cfg.Editor.TabSize != 4 {
		t.Fatalf("Load = %+v, want theme=dracula tab_size=4", cfg)
	}
}

func TestLoadRejectsUnknownTopLevelKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"totally_unknown_key": true}`), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject an unknown top-level key")
	}
}

func TestLoadRejectsUnknownEditorKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"editor":{"tab_siez":4}}`), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject a typo'd editor key")
	}
}

func TestSetValuePreservesExternalEditsNotLoadedIntoMemory(t *testing.T) {
	// Reproduces scenario S-4: an external process writes a subtree the
	// in-memory Config was never told about, and a single SetValue for an
	// unrelated key must not lose it.
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"theme":"default"}`), 0o644)

	// Simulate the external edit happening after the editor's own last read.
	external := `{
		"theme": "default",
		"lsp": {
			"rust-analyzer": {
				"enabled": true,
				"command": "rust-analyzer",
				"args": ["--log-file", "/tmp/ra.log"]
			}
		}
	}`
	os.WriteFile(path, []byte(external), 0o644)

	if err := SetValue(path, "editor.tab_size", 8); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal result: %v", err)
	}

	lsp, ok := got["lsp"].(map[string]interface{})
	if !ok {
		t.Fatalf("result = %v, want lsp subtree preserved", got)
	}
	ra, ok := lsp["rust-analyzer"].(map[string]interface{})
	if !ok || ra["command"] != "rust-analyzer" {
		t.Fatalf("lsp.rust-analyzer = %v, want preserved verbatim", lsp["rust-analyzer"])
	}

	editor, ok := got["editor"].(map[string]interface{})
	if !ok || editor["tab_size"] != float64(8) {
		t.Fatalf("editor.tab_size = %v, want 8", got["editor"])
	}
}

func TestSetValueOnMissingFileCreatesIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SetValue(path, "theme", "dracula"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Theme != "dracula" {
		t.Fatalf("Theme = %q, want dracula", cfg.Theme)
	}
}

func TestSetValueRejectsResultingInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"theme":"default"}`), 0o644)

	if err := SetValue(path, "bogus_top_level", "x"); err == nil {
		t.Fatal("SetValue should reject a change that produces an invalid document")
	}

	// The file must be left untouched by the rejected write.
	raw, _ := os.ReadFile(path)
	if string(raw) != `{"theme":"default"}` {
		t.Fatalf("file = %q, want unchanged after a rejected SetValue", raw)
	}
}

func TestGetReadsCurrentOnDiskValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"theme":"default"}`), 0o644)

	os.WriteFile(path, []byte(`{"theme":"dracula"}`), 0o644)

	v, err := Get(path, "theme")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.String() != "dracula" {
		t.Fatalf("Get(theme) = %q, want dracula (current on-disk value)", v.String())
	}
}
