// Package fsconfig loads and validates the editor's JSON config file and
// saves individual settings changes by merging them into a freshly re-read
// copy of the file rather than overwriting it from an in-memory struct
// (spec §6, scenario S-4: external edits to config.json must survive a
// Settings UI save). Grounded on the teacher's internal/config/config.go
// load/validate/env-override shape, adapted from TOML to JSON with
// gojsonschema's additionalProperties:false enforcement, and gjson/sjson
// for the merge-preserving write.
package fsconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/realagiorganization/fresh/internal/fresherr"
)

// EditorConfig is the `editor.*` key group.
type EditorConfig struct {
	TabSize                 int  `json:"tab_size"`
	AutoIndent              bool `json:"auto_indent"`
	LargeFileThresholdBytes int  `json:"large_file_threshold_bytes"`
	EstimatedLineLength     int  `json:"estimated_line_length"`
}

// LSPServerConfig is one `lsp.<lang>` key group.
type LSPServerConfig struct {
	Command               string            `json:"command"`
	Args                  []string          `json:"args,omitempty"`
	Enabled               bool              `json:"enabled"`
	AutoStart             bool              `json:"auto_start"`
	ProcessLimits         map[string]int    `json:"process_limits,omitempty"`
	InitializationOptions map[string]interface{} `json:"initialization_options,omitempty"`
}

// LanguageConfig is one `languages.<lang>` key group.
type LanguageConfig struct {
	Extensions    []string `json:"extensions"`
	CommentPrefix string   `json:"comment_prefix"`
}

// Config is the parsed projection of the config file used to drive the
// editor (spec §6's config key list).
type Config struct {
	Editor      EditorConfig                `json:"editor"`
	Theme       string                      `json:"theme"`
	Keybindings map[string]string           `json:"keybindings,omitempty"`
	LSP         map[string]LSPServerConfig  `json:"lsp,omitempty"`
	Languages   map[string]LanguageConfig   `json:"languages,omitempty"`
}

// schema enforces spec §6's "known keys (extensible)" at the top level and
// within editor/lsp.*/languages.* — additionalProperties:false at those
// levels catches typos in a hand-edited config file, while lsp.<lang> and
// languages.<lang> themselves stay open-ended (language/server ids aren't
// enumerable).
const schema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "editor": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "tab_size": {"type": "integer", "minimum": 1},
        "auto_indent": {"type": "boolean"},
        "large_file_threshold_bytes": {"type": "integer", "minimum": 0},
        "estimated_line_length": {"type": "integer", "minimum": 0}
      }
    },
    "theme": {"type": "string"},
    "keybindings": {"type": "object"},
    "lsp": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "command": {"type": "string"},
          "args": {"type": "array", "items": {"type": "string"}},
          "enabled": {"type": "boolean"},
          "auto_start": {"type": "boolean"},
          "process_limits": {"type": "object"},
          "initialization_options": {"type": "object"}
        }
      }
    },
    "languages": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "extensions": {"type": "array", "items": {"type": "string"}},
          "comment_prefix": {"type": "string"}
        }
      }
    }
  }
}`

// Validate checks raw JSON bytes against schema, returning every
// violation joined into one error.
func Validate(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fresherr.Wrap(fresherr.KindConfigInvalid, "validate config", err)
	}
	if !result.Valid() {
		msg := "invalid config:"
		for _, e := range result.Errors() {
			msg += "\n  " + e.String()
		}
		return fresherr.New(fresherr.KindConfigInvalid, msg)
	}
	return nil
}

// Load reads, validates, and decodes the config file at path. A missing
// file is not an error: it decodes as an empty Config, since every field
// has a usable zero value the caller layers defaults over.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fresherr.Wrap(fresherr.KindConfigInvalid, "read config "+path, err)
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fresherr.Wrap(fresherr.KindConfigInvalid, "parse config "+path, err)
	}
	return &cfg, nil
}

// SetValue merges a single dotted-path change into a freshly re-read copy
// of the config file and writes the result back, rather than serializing
// an in-memory Config (which would drop any key the in-memory struct
// doesn't model). This is the fix for S-4: a concurrent external edit to
// an untouched subtree survives because it was never loaded into memory
// in the first place — sjson only rewrites the one path it's told to.
func SetValue(path string, dottedKey string, value interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fresherr.Wrap(fresherr.KindConfigInvalid, "read config "+path, err)
		}
		raw = []byte("{}")
	}

	merged, err := sjson.SetBytes(raw, dottedKey, value)
	if err != nil {
		return fresherr.Wrap(fresherr.KindConfigInvalid, fmt.Sprintf("set %s", dottedKey), err)
	}

	if err := Validate(merged); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, merged, 0o644); err != nil {
		return fresherr.Wrap(fresherr.KindConfigInvalid, "write temp config", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fresherr.Wrap(fresherr.KindConfigInvalid, "rename temp config onto "+path, err)
	}
	return nil
}

// Get reads a single dotted-path value out of the config file's current
// on-disk state, for the Settings UI to reflect external edits when it
// opens (spec: settings should "reflect external config changes").
func Get(path string, dottedKey string) (gjson.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return gjson.Result{}, fresherr.Wrap(fresherr.KindConfigInvalid, "read config "+path, err)
	}
	return gjson.GetBytes(raw, dottedKey), nil
}
