package lspclient

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/powernap/pkg/lsp/protocol"
)

func diag(line int, sev protocol.DiagnosticSeverity, msg string) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: protocol.Position{Line: uint32(line)}},
		Severity: sev,
		Message:  msg,
	}
}

func TestLineSeveritiesTracksErrorsAndWarningsOnly(t *testing.T) {
	diags := []protocol.Diagnostic{
		diag(3, SeverityError, "boom"),
		diag(3, SeverityWarning, "also here"),
		diag(5, 4, "hint, ignored"),
	}
	lines := LineSeverities(diags)
	if lines[3] != SeverityError {
		t.Fatalf("line 3 severity = %d, want %d (error wins over warning on the same line)", lines[3], SeverityError)
	}
	if _, ok := lines[5]; ok {
		t.Fatal("a hint-level diagnostic should not appear in LineSeverities")
	}
}

func TestLineSeveritiesEmptyInputReturnsNil(t *testing.T) {
	if got := LineSeverities(nil); got != nil {
		t.Fatalf("LineSeverities(nil) = %v, want nil", got)
	}
}

func TestFormatDiagnosticsIncludesPathAndMessage(t *testing.T) {
	diags := []protocol.Diagnostic{diag(9, SeverityError, "unexpected token")}
	out := FormatDiagnostics("main.go", diags)
	if !strings.Contains(out, "main.go") || !strings.Contains(out, "unexpected token") {
		t.Fatalf("FormatDiagnostics output missing path or message: %q", out)
	}
	if !strings.Contains(out, "[10:1]") {
		t.Fatalf("FormatDiagnostics output = %q, want 1-indexed position [10:1]", out)
	}
}

func TestFormatDiagnosticsEmptyWhenNoErrorsOrWarnings(t *testing.T) {
	diags := []protocol.Diagnostic{diag(1, 4, "hint only")}
	if out := FormatDiagnostics("main.go", diags); out != "" {
		t.Fatalf("FormatDiagnostics() = %q, want empty string for hint-only diagnostics", out)
	}
}
