package lspclient

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/x/powernap/pkg/lsp/protocol"
)

func errNoServer(language string) error {
	return errors.New("lspclient: no running server for " + language)
}

// LineSeverities reduces a diagnostics slice to the 0-indexed line -> max
// severity map the highlight overlay renderer consumes (spec §4.M:
// "a per-URI diagnostics map consumed by overlays"). Only errors and
// warnings are tracked; a lower severity number wins on a tie.
func LineSeverities(diags []protocol.Diagnostic) map[int]int {
	if len(diags) == 0 {
		return nil
	}
	lines := make(map[int]int)
	for _, d := range diags {
		sev := int(d.Severity)
		if sev != SeverityError && sev != SeverityWarning {
			continue
		}
		line := int(d.Range.Start.Line)
		if existing, ok := lines[line]; !ok || sev < existing {
			lines[line] = sev
		}
	}
	return lines
}

// FormatDiagnostics renders diags as a text block suitable for a status
// overlay or plugin-visible summary. Returns "" if there are no errors or
// warnings to show.
func FormatDiagnostics(displayPath string, diags []protocol.Diagnostic) string {
	var buf []byte
	count := 0
	for _, d := range diags {
		sev := int(d.Severity)
		if sev != SeverityError && sev != SeverityWarning {
			continue
		}
		if count == 0 {
			buf = append(buf, fmt.Sprintf("diagnostics for %s:\n", displayPath)...)
		}
		label := "warning"
		if sev == SeverityError {
			label = "error"
		}
		buf = append(buf, fmt.Sprintf("%s [%d:%d] %s\n", label,
			d.Range.Start.Line+1, d.Range.Start.Character+1, d.Message)...)
		count++
		if count >= 20 {
			buf = append(buf, "...\n"...)
			break
		}
	}
	return string(buf)
}
