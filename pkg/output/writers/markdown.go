package writers

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*MarkdownWriter)(nil)

// MarkdownWriter writes the report as a GitHub-flavored Markdown document.
type MarkdownWriter struct {
	reportBuffer
	w io.Writer
}

// NewMarkdownWriter creates a Markdown writer that writes to w.
func NewMarkdownWriter(w io.Writer) *MarkdownWriter {
	return &MarkdownWriter{w: w}
}

// Close renders the document.
func (mw *MarkdownWriter) Close() error {
	rep, err := mw.report()
	if err != nil {
		return err
	}

	var sb strings.Builder
	verdict := "PASSED"
	if !rep.Passed {
		verdict = "FAILED"
	}
	fmt.Fprintf(&sb, "# CSRF Defense Report: %s\n\n", verdict)
	fmt.Fprintf(&sb, "| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Target | `%s` |\n", rep.Target)
	fmt.Fprintf(&sb, "| Scan page | `%s` |\n", rep.ScanURL)
	fmt.Fprintf(&sb, "| Run ID | `%s` |\n", rep.RunID)
	fmt.Fprintf(&sb, "| Started | %s |\n", rep.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "| Duration | %dms |\n\n", rep.DurationMs)

	sb.WriteString("## Assertions\n\n")
	sb.WriteString("| # | Assertion | Status | Message |\n|---|---|---|---|\n")
	for i, res := range rep.Results {
		msg := res.Message
		if res.Hint != "" {
			msg += "<br>" + res.Hint
		}
		fmt.Fprintf(&sb, "| %d | `%s` | **%s** | %s |\n", i+1, res.Name, statusLabel(res.Status), escapeMarkdownCell(msg))
	}

	fmt.Fprintf(&sb, "\n%d passed, %d failed, %d errored, %d skipped\n",
		rep.Summary.Passed, rep.Summary.Failed, rep.Summary.Errored, rep.Summary.Skipped)

	if rep.PoC != "" {
		sb.WriteString("\n## Proof of Concept\n\n```html\n")
		sb.WriteString(rep.PoC)
		sb.WriteString("\n```\n")
	}

	if _, err := io.WriteString(mw.w, sb.String()); err != nil {
		return fmt.Errorf("markdown: write: %w", err)
	}
	return closeUnderlying(mw.w)
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", "<br>")
}
