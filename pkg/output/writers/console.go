package writers

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/output/events"
	"github.com/waftester/csrfprobe/pkg/report"
	"github.com/waftester/csrfprobe/pkg/ui"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*ConsoleWriter)(nil)

// ConsoleOptions configures the console writer.
type ConsoleOptions struct {
	// Color enables lipgloss styling.
	Color bool

	// Verbose prints evidence and error detail under each result.
	Verbose bool
}

// ConsoleWriter prints one line per assertion as results arrive and a
// verdict block when the run completes.
type ConsoleWriter struct {
	mu   sync.Mutex
	w    io.Writer
	opts ConsoleOptions
}

// NewConsoleWriter creates a console writer.
func NewConsoleWriter(w io.Writer, opts ConsoleOptions) *ConsoleWriter {
	return &ConsoleWriter{w: w, opts: opts}
}

// SupportsEvent reports true for every event type.
func (cw *ConsoleWriter) SupportsEvent(events.EventType) bool { return true }

// Write renders a single event.
func (cw *ConsoleWriter) Write(event events.Event) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	var err error
	switch e := event.(type) {
	case *events.StartEvent:
		_, err = fmt.Fprintf(cw.w, "%s %s (token field %q, %d assertions)\n",
			cw.style(ui.StatLabelStyle, "Probing"), cw.style(ui.URLStyle, e.ScanURL), e.TokenField, e.Assertions)
	case *events.ResultEvent:
		err = cw.writeResult(e.Index, e.Result)
	case *events.CompleteEvent:
		err = cw.writeSummary(e.Report)
	}
	return err
}

func (cw *ConsoleWriter) writeResult(index int, res report.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s %d. %s", cw.style(ui.StatusStyle(res.Status), fmt.Sprintf("[%s]", statusLabel(res.Status))), index+1, res.Name)
	if res.Message != "" {
		fmt.Fprintf(&b, ": %s", res.Message)
	}
	b.WriteByte('\n')
	if res.Hint != "" {
		fmt.Fprintf(&b, "      %s\n", cw.style(ui.HelpStyle, res.Hint))
	}
	if cw.opts.Verbose {
		if res.Error != "" {
			fmt.Fprintf(&b, "      error: %s (%s)\n", res.Error, res.Cause)
		}
		if ev := res.Evidence; ev != nil {
			code := fmt.Sprintf("%d", ev.StatusCode)
			fmt.Fprintf(&b, "      %s %s fingerprint=%s", cw.style(ui.StatusCodeStyle(ev.StatusCode), code), ev.URL, ev.Fingerprint)
			if ev.Title != "" {
				fmt.Fprintf(&b, " title=%q", ev.Title)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "      took %dms\n", res.DurationMs)
	}
	_, err := io.WriteString(cw.w, b.String())
	return err
}

func (cw *ConsoleWriter) writeSummary(rep *report.Report) error {
	if rep == nil {
		return ErrNoReport
	}
	s := rep.Summary
	verdict := cw.style(ui.FailStyle, "FAIL")
	if rep.Passed {
		verdict = cw.style(ui.PassStyle, "PASS")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s  %d passed, %d failed, %d errors, %d skipped in %.2fs\n",
		cw.style(ui.StatLabelStyle, "Verdict"), verdict,
		s.Passed, s.Failed, s.Errored, s.Skipped, float64(rep.DurationMs)/1000)
	if rep.PoC != "" {
		b.WriteString("  A proof-of-concept form was generated; use -format md or json to export it.\n")
	}
	_, err := io.WriteString(cw.w, b.String())
	return err
}

func (cw *ConsoleWriter) style(s lipgloss.Style, text string) string {
	if !cw.opts.Color {
		return text
	}
	return s.Render(text)
}

// Flush is a no-op; every line is written immediately.
func (cw *ConsoleWriter) Flush() error { return nil }

// Close closes the underlying writer if it is an io.Closer.
func (cw *ConsoleWriter) Close() error { return closeUnderlying(cw.w) }
