// Package writers provides output writers for probe reports.
//
// Every writer is a dispatcher.Writer. The console writer streams
// assertion results as they arrive; all other writers render the
// finalized report carried by the complete event when closed.
package writers

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/output/events"
	"github.com/waftester/csrfprobe/pkg/report"
)

// ErrNoReport is returned by Close when no complete event was received.
var ErrNoReport = errors.New("writers: no report to render")

// Format names accepted by New.
const (
	FormatConsole  = "console"
	FormatJSON     = "json"
	FormatJUnit    = "junit"
	FormatMarkdown = "md"
	FormatTemplate = "template"
	FormatPDF      = "pdf"
)

// Options selects and configures a writer.
type Options struct {
	// Format is one of the Format* names.
	Format string

	// Template configures the template writer.
	Template TemplateConfig

	// Color enables ANSI styling in the console writer.
	Color bool

	// Verbose adds evidence lines to console output.
	Verbose bool
}

// Formats lists the accepted format names.
func Formats() []string {
	names := []string{FormatConsole, FormatJSON, FormatJUnit, FormatMarkdown, FormatTemplate, FormatPDF}
	sort.Strings(names)
	return names
}

// New builds the writer for opts.Format writing to w.
func New(w io.Writer, opts Options) (dispatcher.Writer, error) {
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		return NewConsoleWriter(w, ConsoleOptions{Color: opts.Color, Verbose: opts.Verbose}), nil
	case FormatJSON:
		return NewJSONWriter(w, JSONOptions{Pretty: true}), nil
	case FormatJUnit, "xml":
		return NewJUnitWriter(w, JUnitOptions{}), nil
	case FormatMarkdown, "markdown":
		return NewMarkdownWriter(w), nil
	case FormatTemplate:
		return NewTemplateWriter(w, opts.Template)
	case FormatPDF:
		return NewPDFWriter(w, PDFConfig{}), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (available: %s)", opts.Format, strings.Join(Formats(), ", "))
	}
}

// reportBuffer keeps the report from the complete event for writers that
// render on Close.
type reportBuffer struct {
	mu  sync.Mutex
	rep *report.Report
}

func (b *reportBuffer) Write(event events.Event) error {
	if c, ok := event.(*events.CompleteEvent); ok {
		b.mu.Lock()
		b.rep = c.Report
		b.mu.Unlock()
	}
	return nil
}

func (b *reportBuffer) Flush() error { return nil }

func (b *reportBuffer) SupportsEvent(eventType events.EventType) bool {
	return eventType == events.EventTypeComplete
}

func (b *reportBuffer) report() (*report.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rep == nil {
		return nil, ErrNoReport
	}
	return b.rep, nil
}

// closeUnderlying closes w if it is an io.Closer.
func closeUnderlying(w io.Writer) error {
	if closer, ok := w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func statusLabel(s report.Status) string {
	return strings.ToUpper(string(s))
}
