package writers

import (
	"fmt"
	"io"
	"strings"

	"github.com/waftester/csrfprobe/pkg/jsonutil"
	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/report"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*JSONWriter)(nil)

// JSONWriter writes the finalized report as a single JSON document on
// Close.
type JSONWriter struct {
	reportBuffer
	w    io.Writer
	opts JSONOptions
}

// JSONOptions configures the JSON writer behavior.
type JSONOptions struct {
	// OmitEvidence drops per-result evidence.
	OmitEvidence bool

	// Pretty enables indented JSON output.
	Pretty bool

	// IndentSize sets the number of spaces for indentation (default 2).
	IndentSize int
}

// NewJSONWriter creates a new JSON writer that writes to w.
func NewJSONWriter(w io.Writer, opts JSONOptions) *JSONWriter {
	if opts.IndentSize == 0 {
		opts.IndentSize = 2
	}
	return &JSONWriter{w: w, opts: opts}
}

// Close encodes the report and closes the underlying writer.
func (jw *JSONWriter) Close() error {
	rep, err := jw.report()
	if err != nil {
		return err
	}

	out := *rep
	if jw.opts.OmitEvidence {
		out.Results = make([]report.Result, len(rep.Results))
		for i, r := range rep.Results {
			r.Evidence = nil
			out.Results[i] = r
		}
	}

	encoder := jsonutil.NewStreamEncoder(jw.w)
	if jw.opts.Pretty {
		encoder.SetIndent("", strings.Repeat(" ", jw.opts.IndentSize))
	}
	if err := encoder.Encode(&out); err != nil {
		return fmt.Errorf("json: encode: %w", err)
	}
	return closeUnderlying(jw.w)
}
