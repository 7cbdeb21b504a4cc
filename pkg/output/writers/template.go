package writers

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/waftester/csrfprobe/pkg/jsonutil"
	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/report"
	"github.com/waftester/csrfprobe/templates"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*TemplateWriter)(nil)

// TemplateConfig configures the template writer.
type TemplateConfig struct {
	// TemplatePath is the path to a custom template file.
	TemplatePath string

	// TemplateString is an inline template string (alternative to TemplatePath).
	TemplateString string

	// BuiltIn is the name of a built-in template: "csv", "text-summary".
	BuiltIn string
}

// TemplateWriter renders the report using Go templates.
// Sprig functions and csrfprobe-specific functions are available.
type TemplateWriter struct {
	reportBuffer
	w    io.Writer
	tmpl *template.Template
}

// NewTemplateWriter creates a new template writer.
// It parses the template immediately and returns an error if the template is invalid.
func NewTemplateWriter(w io.Writer, config TemplateConfig) (*TemplateWriter, error) {
	tmpl, err := parseTemplate(config)
	if err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}
	return &TemplateWriter{w: w, tmpl: tmpl}, nil
}

// BuiltInTemplates lists the names of the built-in templates.
func BuiltInTemplates() []string {
	entries, err := fs.ReadDir(templates.FS, builtInDir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".tmpl"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

const builtInDir = "output"

func parseTemplate(config TemplateConfig) (*template.Template, error) {
	var content string

	switch {
	case config.TemplatePath != "":
		data, err := os.ReadFile(config.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file: %w", err)
		}
		content = string(data)

	case config.TemplateString != "":
		content = config.TemplateString

	case config.BuiltIn != "":
		data, err := fs.ReadFile(templates.FS, path.Join(builtInDir, config.BuiltIn+".tmpl"))
		if err != nil {
			return nil, fmt.Errorf("unknown built-in template: %s (available: %s)", config.BuiltIn, strings.Join(BuiltInTemplates(), ", "))
		}
		content = string(data)

	default:
		return nil, fmt.Errorf("no template specified: set TemplatePath, TemplateString, or BuiltIn")
	}

	funcMap := sprig.TxtFuncMap()
	funcMap["escapeCSV"] = tmplEscapeCSV
	funcMap["statusIcon"] = tmplStatusIcon
	funcMap["json"] = tmplToJSON

	tmpl, err := template.New("csrfprobe").Funcs(funcMap).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse output template: %w", err)
	}
	return tmpl, nil
}

// tmplData holds all data available to templates.
type tmplData struct {
	RunID     string
	Target    string
	ScanURL   string
	Timestamp string
	Duration  float64
	Passed    bool
	Summary   report.Summary
	Results   []report.Result
	Failures  []report.Result
	PoC       string
}

func buildTemplateData(rep *report.Report) tmplData {
	data := tmplData{
		RunID:     rep.RunID,
		Target:    rep.Target,
		ScanURL:   rep.ScanURL,
		Timestamp: rep.StartTime.Format(time.RFC3339),
		Duration:  float64(rep.DurationMs) / 1000,
		Passed:    rep.Passed,
		Summary:   rep.Summary,
		Results:   rep.Results,
		PoC:       rep.PoC,
	}
	for _, r := range rep.Results {
		if r.Status != report.StatusPass {
			data.Failures = append(data.Failures, r)
		}
	}
	return data
}

// Close renders the template and writes it to the output.
func (tw *TemplateWriter) Close() error {
	rep, err := tw.report()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tw.tmpl.Execute(&buf, buildTemplateData(rep)); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}
	if _, err := tw.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return closeUnderlying(tw.w)
}

func tmplEscapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func tmplStatusIcon(s report.Status) string {
	switch s {
	case report.StatusPass:
		return "[+]"
	case report.StatusFail:
		return "[X]"
	case report.StatusError:
		return "[!]"
	default:
		return "[-]"
	}
}

func tmplToJSON(v any) (string, error) {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
