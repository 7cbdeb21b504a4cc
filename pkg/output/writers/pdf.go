package writers

import (
	"fmt"
	"io"
	"strings"
	"time"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/report"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*PDFWriter)(nil)

// PDFConfig configures the PDF writer.
type PDFConfig struct {
	// Title is the document title (default "CSRF Defense Report").
	Title string

	// Author is written to the document metadata.
	Author string

	// PageSize is "A4" (default) or "Letter".
	PageSize string

	// Orientation is "P" (default) or "L".
	Orientation string
}

// PDFWriter renders the report as a printable PDF document on Close.
type PDFWriter struct {
	reportBuffer
	w      io.Writer
	config PDFConfig

	// noCompress leaves content streams uncompressed so tests can search text.
	noCompress bool
}

var pdfStatusColors = map[report.Status][]int{
	report.StatusPass:    {22, 163, 74},
	report.StatusFail:    {220, 38, 38},
	report.StatusError:   {217, 119, 6},
	report.StatusSkipped: {107, 114, 128},
}

// NewPDFWriter creates a PDF writer with defaults filled in.
func NewPDFWriter(w io.Writer, config PDFConfig) *PDFWriter {
	if config.Title == "" {
		config.Title = "CSRF Defense Report"
	}
	if config.PageSize == "" {
		config.PageSize = "A4"
	}
	if config.Orientation == "" {
		config.Orientation = "P"
	}
	return &PDFWriter{w: w, config: config}
}

// Close renders the document and closes the underlying writer.
func (pw *PDFWriter) Close() error {
	rep, err := pw.report()
	if err != nil {
		return err
	}

	pdf := gofpdf.New(pw.config.Orientation, "mm", pw.config.PageSize, "")
	pdf.SetCompression(!pw.noCompress)
	pdf.SetTitle(pw.config.Title, true)
	pdf.SetCreator(defaults.ToolName+" "+defaults.Version, true)
	if pw.config.Author != "" {
		pdf.SetAuthor(pw.config.Author, true)
	}
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s %s | Page %d", defaults.ToolName, defaults.Version, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pw.addHeader(pdf, tr, rep)
	pw.addResults(pdf, tr, rep)
	if rep.PoC != "" {
		pw.addPoC(pdf, tr, rep.PoC)
	}

	if err := pdf.Output(pw.w); err != nil {
		return fmt.Errorf("pdf output: %w", err)
	}
	return closeUnderlying(pw.w)
}

func (pw *PDFWriter) addHeader(pdf *gofpdf.Fpdf, tr func(string) string, rep *report.Report) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 12, tr(pw.config.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	verdict := "FAIL"
	if rep.Passed {
		verdict = "PASS"
	}
	rows := [][2]string{
		{"Target", rep.Target},
		{"Scan page", rep.ScanURL},
		{"Run ID", rep.RunID},
		{"Generated", rep.StartTime.Format(time.RFC1123)},
		{"Duration", fmt.Sprintf("%.2fs", float64(rep.DurationMs)/1000)},
		{"Verdict", fmt.Sprintf("%s (%d/%d passed)", verdict, rep.Summary.Passed, rep.Summary.Total)},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(80, 80, 80)
		pdf.CellFormat(35, 7, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 7, tr(truncateString(row[1], 90)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (pw *PDFWriter) addResults(pdf *gofpdf.Fpdf, tr func(string) string, rep *report.Report) {
	pw.addSectionHeader(pdf, "Assertions")

	titleCase := cases.Title(language.English)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(10, 8, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(55, 8, "Assertion", "1", 0, "L", true, 0, "")
	pdf.CellFormat(22, 8, "Status", "1", 0, "C", true, 0, "")
	pdf.CellFormat(0, 8, "Message", "1", 1, "L", true, 0, "")

	for i, res := range rep.Results {
		if i%2 == 0 {
			pdf.SetFillColor(248, 250, 252)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(10, 7, fmt.Sprintf("%d", i+1), "1", 0, "C", true, 0, "")
		pdf.CellFormat(55, 7, titleCase.String(strings.ReplaceAll(res.Name, "_", " ")), "1", 0, "L", true, 0, "")

		c := pdfStatusColors[res.Status]
		if c == nil {
			c = []int{0, 0, 0}
		}
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(22, 7, statusLabel(res.Status), "1", 0, "C", true, 0, "")

		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 7, tr(truncateString(res.Message, 60)), "1", 1, "L", true, 0, "")
	}
	pdf.Ln(4)

	for _, res := range rep.Results {
		if res.Hint == "" && res.Error == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 6, tr(res.Name), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		if res.Hint != "" {
			pdf.MultiCell(0, 5, tr(res.Hint), "", "L", false)
		}
		if res.Error != "" {
			pdf.SetTextColor(120, 120, 120)
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("%s (%s)", res.Error, res.Cause)), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Ln(2)
	}
}

func (pw *PDFWriter) addPoC(pdf *gofpdf.Fpdf, tr func(string) string, poc string) {
	pdf.Ln(4)
	pw.addSectionHeader(pdf, "Proof of Concept")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "The server accepted a tampered anti-CSRF token. Serving this page from another origin "+
		"to a logged-in user submits the form on their behalf.", "", "L", false)
	pdf.Ln(3)
	pdf.SetFont("Courier", "", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(243, 244, 246)
	pdf.MultiCell(0, 4, tr(poc), "1", "L", true)
}

func (pw *PDFWriter) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(125, 86, 244)
	pdf.CellFormat(0, 9, title, "B", 1, "L", false, 0, "")
	pdf.Ln(3)
}

// truncateString shortens s to max runes, appending "...".
func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
