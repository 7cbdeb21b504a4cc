package writers

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/report"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*JUnitWriter)(nil)

// JUnitWriter writes the report in JUnit XML format, one test case per
// assertion, for CI systems such as Jenkins, GitLab CI and GitHub Actions.
type JUnitWriter struct {
	reportBuffer
	w    io.Writer
	opts JUnitOptions
}

// JUnitOptions configures the JUnit XML writer.
type JUnitOptions struct {
	// SuiteName is the name of the test suite (default: "csrfprobe").
	SuiteName string

	// Package is the classname prefix for test cases.
	Package string

	// Hostname is the hostname for the test suite.
	Hostname string
}

// JUnit XML structures.

type junitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Hostname   string          `xml:"hostname,attr,omitempty"`
	Properties []junitProperty `xml:"properties>property,omitempty"`
	TestCases  []junitTestCase `xml:"testcase"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

// NewJUnitWriter creates a new JUnit XML writer that writes to w.
func NewJUnitWriter(w io.Writer, opts JUnitOptions) *JUnitWriter {
	if opts.SuiteName == "" {
		opts.SuiteName = defaults.ToolName
	}
	if opts.Package == "" {
		opts.Package = defaults.ToolName
	}
	return &JUnitWriter{w: w, opts: opts}
}

// Close writes the JUnit document.
// Mapping:
//   - pass → success (no child element)
//   - fail → <failure> with message and hint
//   - error → <error> typed by cause
//   - skipped → <skipped>
func (jw *JUnitWriter) Close() error {
	rep, err := jw.report()
	if err != nil {
		return err
	}

	suite := junitTestSuite{
		Name:      jw.opts.SuiteName,
		Tests:     len(rep.Results),
		Failures:  rep.Summary.Failed,
		Errors:    rep.Summary.Errored,
		Skipped:   rep.Summary.Skipped,
		Time:      float64(rep.DurationMs) / 1000,
		Timestamp: rep.StartTime.Format("2006-01-02T15:04:05"),
		Hostname:  jw.opts.Hostname,
		Properties: []junitProperty{
			{Name: "run_id", Value: rep.RunID},
			{Name: "target", Value: rep.Target},
			{Name: "scan_url", Value: rep.ScanURL},
		},
	}

	for _, res := range rep.Results {
		tc := junitTestCase{
			Name:      res.Name,
			ClassName: jw.opts.Package + ".csrf",
			Time:      float64(res.DurationMs) / 1000,
		}
		switch res.Status {
		case report.StatusFail:
			tc.Failure = &junitFailure{
				Message: res.Message,
				Type:    "csrf",
				Content: caseDetail(res),
			}
		case report.StatusError:
			tc.Error = &junitError{
				Message: res.Message,
				Type:    string(res.Cause),
				Content: caseDetail(res),
			}
		case report.StatusSkipped:
			tc.Skipped = &junitSkipped{Message: res.Message}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	if _, err := io.WriteString(jw.w, xml.Header); err != nil {
		return fmt.Errorf("junit: write header: %w", err)
	}
	enc := xml.NewEncoder(jw.w)
	enc.Indent("", "  ")
	if err := enc.Encode(junitTestSuites{TestSuites: []junitTestSuite{suite}}); err != nil {
		return fmt.Errorf("junit: encode: %w", err)
	}
	if _, err := io.WriteString(jw.w, "\n"); err != nil {
		return err
	}
	return closeUnderlying(jw.w)
}

func caseDetail(res report.Result) string {
	var lines []string
	if res.Hint != "" {
		lines = append(lines, res.Hint)
	}
	if res.Error != "" {
		lines = append(lines, "error: "+res.Error)
	}
	if ev := res.Evidence; ev != nil {
		lines = append(lines, fmt.Sprintf("evidence: %s (HTTP %d, fingerprint %s)", ev.URL, ev.StatusCode, ev.Fingerprint))
	}
	return strings.Join(lines, "\n")
}
