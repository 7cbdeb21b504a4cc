package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waftester/csrfprobe/pkg/defaults"
)

// ErrFinalized is returned when a result is added after Finalize.
var ErrFinalized = errors.New("report: already finalized")

// Status is the outcome of one assertion.
type Status string

const (
	// StatusPass means the checked property holds.
	StatusPass Status = "pass"
	// StatusFail means the checked property is violated.
	StatusFail Status = "fail"
	// StatusError means the assertion could not be evaluated.
	StatusError Status = "error"
	// StatusSkipped means a precondition for the assertion was not met.
	StatusSkipped Status = "skipped"
)

// Cause classifies why an assertion errored.
type Cause string

const (
	CauseConnection Cause = "connection"
	CauseSubmission Cause = "submission"
	CauseLogin      Cause = "login"
	CauseStructure  Cause = "structure"
	CauseCanceled   Cause = "canceled"
)

// IsTransport reports whether the cause is a network failure.
func (c Cause) IsTransport() bool {
	return c == CauseConnection || c == CauseSubmission
}

// Evidence describes the page an assertion's verdict was based on.
type Evidence struct {
	URL         string `json:"url,omitempty"`
	StatusCode  int    `json:"status_code,omitzero"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Title       string `json:"title,omitempty"`
}

// Result is the outcome of one assertion.
type Result struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Hint       string    `json:"hint,omitempty"`
	Cause      Cause     `json:"cause,omitempty"`
	Error      string    `json:"error,omitempty"`
	Evidence   *Evidence `json:"evidence,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Summary counts results by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// Report is the full outcome of a probe run.
type Report struct {
	RunID      string    `json:"run_id"`
	Tool       string    `json:"tool"`
	Version    string    `json:"version"`
	Target     string    `json:"target"`
	ScanURL    string    `json:"scan_url,omitempty"`
	StartTime  time.Time `json:"start_time"`
	DurationMs int64     `json:"duration_ms"`
	Passed     bool      `json:"passed"`
	Summary    Summary   `json:"summary"`
	Results    []Result  `json:"results"`
	PoC        string    `json:"poc,omitempty"`

	finalized bool
}

// New starts a report for target.
func New(target, scanURL string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Tool:      defaults.ToolName,
		Version:   defaults.Version,
		Target:    target,
		ScanURL:   scanURL,
		StartTime: time.Now().UTC(),
		Results:   make([]Result, 0, 4),
	}
}

// Add appends a result.
func (r *Report) Add(res Result) error {
	if r.finalized {
		return fmt.Errorf("%w: cannot add %q", ErrFinalized, res.Name)
	}
	r.Results = append(r.Results, res)
	return nil
}

// Finalize computes the summary and overall verdict and freezes the
// report. Calling it again has no effect.
func (r *Report) Finalize() {
	if r.finalized {
		return
	}
	r.finalized = true
	r.DurationMs = time.Since(r.StartTime).Milliseconds()

	r.Summary = Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status {
		case StatusPass:
			r.Summary.Passed++
		case StatusFail:
			r.Summary.Failed++
		case StatusError:
			r.Summary.Errored++
		case StatusSkipped:
			r.Summary.Skipped++
		}
	}
	r.Passed = r.Summary.Total > 0 && r.Summary.Passed == r.Summary.Total
}

// Finalized reports whether Finalize has been called.
func (r *Report) Finalized() bool {
	return r.finalized
}

// Result returns the result with the given assertion name.
func (r *Report) Result(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return Result{}, false
}

// ExitCode maps the verdict to a process exit code: success when every
// assertion passed, network error when every assertion errored on
// transport, probe failure otherwise.
func (r *Report) ExitCode() int {
	if !r.finalized {
		r.Finalize()
	}
	if r.Passed {
		return defaults.ExitSuccess
	}
	if len(r.Results) > 0 {
		allTransport := true
		for _, res := range r.Results {
			if res.Status != StatusError || !res.Cause.IsTransport() {
				allTransport = false
				break
			}
		}
		if allTransport {
			return defaults.ExitNetworkError
		}
	}
	return defaults.ExitProbeFailed
}
