package events

import "github.com/waftester/csrfprobe/pkg/report"

// CompleteEvent is emitted when a run finishes.
// It carries the finalized report and the process exit code.
type CompleteEvent struct {
	BaseEvent
	Success  bool           `json:"success"`
	ExitCode int            `json:"exit_code"`
	Report   *report.Report `json:"report"`
}

// NewCompleteEvent creates a complete event for a finalized report.
func NewCompleteEvent(rep *report.Report) *CompleteEvent {
	return &CompleteEvent{
		BaseEvent: newBase(EventTypeComplete, rep.RunID),
		Success:   rep.Passed,
		ExitCode:  rep.ExitCode(),
		Report:    rep,
	}
}
