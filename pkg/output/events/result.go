package events

import "github.com/waftester/csrfprobe/pkg/report"

// ResultEvent carries one assertion result as soon as it is known.
type ResultEvent struct {
	BaseEvent
	Index  int           `json:"index"`
	Result report.Result `json:"result"`
}

// NewResultEvent creates a result event. index is the assertion's
// zero-based position in the run.
func NewResultEvent(runID string, index int, res report.Result) *ResultEvent {
	return &ResultEvent{
		BaseEvent: newBase(EventTypeResult, runID),
		Index:     index,
		Result:    res,
	}
}
