package events

// StartEvent is emitted before the first assertion runs.
type StartEvent struct {
	BaseEvent
	Target     string `json:"target"`
	ScanURL    string `json:"scan_url"`
	TokenField string `json:"token_field"`
	Assertions int    `json:"assertions"`
}

// NewStartEvent creates a start event.
func NewStartEvent(runID, target, scanURL, tokenField string, assertions int) *StartEvent {
	return &StartEvent{
		BaseEvent:  newBase(EventTypeStart, runID),
		Target:     target,
		ScanURL:    scanURL,
		TokenField: tokenField,
		Assertions: assertions,
	}
}
