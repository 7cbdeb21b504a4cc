package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/report"
)

func TestEventConstructors(t *testing.T) {
	t.Parallel()

	start := NewStartEvent("run-1", "http://app.test", "http://app.test/pageWithForm/", "csrfToken", 4)
	assert.Equal(t, EventTypeStart, start.EventType())
	assert.Equal(t, "run-1", start.RunID())
	assert.False(t, start.Timestamp().IsZero())

	res := NewResultEvent("run-1", 2, report.Result{Name: "valid_token_accepted", Status: report.StatusPass})
	assert.Equal(t, EventTypeResult, res.EventType())
	assert.Equal(t, 2, res.Index)

	rep := report.New("http://app.test", "")
	rep.Add(report.Result{Name: "a", Status: report.StatusPass})
	rep.Finalize()
	done := NewCompleteEvent(rep)
	assert.Equal(t, EventTypeComplete, done.EventType())
	assert.Equal(t, rep.RunID, done.RunID())
	assert.True(t, done.Success)
	assert.Equal(t, defaults.ExitSuccess, done.ExitCode)
}

func TestEventInterface(t *testing.T) {
	t.Parallel()

	var _ Event = (*StartEvent)(nil)
	var _ Event = (*ResultEvent)(nil)
	var _ Event = (*CompleteEvent)(nil)
}
