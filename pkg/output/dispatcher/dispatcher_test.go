package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/csrfprobe/pkg/output/events"
	"github.com/waftester/csrfprobe/pkg/report"
)

type recordingWriter struct {
	only    events.EventType
	seen    []events.EventType
	failErr error
	closed  bool
	flushed bool
}

func (w *recordingWriter) Write(e events.Event) error {
	w.seen = append(w.seen, e.EventType())
	return w.failErr
}
func (w *recordingWriter) Flush() error { w.flushed = true; return nil }
func (w *recordingWriter) Close() error { w.closed = true; return nil }
func (w *recordingWriter) SupportsEvent(t events.EventType) bool {
	return w.only == "" || w.only == t
}

type recordingHook struct {
	types []events.EventType
	seen  int
	err   error
}

func (h *recordingHook) OnEvent(context.Context, events.Event) error { h.seen++; return h.err }
func (h *recordingHook) EventTypes() []events.EventType           { return h.types }

func quietDispatcher() *Dispatcher {
	return New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func resultEvent() events.Event {
	return events.NewResultEvent("r", 0, report.Result{Name: "token_exists", Status: report.StatusPass})
}

func TestDispatch_RoutesByType(t *testing.T) {
	t.Parallel()
	d := quietDispatcher()

	all := &recordingWriter{}
	onlyComplete := &recordingWriter{only: events.EventTypeComplete}
	hookAll := &recordingHook{}
	hookStart := &recordingHook{types: []events.EventType{events.EventTypeStart}}
	d.RegisterWriter(all)
	d.RegisterWriter(onlyComplete)
	d.RegisterHook(hookAll)
	d.RegisterHook(hookStart)

	require.NoError(t, d.Dispatch(context.Background(), resultEvent()))

	assert.Equal(t, []events.EventType{events.EventTypeResult}, all.seen)
	assert.Empty(t, onlyComplete.seen)
	assert.Equal(t, 1, hookAll.seen)
	assert.Equal(t, 0, hookStart.seen)
}

func TestDispatch_WriterErrorDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	d := quietDispatcher()

	bad := &recordingWriter{failErr: errors.New("disk full")}
	good := &recordingWriter{}
	hook := &recordingHook{err: errors.New("push failed")}
	d.RegisterWriter(bad)
	d.RegisterWriter(good)
	d.RegisterHook(hook)

	err := d.Dispatch(context.Background(), resultEvent())
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, good.seen, 1)
	assert.Equal(t, 1, hook.seen, "hook errors are logged, not returned")
}

func TestClose(t *testing.T) {
	t.Parallel()
	d := quietDispatcher()
	w := &recordingWriter{}
	d.RegisterWriter(w)

	require.NoError(t, d.Close())
	assert.True(t, w.flushed)
	assert.True(t, w.closed)
	assert.NoError(t, d.Close(), "second close is a no-op")
	assert.ErrorIs(t, d.Dispatch(context.Background(), resultEvent()), ErrClosed)
}
