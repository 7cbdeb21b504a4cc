// Package dispatcher provides the central event routing for output.
// It receives events from a probe run and routes them to registered
// writers and hooks. Writers render reports (console, JSON, JUnit, PDF),
// while hooks feed telemetry backends (Prometheus).
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/waftester/csrfprobe/pkg/output/events"
)

// Writer is the interface for all output writers.
type Writer interface {
	// Write writes an event to the output.
	Write(event events.Event) error

	// Flush ensures all buffered events are written.
	Flush() error

	// Close closes the writer and releases any resources.
	Close() error

	// SupportsEvent returns true if the writer handles this event type.
	SupportsEvent(eventType events.EventType) bool
}

// Hook is the interface for event hooks.
type Hook interface {
	// OnEvent is called for each matching event.
	OnEvent(ctx context.Context, event events.Event) error

	// EventTypes returns the event types this hook handles.
	// Return nil or empty slice to receive all events.
	EventTypes() []events.EventType
}

// Dispatcher routes events to writers and hooks.
// It is safe for concurrent use.
type Dispatcher struct {
	mu      sync.RWMutex
	writers []Writer
	hooks   []Hook
	logger  *slog.Logger
	closed  bool
}

// Config configures the dispatcher.
type Config struct {
	// Logger receives writer and hook failures. Nil uses slog.Default().
	Logger *slog.Logger
}

// New creates a new event dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// RegisterWriter adds a writer to the dispatcher.
func (d *Dispatcher) RegisterWriter(w Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writers = append(d.writers, w)
}

// RegisterHook adds a hook to the dispatcher.
func (d *Dispatcher) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Dispatch sends an event to all registered writers and hooks. Every
// consumer receives the event even if an earlier one fails; writer
// failures are joined into the returned error, hook failures are only
// logged.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	var errs []error
	for _, w := range d.writers {
		if !w.SupportsEvent(event.EventType()) {
			continue
		}
		if err := w.Write(event); err != nil {
			errs = append(errs, err)
		}
	}

	for _, h := range d.hooks {
		if !hookSupportsEvent(h, event.EventType()) {
			continue
		}
		if err := h.OnEvent(ctx, event); err != nil {
			d.logger.Warn("output hook failed",
				slog.String("event", string(event.EventType())),
				slog.String("error", err.Error()))
		}
	}

	return errors.Join(errs...)
}

// hookSupportsEvent checks if a hook handles the given event type.
func hookSupportsEvent(h Hook, eventType events.EventType) bool {
	types := h.EventTypes()
	// Empty slice means hook receives all events
	if len(types) == 0 {
		return true
	}
	for _, et := range types {
		if et == eventType {
			return true
		}
	}
	return false
}

// Close flushes and closes all writers. Errors from every writer are
// joined. After Close, Dispatch returns ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	for _, w := range d.writers {
		if err := w.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher: closed")
