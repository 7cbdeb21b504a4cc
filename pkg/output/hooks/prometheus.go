package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/duration"
	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook records run metrics in a private registry and, when a
// Pushgateway URL is configured, pushes them once the run completes.
type PrometheusHook struct {
	registry *prometheus.Registry
	opts     PrometheusOptions
	logger   *slog.Logger

	assertionsTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	runDuration     *prometheus.GaugeVec
	runPassed       *prometheus.GaugeVec

	mu     sync.Mutex
	target string
	closed bool
}

// PrometheusOptions configures the Prometheus hook behavior.
type PrometheusOptions struct {
	// PushURL is the Pushgateway base URL. Empty disables pushing.
	PushURL string

	// Job is the Pushgateway job label (default: "csrfprobe").
	Job string

	// Client performs the push request (default: http.DefaultClient).
	Client *http.Client

	// Logger receives push failures. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewPrometheusHook creates the hook and registers its collectors.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Job == "" {
		opts.Job = defaults.ToolName
	}

	h := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
		logger:   orDefault(opts.Logger),
	}
	if err := h.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return h, nil
}

func (h *PrometheusHook) initMetrics() error {
	h.assertionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csrfprobe_assertions_total",
			Help: "Assertions evaluated, by outcome",
		},
		[]string{"target", "assertion", "status"},
	)
	h.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csrfprobe_errors_total",
			Help: "Assertions that could not be evaluated, by cause",
		},
		[]string{"target", "cause"},
	)
	h.runDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "csrfprobe_run_duration_seconds",
			Help: "Wall time of the last probe run",
		},
		[]string{"target"},
	)
	h.runPassed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "csrfprobe_run_passed",
			Help: "1 if every assertion of the last run passed, else 0",
		},
		[]string{"target"},
	)

	for _, c := range []prometheus.Collector{h.assertionsTotal, h.errorsTotal, h.runDuration, h.runPassed} {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// OnEvent updates metrics and pushes them on completion.
func (h *PrometheusHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		h.target = extractHost(e.Target)
	case *events.ResultEvent:
		h.assertionsTotal.WithLabelValues(h.target, e.Result.Name, string(e.Result.Status)).Inc()
		if e.Result.Cause != "" {
			h.errorsTotal.WithLabelValues(h.target, string(e.Result.Cause)).Inc()
		}
	case *events.CompleteEvent:
		if e.Report != nil {
			if h.target == "" {
				h.target = extractHost(e.Report.Target)
			}
			h.runDuration.WithLabelValues(h.target).Set(float64(e.Report.DurationMs) / 1000)
		}
		passed := 0.0
		if e.Success {
			passed = 1
		}
		h.runPassed.WithLabelValues(h.target).Set(passed)
		return h.push(ctx)
	}
	return nil
}

func (h *PrometheusHook) push(ctx context.Context) error {
	if h.opts.PushURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.ExporterShutdown)
	defer cancel()

	pusher := push.New(h.opts.PushURL, h.opts.Job).
		Gatherer(h.registry).
		Grouping("target", h.target)
	if h.opts.Client != nil {
		pusher = pusher.Client(h.opts.Client)
	}
	if err := pusher.PushContext(ctx); err != nil {
		h.logger.Warn("prometheus: push failed", slog.String("url", h.opts.PushURL), slog.String("error", err.Error()))
		return fmt.Errorf("prometheus: push: %w", err)
	}
	h.logger.Debug("prometheus: metrics pushed", slog.String("url", h.opts.PushURL), slog.String("job", h.opts.Job))
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *PrometheusHook) EventTypes() []events.EventType {
	return []events.EventType{events.EventTypeStart, events.EventTypeResult, events.EventTypeComplete}
}

// Registry exposes the hook's registry.
func (h *PrometheusHook) Registry() *prometheus.Registry {
	return h.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Close stops metric collection.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// extractHost returns the host of rawURL for use as a metric label, or
// "unknown" when it has none.
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
