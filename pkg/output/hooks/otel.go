// Package hooks connects probe events to telemetry backends.
package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/duration"
	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/output/events"
	"github.com/waftester/csrfprobe/pkg/report"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports run telemetry to an OpenTelemetry collector.
// It installs its tracer provider globally, so the probe's own run and
// assertion spans are exported alongside the report span it records.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu       sync.Mutex
	rootSpan trace.Span
	closed   bool
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "csrfprobe").
	ServiceName string

	// Insecure uses a plaintext gRPC connection.
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout is the timeout for graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout is the timeout for creating the exporter (default: 10s).
	ConnectionTimeout time.Duration

	// Exporter replaces the OTLP exporter. Endpoint and transport options
	// are ignored when set.
	Exporter sdktrace.SpanExporter
}

// NewOTelHook creates the tracer provider and hook.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.ExporterShutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.ExporterConnect
	}

	exporter := opts.Exporter
	if exporter == nil {
		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			exporterOpts = append(exporterOpts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		if len(opts.Headers) > 0 {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
		}

		ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
		defer cancel()

		var err error
		exporter, err = otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otel: create exporter: %w", err)
		}
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "probe"),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	return &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(defaults.ToolName + "/report"),
	}, nil
}

// OnEvent records the run as a span with one span event per assertion.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		_, h.rootSpan = h.tracer.Start(ctx, "csrfprobe.report",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("run_id", e.RunID()),
				attribute.String("target", e.Target),
				attribute.String("scan_url", e.ScanURL),
				attribute.String("token_field", e.TokenField),
				attribute.Int("assertions", e.Assertions),
			),
		)
	case *events.ResultEvent:
		if h.rootSpan == nil {
			return nil
		}
		attrs := []attribute.KeyValue{
			attribute.Int("index", e.Index),
			attribute.String("assertion", e.Result.Name),
			attribute.String("status", string(e.Result.Status)),
			attribute.Int64("duration_ms", e.Result.DurationMs),
		}
		if e.Result.Cause != "" {
			attrs = append(attrs, attribute.String("cause", string(e.Result.Cause)))
		}
		if e.Result.Evidence != nil {
			attrs = append(attrs, attribute.Int("status_code", e.Result.Evidence.StatusCode))
		}
		h.rootSpan.AddEvent("assertion_result", trace.WithAttributes(attrs...))
		if e.Result.Status == report.StatusFail {
			h.rootSpan.SetStatus(codes.Error, e.Result.Message)
		}
	case *events.CompleteEvent:
		if h.rootSpan == nil {
			return nil
		}
		if rep := e.Report; rep != nil {
			h.rootSpan.SetAttributes(
				attribute.Int("summary.passed", rep.Summary.Passed),
				attribute.Int("summary.failed", rep.Summary.Failed),
				attribute.Int("summary.errored", rep.Summary.Errored),
				attribute.Int("summary.skipped", rep.Summary.Skipped),
			)
		}
		h.rootSpan.SetAttributes(attribute.Int("exit_code", e.ExitCode))
		if e.Success {
			h.rootSpan.SetStatus(codes.Ok, "all assertions passed")
		} else {
			h.rootSpan.SetStatus(codes.Error, fmt.Sprintf("run failed with exit code %d", e.ExitCode))
		}
		h.rootSpan.End()
		h.rootSpan = nil
	}
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *OTelHook) EventTypes() []events.EventType {
	return []events.EventType{events.EventTypeStart, events.EventTypeResult, events.EventTypeComplete}
}

// Flush exports all finished spans.
func (h *OTelHook) Flush(ctx context.Context) error {
	return h.tracerProvider.ForceFlush(ctx)
}

// Close ends any open span and shuts down the tracer provider.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.rootSpan != nil {
		h.rootSpan.End()
		h.rootSpan = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
	defer cancel()
	if err := h.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel: shutdown tracer provider: %w", err)
	}
	return nil
}

// Endpoint returns the OTLP endpoint being used.
func (h *OTelHook) Endpoint() string {
	return h.opts.Endpoint
}

// ServiceName returns the service name being used.
func (h *OTelHook) ServiceName() string {
	return h.opts.ServiceName
}
