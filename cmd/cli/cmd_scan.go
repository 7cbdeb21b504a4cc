package main

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/waftester/csrfprobe/pkg/cli"
	"github.com/waftester/csrfprobe/pkg/csrf"
	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/duration"
	"github.com/waftester/csrfprobe/pkg/output/dispatcher"
	"github.com/waftester/csrfprobe/pkg/output/events"
	"github.com/waftester/csrfprobe/pkg/output/hooks"
	"github.com/waftester/csrfprobe/pkg/output/writers"
	"github.com/waftester/csrfprobe/pkg/report"
	"github.com/waftester/csrfprobe/pkg/ui"
)

const scanUsage = "csrfprobe scan -u <base-url> -user <name> [-pass <password>] [flags]"

func runScan(args []string, stdout, stderr io.Writer) int {
	c, code := setup("scan", scanUsage, args, stdout, stderr)
	if c == nil {
		return code
	}
	cfg := c.cfg

	ui.PrintBanner()
	ui.PrintConfig(c.configSummary())

	ctx, stop := cli.SignalContext(duration.SignalGrace, stderr)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration.ProbeRun)
	defer cancel()

	out, toStdout, err := c.openOutput()
	if err != nil {
		return failWith(defaults.ExitUserError, "%v", err)
	}

	w, err := writers.New(out, c.writerOptions(toStdout))
	if err != nil {
		if closer, ok := out.(io.Closer); ok {
			closer.Close()
		}
		return failWithUsage(stderr, err.Error(), scanUsage)
	}

	disp := dispatcher.New(dispatcher.Config{Logger: c.logger})
	disp.RegisterWriter(w)

	// Telemetry hooks go in before the probe is built so the probe's
	// tracer resolves against the exporting provider.
	closers := c.registerHooks(disp)
	defer func() {
		for _, closeHook := range closers {
			if err := closeHook(); err != nil {
				c.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
			}
		}
	}()

	var writeErr error
	dispatch := func(ctx context.Context, ev events.Event) {
		if err := disp.Dispatch(ctx, ev); err != nil && writeErr == nil {
			writeErr = err
		}
	}

	probe, err := csrf.NewProbe(csrf.Config{
		Target:      cfg.ProbeTarget(),
		Credentials: cfg.Credentials(),
		HTTP:        cfg.HTTPClient(),
		Logger:      c.logger,
		OnStart: func(ctx context.Context, rep *report.Report) {
			dispatch(ctx, events.NewStartEvent(rep.RunID, rep.Target, rep.ScanURL, cfg.Target.TokenField, len(csrf.Assertions())))
		},
		OnResult: func(ctx context.Context, rep *report.Report, res report.Result) {
			dispatch(ctx, events.NewResultEvent(rep.RunID, len(rep.Results)-1, res))
		},
	})
	if err != nil {
		disp.Close()
		return failWithUsage(stderr, err.Error(), scanUsage)
	}

	rep := probe.Run(ctx)
	dispatch(context.WithoutCancel(ctx), events.NewCompleteEvent(rep))

	if err := disp.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return failWith(defaults.ExitInternalError, "write report: %v", writeErr)
	}
	if !toStdout {
		ui.PrintSuccess("Report written to " + cfg.Output.File)
	}
	return rep.ExitCode()
}

func (c *command) writerOptions(toStdout bool) writers.Options {
	cfg := c.cfg
	opts := writers.Options{
		Format:  cfg.Output.Format,
		Verbose: cfg.Output.Verbose,
		Color:   toStdout && ui.ColorFor(c.stdout),
	}
	if tmpl := cfg.Output.Template; tmpl != "" {
		if slices.Contains(writers.BuiltInTemplates(), tmpl) {
			opts.Template.BuiltIn = tmpl
		} else {
			opts.Template.TemplatePath = tmpl
		}
	}
	return opts
}

// registerHooks attaches the configured telemetry hooks and returns their
// close functions. A hook that cannot be created is reported and skipped.
func (c *command) registerHooks(disp *dispatcher.Dispatcher) []func() error {
	tel := c.cfg.Telemetry
	var closers []func() error

	if tel.OTelEndpoint != "" {
		h, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint: tel.OTelEndpoint,
			Insecure: tel.OTelInsecure,
		})
		if err != nil {
			ui.PrintWarning("OpenTelemetry disabled: " + err.Error())
		} else {
			disp.RegisterHook(h)
			closers = append(closers, h.Close)
		}
	}

	if tel.PushGateway != "" {
		h, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{
			PushURL: tel.PushGateway,
			Logger:  c.logger,
		})
		if err != nil {
			ui.PrintWarning("Prometheus disabled: " + err.Error())
		} else {
			disp.RegisterHook(h)
			closers = append(closers, h.Close)
		}
	}
	return closers
}
