package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/waftester/csrfprobe/pkg/cli"
	"github.com/waftester/csrfprobe/pkg/csrf"
	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/duration"
	"github.com/waftester/csrfprobe/pkg/ui"
)

const pocUsage = "csrfprobe poc -u <base-url> -user <name> [-o poc.html] [flags]"

// runPOC renders the scan page's form, token tampered, as a page that
// auto-submits it cross-site.
func runPOC(args []string, stdout, stderr io.Writer) int {
	c, code := setup("poc", pocUsage, args, stdout, stderr)
	if c == nil {
		return code
	}
	cfg := c.cfg

	ctx, stop := cli.SignalContext(duration.SignalGrace, stderr)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration.ProbeRun)
	defer cancel()

	probe, err := csrf.NewProbe(csrf.Config{
		Target:      cfg.ProbeTarget(),
		Credentials: cfg.Credentials(),
		HTTP:        cfg.HTTPClient(),
		Logger:      c.logger,
	})
	if err != nil {
		return failWithUsage(stderr, err.Error(), pocUsage)
	}

	poc, err := probe.BuildPOC(ctx)
	if err != nil {
		return failWith(exitCodeFor(err), "build proof of concept: %v", err)
	}

	if cfg.Output.File == "" {
		if _, err := io.WriteString(stdout, poc); err != nil {
			return failWith(defaults.ExitInternalError, "write proof of concept: %v", err)
		}
		return defaults.ExitSuccess
	}

	if err := os.WriteFile(cfg.Output.File, []byte(poc), 0o644); err != nil {
		return failWith(defaults.ExitUserError, "write proof of concept: %v", err)
	}
	ui.PrintSuccess(fmt.Sprintf("%s Proof of concept written to %s", ui.Icon("📄", "->"), cfg.Output.File))
	return defaults.ExitSuccess
}
