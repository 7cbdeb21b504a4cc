package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/waftester/csrfprobe/pkg/config"
	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/ui"
)

// command carries the state shared by every subcommand once flags,
// file and environment have been merged.
type command struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// setup loads and validates the configuration for a subcommand. When it
// returns a nil command the caller exits with code.
func setup(name, usage string, args []string, stdout, stderr io.Writer) (*command, int) {
	flags := config.NewFlags(name, stderr)
	cfg, err := flags.Load(args, os.LookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		return nil, defaults.ExitSuccess
	}
	if err != nil {
		return nil, failWithUsage(stderr, err.Error(), usage)
	}
	if err := cfg.Validate(); err != nil {
		return nil, failWithUsage(stderr, err.Error(), usage)
	}

	ui.SetSilent(cfg.Output.Silent)
	ui.SetNoColor(cfg.Output.NoColor)

	level, _ := cfg.SlogLevel() // checked by Validate
	var logOut io.Writer = stderr
	if cfg.Output.Silent {
		logOut = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	return &command{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}, defaults.ExitSuccess
}

// configSummary is the option table printed under the banner.
func (c *command) configSummary() map[string]string {
	cfg := c.cfg
	opts := map[string]string{
		"Target":      cfg.Target.BaseURL,
		"Scan page":   cfg.Target.ScanPath,
		"Token field": cfg.Target.TokenField,
		"Signature":   cfg.Target.ErrorSignature,
		"User":        cfg.Login.Username,
		"Timeout":     cfg.HTTP.Timeout.String(),
		"Format":      cfg.Output.Format,
	}
	if cfg.HTTP.Proxy != "" {
		opts["Proxy"] = cfg.HTTP.Proxy
	}
	if cfg.HTTP.RateLimit > 0 {
		opts["Rate limit"] = strconv.FormatFloat(cfg.HTTP.RateLimit, 'f', -1, 64) + " req/s"
	}
	if cfg.HTTP.TLSProfile != "" {
		opts["TLS profile"] = cfg.HTTP.TLSProfile
	}
	if cfg.Output.File != "" {
		opts["Output"] = cfg.Output.File
	}
	return opts
}

// openOutput returns the report destination. Writers close what they
// write to, so stdout is wrapped to keep it open.
func (c *command) openOutput() (io.Writer, bool, error) {
	if c.cfg.Output.File == "" {
		return struct{ io.Writer }{c.stdout}, true, nil
	}
	f, err := os.Create(c.cfg.Output.File)
	if err != nil {
		return nil, false, fmt.Errorf("create output file: %w", err)
	}
	return f, false, nil
}
