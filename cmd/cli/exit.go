package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/document"
	"github.com/waftester/csrfprobe/pkg/session"
	"github.com/waftester/csrfprobe/pkg/ui"
)

// failWith prints a formatted error message and returns code.
// Use this instead of ui.PrintError plus a bare return for consistent
// CLI error handling.
func failWith(code int, format string, args ...any) int {
	ui.PrintError(fmt.Sprintf(format, args...))
	return code
}

// failWithUsage prints an error message followed by a usage hint.
func failWithUsage(stderr io.Writer, msg, usage string) int {
	ui.PrintError(msg)
	fmt.Fprintln(stderr)
	fmt.Fprintln(stderr, "Usage:", usage)
	return defaults.ExitUserError
}

// exitCodeFor maps a session-level failure to an exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return defaults.ExitSuccess
	case errors.Is(err, session.ErrConnection), errors.Is(err, session.ErrSubmission):
		return defaults.ExitNetworkError
	case errors.Is(err, session.ErrLoginFailed), errors.Is(err, document.ErrNoForm):
		return defaults.ExitProbeFailed
	default:
		return defaults.ExitInternalError
	}
}
