// Package cli holds process-level helpers shared by csrfprobe commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext returns a context canceled on SIGINT or SIGTERM so an
// in-flight probe can still log out of its session. A second signal
// within gracePeriod exits the process with status 1.
//
// Usage:
//
//	ctx, cancel := cli.SignalContext(duration.SignalGrace, os.Stderr)
//	defer cancel()
func SignalContext(gracePeriod time.Duration, notice io.Writer) (context.Context, context.CancelFunc) {
	return signalContextWithNotifier(gracePeriod, notice, nil, nil)
}

// signalContextWithNotifier lets tests inject the signal channel and a
// replacement for os.Exit.
func signalContextWithNotifier(
	gracePeriod time.Duration,
	notice io.Writer,
	sigChan chan os.Signal,
	exitFn func(int),
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}
	if exitFn == nil {
		exitFn = os.Exit
	}
	if notice == nil {
		notice = io.Discard
	}

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(notice)
			fmt.Fprintln(notice, "Interrupt received, logging out and stopping (press Ctrl+C again to force)...")
			cancel()

			select {
			case <-sigChan:
				exitFn(1)
			case <-time.After(gracePeriod):
			}
		case <-ctx.Done():
		}
		if ownChannel {
			signal.Stop(sigChan)
		}
	}()

	return ctx, cancel
}
