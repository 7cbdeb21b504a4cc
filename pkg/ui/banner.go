// Package ui renders interactive terminal output: the banner, the run
// configuration and status lines. Structured logs go through slog, not
// through this package.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/waftester/csrfprobe/pkg/defaults"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	out         io.Writer = os.Stderr
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// SetOutput redirects status output, which goes to stderr by default.
// It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	uiMu.Lock()
	defer uiMu.Unlock()
	prev := out
	out = w
	return prev
}

func output() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	if silentMode {
		return io.Discard
	}
	return out
}

const bannerArt = `
                    ___                     __
  ______________  / __/___  _________  / /_  ___
 / ___/ ___/ ___/ /_/ __ \/ ___/ __ \/ __ \/ _ \
/ /__(__  ) /  / __/ /_/ / /  / /_/ / /_/ /  __/
\___/____/_/  /_/ / .___/_/   \____/_.___/\___/
                 /_/
`

// PrintBanner prints the application banner with version info
func PrintBanner() {
	w := output()
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                         v%s\n\n", VersionStyle.Render(defaults.Version))
}

// printOption prints a configuration option
// Format:  :: Option              : Value
func printOption(w io.Writer, name, value string) {
	fmt.Fprintf(w, " :: %-20s : %s\n", ConfigLabelStyle.Render(name), ConfigValueStyle.Render(value))
}

// PrintConfig prints run options in key order, framed by dividers.
func PrintConfig(options map[string]string) {
	w := output()
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, DividerStyle.Render(strings.Repeat("_", 48)))
	fmt.Fprintln(w)
	for _, k := range keys {
		printOption(w, k, options[k])
	}
	fmt.Fprintln(w, DividerStyle.Render(strings.Repeat("_", 48)))
	fmt.Fprintln(w)
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Fprintln(output(), SectionStyle.Render(title))
}

// PrintSuccess prints a success message (to stderr)
func PrintSuccess(message string) {
	fmt.Fprintln(output(), PassStyle.Render("  [+] "+message))
}

// PrintError prints an error message (to stderr). Errors are shown even
// in silent mode.
func PrintError(message string) {
	uiMu.RLock()
	w := out
	uiMu.RUnlock()
	fmt.Fprintln(w, FailStyle.Render("  [X] "+message))
}

// PrintWarning prints a warning message (to stderr)
func PrintWarning(message string) {
	fmt.Fprintln(output(), ErrorStyle.Render("  [!] "+message))
}

// PrintInfo prints an info message (to stderr)
func PrintInfo(message string) {
	fmt.Fprintf(output(), "  %s %s\n", BannerStyle.Render("*"), message)
}

// PrintHelp prints muted help text
func PrintHelp(text string) {
	fmt.Fprintln(output(), HelpStyle.Render(text))
}
