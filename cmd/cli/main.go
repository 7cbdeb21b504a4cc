// Command csrfprobe verifies that a web application defends a form
// against cross-site request forgery.
//
// Usage:
//
//	csrfprobe scan -u http://app.test -user alice
//	csrfprobe poc -u http://app.test -user alice -o poc.html
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/ui"
)

func main() {
	prepareConsole()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ui.SetOutput(stderr)

	if len(args) == 0 {
		printUsage(stderr)
		return defaults.ExitUserError
	}

	switch args[0] {
	case "scan":
		return runScan(args[1:], stdout, stderr)
	case "poc":
		return runPOC(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return defaults.ExitSuccess
	case "-v", "--version", "version":
		fmt.Fprintf(stdout, "%s %s\n", defaults.ToolName, defaults.Version)
		return defaults.ExitSuccess
	default:
		ui.PrintError(fmt.Sprintf("unknown command %q", args[0]))
		printUsage(stderr)
		return defaults.ExitUserError
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, ui.SectionStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s <command> [flags] [base-url]\n\n", defaults.ToolName)

	fmt.Fprintln(w, ui.SectionStyle.Render("COMMANDS"))
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("scan   "), "Run the four anti-CSRF assertions against a target")
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("poc    "), "Render a cross-site proof-of-concept page for the protected form")
	fmt.Fprintf(w, "  %s  %s\n", ui.StatValueStyle.Render("version"), "Print the version")
	fmt.Fprintf(w, "  %s  %s\n\n", ui.StatValueStyle.Render("help   "), "Show this help")

	fmt.Fprintln(w, ui.SectionStyle.Render("EXIT CODES"))
	fmt.Fprintln(w, "  0  every assertion passed")
	fmt.Fprintln(w, "  1  an assertion failed or errored")
	fmt.Fprintln(w, "  2  invalid arguments or configuration")
	fmt.Fprintln(w, "  3  target unreachable for the whole run")
	fmt.Fprintln(w, "  4  internal error")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run '%s scan -h' for the full flag list.\n", defaults.ToolName)
}
