package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/waftester/csrfprobe/pkg/report"
)

// Tests here mutate package state and must not run in parallel.

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	SetNoColor(true)
	t.Cleanup(func() {
		SetOutput(prev)
		SetSilent(false)
	})
	return &buf
}

func TestPrintFunctions(t *testing.T) {
	buf := captureOutput(t)

	PrintSuccess("done")
	PrintWarning("careful")
	PrintError("broken")
	PrintInfo("note")

	out := buf.String()
	for _, want := range []string{"[+] done", "[!] careful", "[X] broken", "* note"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSilentKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetSilent(true)

	PrintInfo("hidden")
	PrintBanner()
	PrintError("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("silent mode should suppress info output")
	}
	if !strings.Contains(out, "shown") {
		t.Error("errors must be printed in silent mode")
	}
}

func TestPrintConfigSorted(t *testing.T) {
	buf := captureOutput(t)

	PrintConfig(map[string]string{"Target": "http://app.test", "Format": "json"})

	out := buf.String()
	if strings.Index(out, "Format") > strings.Index(out, "Target") {
		t.Errorf("options should be sorted:\n%s", out)
	}
}

func TestStatusStyle(t *testing.T) {
	SetNoColor(true)
	for _, s := range []report.Status{report.StatusPass, report.StatusFail, report.StatusError, report.StatusSkipped, "other"} {
		if got := StatusStyle(s).Render(string(s)); got != string(s) {
			t.Errorf("no-color render of %q = %q", s, got)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("a regular file is not a terminal")
	}
	if ColorFor(f) {
		t.Error("no color for files")
	}
}
