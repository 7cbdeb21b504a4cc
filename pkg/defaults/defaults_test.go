package defaults

import (
	"strings"
	"testing"
)

func TestTamperValueMatchesSentinel(t *testing.T) {
	if TamperValue != "XXX" {
		t.Errorf("TamperValue = %q, want XXX", TamperValue)
	}
}

func TestUserAgentContainsVersion(t *testing.T) {
	if !strings.Contains(UserAgent, Version) {
		t.Errorf("UserAgent %q should contain version %q", UserAgent, Version)
	}
	if !strings.HasPrefix(UserAgent, ToolName+"/") {
		t.Errorf("UserAgent %q should start with %q", UserAgent, ToolName+"/")
	}
}

func TestExitCodesDistinct(t *testing.T) {
	codes := []int{ExitSuccess, ExitProbeFailed, ExitUserError, ExitNetworkError, ExitInternalError}
	seen := make(map[int]bool)
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate exit code %d", c)
		}
		seen[c] = true
	}
	if ExitSuccess != 0 {
		t.Error("ExitSuccess must be 0")
	}
}
