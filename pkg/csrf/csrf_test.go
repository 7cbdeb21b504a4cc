package csrf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/report"
	"github.com/waftester/csrfprobe/pkg/session"
	"github.com/waftester/csrfprobe/pkg/testutil"
)

func testCredentials() session.Credentials {
	return session.Credentials{
		Username:      "alice",
		Password:      "s3cret",
		UsernameField: defaults.UsernameField,
		PasswordField: defaults.PasswordField,
		LoginButton:   defaults.LoginButton,
	}
}

func newTestProbe(t *testing.T, baseURL string, mutate ...func(*Config)) *Probe {
	t.Helper()
	cfg := Config{
		Target:      DefaultTarget(baseURL),
		Credentials: testCredentials(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	p, err := NewProbe(cfg)
	if err != nil {
		t.Fatalf("NewProbe: %v", err)
	}
	return p
}

func statuses(rep *report.Report) []report.Status {
	out := make([]report.Status, len(rep.Results))
	for i, r := range rep.Results {
		out[i] = r.Status
	}
	return out
}

func names(rep *report.Report) []string {
	out := make([]string, len(rep.Results))
	for i, r := range rep.Results {
		out[i] = r.Name
	}
	return out
}

var wantOrder = []string{
	AssertTokenExists,
	AssertTokenHasValue,
	AssertValidTokenAccepted,
	AssertInvalidTokenRejected,
}

func TestRun_TokenValidated(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true})
	rep := newTestProbe(t, app.URL).Run(context.Background())

	if !rep.Passed {
		t.Fatalf("expected all assertions to pass, got %v", rep.Results)
	}
	if got := names(rep); !reflect.DeepEqual(got, wantOrder) {
		t.Errorf("order = %v, want %v", got, wantOrder)
	}
	if rep.PoC != "" {
		t.Error("no PoC expected when the server validates tokens")
	}
	if rep.ExitCode() != defaults.ExitSuccess {
		t.Errorf("exit code = %d, want %d", rep.ExitCode(), defaults.ExitSuccess)
	}
	for _, res := range rep.Results {
		if res.Evidence == nil || res.Evidence.Fingerprint == "" {
			t.Errorf("%s: missing evidence", res.Name)
		}
	}
	if ev := rep.Results[0].Evidence; ev != nil && ev.Title != "Transfer funds" {
		t.Errorf("scan page title = %q, want %q", ev.Title, "Transfer funds")
	}
}

func TestRun_LoginActionLogoutPerAssertion(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true})
	newTestProbe(t, app.URL).Run(context.Background())

	want := []string{
		"login", "scan", "logout",
		"login", "scan", "logout",
		"login", "scan", "submit", "logout",
		"login", "scan", "submit", "logout",
	}
	if got := app.Events(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v\nwant      %v", got, want)
	}
	if n := app.ActiveSessions(); n != 0 {
		t.Errorf("%d sessions left logged in", n)
	}

	// Each assertion presents only its own session id.
	seen := map[string]bool{}
	for _, id := range app.SessionIDs() {
		seen[id] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct sessions, got %v", app.SessionIDs())
	}
}

func TestRun_TokenAbsent(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Mode: testutil.TokenMissing, Validate: true})
	rep := newTestProbe(t, app.URL).Run(context.Background())

	want := []report.Status{report.StatusFail, report.StatusSkipped, report.StatusSkipped, report.StatusSkipped}
	if got := statuses(rep); !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	if rep.Results[0].Message != MsgNoToken {
		t.Errorf("message = %q, want %q", rep.Results[0].Message, MsgNoToken)
	}
	for _, res := range rep.Results[1:] {
		if !strings.Contains(res.Message, "precondition not met") {
			t.Errorf("%s: message %q should name the unmet precondition", res.Name, res.Message)
		}
	}
	if rep.ExitCode() != defaults.ExitProbeFailed {
		t.Errorf("exit code = %d, want %d", rep.ExitCode(), defaults.ExitProbeFailed)
	}
}

func TestRun_TokenHints(t *testing.T) {
	// The token exists under a different id, so the configured one is missing.
	app := testutil.NewApp(t, testutil.AppOptions{TokenID: "authToken"})
	rep := newTestProbe(t, app.URL).Run(context.Background())

	res := rep.Results[0]
	if res.Status != report.StatusFail {
		t.Fatalf("token_exists = %s, want fail", res.Status)
	}
	if !strings.Contains(res.Hint, "csrf") {
		t.Errorf("hint %q should mention the hidden csrf input", res.Hint)
	}
	if strings.Contains(res.Hint, "_session_token") {
		t.Errorf("hint %q should not list unrelated hidden inputs", res.Hint)
	}
}

func TestRun_TokenEmpty(t *testing.T) {
	modes := map[string]testutil.TokenMode{
		"no value attribute": testutil.TokenEmpty,
		"blank value":        testutil.TokenBlank,
	}
	for name, mode := range modes {
		t.Run(name, func(t *testing.T) {
			app := testutil.NewApp(t, testutil.AppOptions{Mode: mode})
			rep := newTestProbe(t, app.URL).Run(context.Background())

			if rep.Results[0].Status != report.StatusPass {
				t.Errorf("token_exists = %s, want pass", rep.Results[0].Status)
			}
			if rep.Results[1].Status != report.StatusFail || rep.Results[1].Message != MsgEmptyToken {
				t.Errorf("token_has_value = %s %q, want fail %q", rep.Results[1].Status, rep.Results[1].Message, MsgEmptyToken)
			}
			if rep.Passed {
				t.Error("report passed with an empty token")
			}
		})
	}
}

func TestNewProbe_SharesRateLimiter(t *testing.T) {
	limited := newTestProbe(t, "http://app.test", func(c *Config) { c.HTTP.RateLimit = 50 })
	if limited.http.Limiter == nil {
		t.Fatal("rate-limited probe has no shared limiter")
	}
	if limited.http.Limiter.Burst() != 50 {
		t.Errorf("burst = %d, want 50", limited.http.Limiter.Burst())
	}

	unlimited := newTestProbe(t, "http://app.test")
	if unlimited.http.Limiter != nil {
		t.Error("unlimited probe should not pace requests")
	}
}

func TestRun_RateLimitedRunCompletes(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true})
	rep := newTestProbe(t, app.URL, func(c *Config) { c.HTTP.RateLimit = 1000 }).Run(context.Background())

	if !rep.Passed {
		t.Fatalf("statuses = %v, want all pass", statuses(rep))
	}
}

func TestRun_ServerIgnoresToken(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: false})
	rep := newTestProbe(t, app.URL).Run(context.Background())

	want := []report.Status{report.StatusPass, report.StatusPass, report.StatusPass, report.StatusFail}
	if got := statuses(rep); !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	last := rep.Results[3]
	if last.Message != MsgInvalidAccepted {
		t.Errorf("message = %q, want %q", last.Message, MsgInvalidAccepted)
	}
	if last.Hint != HintNoServerCheck {
		t.Errorf("hint = %q, want %q", last.Hint, HintNoServerCheck)
	}

	if !strings.Contains(rep.PoC, `action="`+app.URL+`/pageWithForm/save"`) {
		t.Errorf("PoC should target the form action:\n%s", rep.PoC)
	}
	if !strings.Contains(rep.PoC, `name="csrf" value="XXX"`) {
		t.Errorf("PoC should carry the tampered token:\n%s", rep.PoC)
	}
}

func TestRun_SignatureIsCaseSensitive(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true, Signature: "csrftokenvalidationerror"})
	rep := newTestProbe(t, app.URL).Run(context.Background())

	if rep.Results[3].Status != report.StatusFail {
		t.Errorf("a lowercase signature must not match, got %s", rep.Results[3].Status)
	}
}

func TestRun_CustomTamperValue(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: false})
	rep := newTestProbe(t, app.URL, func(c *Config) {
		c.Target.TamperValue = "forged"
	}).Run(context.Background())

	if !strings.Contains(rep.PoC, `value="forged"`) {
		t.Errorf("PoC should carry the custom tamper value:\n%s", rep.PoC)
	}
}

func TestRun_GetForm(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true, FormMethod: "get"})
	rep := newTestProbe(t, app.URL).Run(context.Background())

	if !rep.Passed {
		t.Errorf("GET forms should be probed the same way, got %v", statuses(rep))
	}
}

func TestRun_Idempotent(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: false})
	p := newTestProbe(t, app.URL)

	first := p.Run(context.Background())
	second := p.Run(context.Background())

	if !reflect.DeepEqual(statuses(first), statuses(second)) {
		t.Errorf("runs differ: %v vs %v", statuses(first), statuses(second))
	}
	if first.RunID == second.RunID {
		t.Error("each run needs its own id")
	}
	for i := range first.Results {
		if first.Results[i].Evidence.Fingerprint != second.Results[i].Evidence.Fingerprint {
			t.Errorf("%s: page fingerprint changed between runs", first.Results[i].Name)
		}
	}
}

func TestRun_LoginRejected(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{RejectLogin: true})
	rep := newTestProbe(t, app.URL).Run(context.Background())

	if len(rep.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(rep.Results))
	}
	for _, res := range rep.Results {
		if res.Status != report.StatusError || res.Cause != report.CauseLogin {
			t.Errorf("%s: got %s/%s, want error/login", res.Name, res.Status, res.Cause)
		}
	}

	logouts := 0
	for _, e := range app.Events() {
		if e == "logout" {
			logouts++
		}
	}
	if logouts != 4 {
		t.Errorf("logout must run after failed logins too, got %d", logouts)
	}
	if rep.ExitCode() != defaults.ExitProbeFailed {
		t.Errorf("exit code = %d, want %d", rep.ExitCode(), defaults.ExitProbeFailed)
	}
}

func TestRun_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	rep := newTestProbe(t, addr).Run(context.Background())

	if len(rep.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(rep.Results))
	}
	for _, res := range rep.Results {
		if res.Status != report.StatusError || res.Cause != report.CauseConnection {
			t.Errorf("%s: got %s/%s, want error/connection", res.Name, res.Status, res.Cause)
		}
	}
	if rep.ExitCode() != defaults.ExitNetworkError {
		t.Errorf("exit code = %d, want %d", rep.ExitCode(), defaults.ExitNetworkError)
	}
}

func TestRun_Canceled(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := newTestProbe(t, app.URL).Run(ctx)

	if len(rep.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(rep.Results))
	}
	for _, res := range rep.Results {
		if res.Cause != report.CauseCanceled {
			t.Errorf("%s: cause = %q, want canceled", res.Name, res.Cause)
		}
	}
}

func TestRun_OnResult(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true})

	var (
		got     []string
		started string
		indexes []int
	)
	rep := newTestProbe(t, app.URL, func(c *Config) {
		c.OnStart = func(_ context.Context, r *report.Report) {
			started = r.RunID
			if len(r.Results) != 0 {
				t.Errorf("OnStart saw %d results", len(r.Results))
			}
		}
		c.OnResult = func(_ context.Context, r *report.Report, res report.Result) {
			got = append(got, res.Name)
			indexes = append(indexes, len(r.Results)-1)
		}
	}).Run(context.Background())

	if !reflect.DeepEqual(got, names(rep)) {
		t.Errorf("callback saw %v, report has %v", got, names(rep))
	}
	if !reflect.DeepEqual(got, Assertions()) {
		t.Errorf("order = %v, want %v", got, Assertions())
	}
	if started != rep.RunID {
		t.Errorf("OnStart run id = %q, want %q", started, rep.RunID)
	}
	if !reflect.DeepEqual(indexes, []int{0, 1, 2, 3}) {
		t.Errorf("indexes = %v", indexes)
	}
}

func TestNewProbe_Validation(t *testing.T) {
	tests := []struct {
		name   string
		target Target
	}{
		{"relative base", Target{BaseURL: "/app", TokenField: "t", ErrorSignature: "s"}},
		{"no token field", Target{BaseURL: "http://app.test", ErrorSignature: "s"}},
		{"no signature", Target{BaseURL: "http://app.test", TokenField: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProbe(Config{Target: tt.target})
			if !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("err = %v, want ErrInvalidTarget", err)
			}
		})
	}
}

func TestNewProbe_ResolvesRelativeURLs(t *testing.T) {
	p, err := NewProbe(Config{Target: Target{
		BaseURL:        "http://app.test/shop/",
		ScanURL:        "checkout",
		LogoutURL:      "/logout",
		TokenField:     "t",
		ErrorSignature: "s",
	}})
	if err != nil {
		t.Fatal(err)
	}
	got := p.Target()
	if got.ScanURL != "http://app.test/shop/checkout" {
		t.Errorf("ScanURL = %q", got.ScanURL)
	}
	if got.LogoutURL != "http://app.test/logout" {
		t.Errorf("LogoutURL = %q", got.LogoutURL)
	}
	if got.TamperValue != defaults.TamperValue {
		t.Errorf("TamperValue = %q, want default", got.TamperValue)
	}
}

func TestDefaultTarget(t *testing.T) {
	tgt := DefaultTarget("http://www.example.com/")
	if tgt.ScanURL != "http://www.example.com/pageWithForm/" {
		t.Errorf("ScanURL = %q", tgt.ScanURL)
	}
	if tgt.LogoutURL != "http://www.example.com/logout" {
		t.Errorf("LogoutURL = %q", tgt.LogoutURL)
	}
	if tgt.TokenField != "csrfToken" || tgt.ErrorSignature != "CSRFTokenValidationError" {
		t.Errorf("unexpected identifiers: %+v", tgt)
	}
}

func TestBuildPOC(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true})
	poc, err := newTestProbe(t, app.URL).BuildPOC(context.Background())
	if err != nil {
		t.Fatalf("BuildPOC: %v", err)
	}
	for _, want := range []string{`name="csrf" value="XXX"`, `name="_session_token" value="ignored"`, `name="amount" value="10"`} {
		if !strings.Contains(poc, want) {
			t.Errorf("PoC missing %s:\n%s", want, poc)
		}
	}
	if app.ActiveSessions() != 0 {
		t.Errorf("BuildPOC left %d sessions open", app.ActiveSessions())
	}
}

func TestBuildPOC_NoTokenField(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{Mode: testutil.TokenMissing})
	poc, err := newTestProbe(t, app.URL).BuildPOC(context.Background())
	if err != nil {
		t.Fatalf("BuildPOC: %v", err)
	}
	if strings.Contains(poc, "XXX") {
		t.Error("no field should carry the tamper value")
	}
	if !strings.Contains(poc, `name="amount"`) {
		t.Errorf("PoC should replay the form unchanged:\n%s", poc)
	}
}

func TestBuildPOC_LoginRejected(t *testing.T) {
	app := testutil.NewApp(t, testutil.AppOptions{RejectLogin: true})
	_, err := newTestProbe(t, app.URL).BuildPOC(context.Background())
	if !errors.Is(err, session.ErrLoginFailed) {
		t.Errorf("err = %v, want ErrLoginFailed", err)
	}
}
