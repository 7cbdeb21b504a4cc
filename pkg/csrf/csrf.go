// Package csrf verifies a web application's anti-CSRF defense.
//
// A Probe logs into the target, loads the page holding the protected
// form and runs four assertions in fixed order:
//
//	token_exists           the token field is present
//	token_has_value        the token field carries a value
//	valid_token_accepted   an unmodified submission is not rejected
//	invalid_token_rejected a tampered submission is rejected
//
// Every assertion runs in its own login, action, logout span so no
// assertion sees another's session state.
package csrf

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/duration"
	"github.com/waftester/csrfprobe/pkg/httpclient"
	"github.com/waftester/csrfprobe/pkg/report"
	"github.com/waftester/csrfprobe/pkg/session"
)

// Assertion names, in execution order.
const (
	AssertTokenExists          = "token_exists"
	AssertTokenHasValue        = "token_has_value"
	AssertValidTokenAccepted   = "valid_token_accepted"
	AssertInvalidTokenRejected = "invalid_token_rejected"
)

// Assertions returns the assertion names in execution order.
func Assertions() []string {
	return []string{AssertTokenExists, AssertTokenHasValue, AssertValidTokenAccepted, AssertInvalidTokenRejected}
}

// Failure messages.
const (
	MsgNoToken         = "No Anti-CSRF token in the form"
	MsgEmptyToken      = "Anti-CSRF token has no value"
	MsgValidRejected   = "Anti-CSRF Token Mismatch Error response on valid token"
	MsgInvalidAccepted = "No Anti-CSRF Token Mismatch Error response on Invalid token"
	HintNoServerCheck  = "Possible cause: Server side CSRF token validation is not enabled"
)

const (
	msgPreconditionFmt = "precondition not met: anti-CSRF token field %q not present on scan page"
	tracerName         = "github.com/waftester/csrfprobe/pkg/csrf"
)

// Target addresses the application under test.
type Target struct {
	// BaseURL is the login page.
	BaseURL string
	// ScanURL is the page holding the protected form.
	ScanURL string
	// LogoutURL ends an authenticated session.
	LogoutURL string
	// TokenField is the id of the hidden token field.
	TokenField string
	// ErrorSignature is the literal marker the server emits on token
	// mismatch. Matching is case-sensitive.
	ErrorSignature string
	// TamperValue replaces the token in the tampered submission.
	TamperValue string
}

// DefaultTarget derives a Target from a base URL using the stock paths
// and identifiers.
func DefaultTarget(baseURL string) Target {
	base := strings.TrimSuffix(baseURL, "/")
	return Target{
		BaseURL:        baseURL,
		ScanURL:        base + defaults.ScanPath,
		LogoutURL:      base + defaults.LogoutPath,
		TokenField:     defaults.TokenField,
		ErrorSignature: defaults.ErrorSignature,
		TamperValue:    defaults.TamperValue,
	}
}

// Config configures a Probe.
type Config struct {
	Target      Target
	Credentials session.Credentials
	HTTP        httpclient.Config

	// Logger receives progress output. Nil uses slog.Default().
	Logger *slog.Logger

	// Tracer records a span per run and per assertion. Nil uses the
	// global provider.
	Tracer trace.Tracer

	// OnStart, if set, is called with the empty report before the first
	// assertion runs.
	OnStart func(ctx context.Context, rep *report.Report)

	// OnResult, if set, is called after each assertion's result has been
	// added to rep.
	OnResult func(ctx context.Context, rep *report.Report, res report.Result)
}

// Probe runs the CSRF assertions against one target.
type Probe struct {
	target Target
	creds  session.Credentials
	http   httpclient.Config
	logger *slog.Logger
	tracer trace.Tracer
	start  func(context.Context, *report.Report)
	notify func(context.Context, *report.Report, report.Result)
}

// NewProbe validates cfg and returns a Probe. Relative scan and logout
// URLs resolve against the base URL.
func NewProbe(cfg Config) (*Probe, error) {
	t := cfg.Target
	base, err := url.Parse(t.BaseURL)
	if err != nil || !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q must be absolute", ErrInvalidTarget, t.BaseURL)
	}

	def := DefaultTarget(t.BaseURL)
	if t.ScanURL == "" {
		t.ScanURL = def.ScanURL
	}
	if t.LogoutURL == "" {
		t.LogoutURL = def.LogoutURL
	}
	if t.ScanURL, err = resolveAgainst(base, t.ScanURL); err != nil {
		return nil, err
	}
	if t.LogoutURL, err = resolveAgainst(base, t.LogoutURL); err != nil {
		return nil, err
	}
	if t.TokenField == "" {
		return nil, fmt.Errorf("%w: token field is required", ErrInvalidTarget)
	}
	if t.ErrorSignature == "" {
		return nil, fmt.Errorf("%w: error signature is required", ErrInvalidTarget)
	}
	if t.TamperValue == "" {
		t.TamperValue = defaults.TamperValue
	}

	// One limiter paces the whole run, not each assertion's session.
	if cfg.HTTP.Limiter == nil {
		cfg.HTTP.Limiter = httpclient.NewLimiter(cfg.HTTP.RateLimit)
	}

	p := &Probe{
		target: t,
		creds:  cfg.Credentials,
		http:   cfg.HTTP,
		logger: cfg.Logger,
		tracer: cfg.Tracer,
		start:  cfg.OnStart,
		notify: cfg.OnResult,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p, nil
}

func resolveAgainst(base *url.URL, raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidTarget, raw, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Target returns the resolved target.
func (p *Probe) Target() Target {
	return p.target
}

// Run executes the four assertions in order and returns the finalized
// report. It never returns fewer than four results: failures and
// cancellation are recorded per assertion.
func (p *Probe) Run(ctx context.Context) *report.Report {
	rep := report.New(p.target.BaseURL, p.target.ScanURL)

	ctx, span := p.tracer.Start(ctx, "csrfprobe.run", trace.WithAttributes(
		attribute.String("csrfprobe.run_id", rep.RunID),
		attribute.String("csrfprobe.target", p.target.BaseURL),
	))
	defer span.End()

	p.logger.Info("probe started",
		slog.String("run_id", rep.RunID),
		slog.String("target", p.target.BaseURL),
		slog.String("scan_url", p.target.ScanURL))

	if p.start != nil {
		p.start(ctx, rep)
	}

	r := &run{Probe: p}
	for _, a := range r.assertions() {
		res := p.execute(ctx, a)
		if err := rep.Add(res); err != nil {
			p.logger.Error("result dropped", slog.String("assertion", res.Name), slog.String("error", err.Error()))
			continue
		}
		if p.notify != nil {
			p.notify(ctx, rep, res)
		}
	}

	if res, ok := rep.Result(AssertInvalidTokenRejected); ok && res.Status == report.StatusFail && r.tampered != nil {
		rep.PoC = POCFromForm(r.tampered)
	}

	rep.Finalize()
	span.SetAttributes(attribute.Bool("csrfprobe.passed", rep.Passed))
	if !rep.Passed {
		span.SetStatus(codes.Error, "csrf defense incomplete")
	}

	p.logger.Info("probe finished",
		slog.String("run_id", rep.RunID),
		slog.Bool("passed", rep.Passed),
		slog.Int("failed", rep.Summary.Failed),
		slog.Int("errored", rep.Summary.Errored),
		slog.Int("skipped", rep.Summary.Skipped),
		slog.Duration("duration", time.Duration(rep.DurationMs)*time.Millisecond))
	return rep
}

// withSession logs in, loads the scan page and runs fn with the session.
// Logout happens on every exit path, including login failure and
// cancellation of ctx.
func (p *Probe) withSession(ctx context.Context, fn func(*session.Session) error) error {
	s := session.New(session.WithHTTPConfig(p.http), session.WithLogger(p.logger))
	defer func() {
		p.logout(ctx, s)
		s.Close()
	}()

	if err := s.Login(ctx, p.target.BaseURL, p.creds); err != nil {
		return err
	}
	if err := s.Navigate(ctx, p.target.ScanURL); err != nil {
		return err
	}
	return fn(s)
}

func (p *Probe) logout(ctx context.Context, s *session.Session) {
	// Logout must still reach the server once the run is canceled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.HTTPProbing)
	defer cancel()

	if err := s.Navigate(ctx, p.target.LogoutURL); err != nil {
		p.logger.Debug("logout failed", slog.String("error", err.Error()))
	}
}
