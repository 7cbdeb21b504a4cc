package csrf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/waftester/csrfprobe/pkg/document"
	"github.com/waftester/csrfprobe/pkg/report"
	"github.com/waftester/csrfprobe/pkg/session"
)

type verdict struct {
	status  report.Status
	message string
	hint    string
}

func pass() verdict { return verdict{status: report.StatusPass} }

func fail(message, hint string) verdict {
	return verdict{status: report.StatusFail, message: message, hint: hint}
}

type assertion struct {
	name  string
	check func(ctx context.Context, s *session.Session) (verdict, error)
}

// run holds state carried between the assertions of one Run.
type run struct {
	*Probe

	// tampered is the form as submitted by invalid_token_rejected.
	tampered *document.Form
}

func (r *run) assertions() []assertion {
	return []assertion{
		{AssertTokenExists, r.tokenExists},
		{AssertTokenHasValue, r.tokenHasValue},
		{AssertValidTokenAccepted, r.validTokenAccepted},
		{AssertInvalidTokenRejected, r.invalidTokenRejected},
	}
}

func (r *run) requireToken(doc *document.Document) error {
	if !doc.HasElement(r.target.TokenField) {
		return errPrecondition
	}
	return nil
}

func (r *run) tokenExists(_ context.Context, s *session.Session) (verdict, error) {
	doc := s.Document()
	if doc.HasElement(r.target.TokenField) {
		return pass(), nil
	}
	return fail(MsgNoToken, tokenHints(doc)), nil
}

func (r *run) tokenHasValue(_ context.Context, s *session.Session) (verdict, error) {
	doc := s.Document()
	if err := r.requireToken(doc); err != nil {
		return verdict{}, err
	}
	value, err := doc.Attribute(r.target.TokenField, "value")
	if err != nil {
		return verdict{}, err
	}
	if value == "" {
		return fail(MsgEmptyToken, ""), nil
	}
	return pass(), nil
}

func (r *run) validTokenAccepted(ctx context.Context, s *session.Session) (verdict, error) {
	if err := r.requireToken(s.Document()); err != nil {
		return verdict{}, err
	}
	if err := s.UseFormWith(r.target.TokenField); err != nil {
		return verdict{}, err
	}
	if err := s.Submit(ctx, ""); err != nil {
		return verdict{}, err
	}
	if s.Document().ContainsText(r.target.ErrorSignature) {
		return fail(MsgValidRejected, ""), nil
	}
	return pass(), nil
}

func (r *run) invalidTokenRejected(ctx context.Context, s *session.Session) (verdict, error) {
	if err := r.requireToken(s.Document()); err != nil {
		return verdict{}, err
	}
	if err := s.SetField(r.target.TokenField, r.target.TamperValue); err != nil {
		return verdict{}, err
	}
	r.tampered = s.WorkingForm()
	if err := s.Submit(ctx, ""); err != nil {
		return verdict{}, err
	}
	if s.Document().ContainsText(r.target.ErrorSignature) {
		return pass(), nil
	}
	return fail(MsgInvalidAccepted, HintNoServerCheck), nil
}

// execute runs one assertion inside its own session span and converts
// the outcome, including any error, into a result.
func (p *Probe) execute(ctx context.Context, a assertion) report.Result {
	ctx, span := p.tracer.Start(ctx, "csrfprobe.assertion",
		trace.WithAttributes(attribute.String("csrfprobe.assertion", a.name)))
	defer span.End()

	start := time.Now()
	res := report.Result{Name: a.name}

	var v verdict
	err := p.withSession(ctx, func(s *session.Session) error {
		var err error
		v, err = a.check(ctx, s)
		res.Evidence = evidenceOf(s.Document())
		return err
	})

	if err != nil {
		p.classify(ctx, err, &res)
	} else {
		res.Status = v.status
		res.Message = v.message
		res.Hint = v.hint
	}
	res.DurationMs = time.Since(start).Milliseconds()

	span.SetAttributes(attribute.String("csrfprobe.status", string(res.Status)))
	if res.Status == report.StatusError {
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Message)
	}

	level := slog.LevelInfo
	if res.Status != report.StatusPass {
		level = slog.LevelWarn
	}
	p.logger.Log(ctx, level, "assertion complete",
		slog.String("assertion", res.Name),
		slog.String("status", string(res.Status)),
		slog.String("message", res.Message),
		slog.Int64("duration_ms", res.DurationMs))
	return res
}

func (p *Probe) classify(ctx context.Context, err error, res *report.Result) {
	res.Status = report.StatusError
	res.Error = err.Error()

	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		res.Cause = report.CauseCanceled
		res.Message = "run canceled before the assertion completed"
	case errors.Is(err, errPrecondition):
		res.Status = report.StatusSkipped
		res.Error = ""
		res.Message = fmt.Sprintf(msgPreconditionFmt, p.target.TokenField)
	case errors.Is(err, session.ErrLoginFailed):
		res.Cause = report.CauseLogin
		res.Message = "login failed"
	case errors.Is(err, session.ErrConnection):
		res.Cause = report.CauseConnection
		res.Message = "connection failed"
	case errors.Is(err, session.ErrSubmission):
		res.Cause = report.CauseSubmission
		res.Message = "form submission failed"
	case errors.Is(err, session.ErrFieldNotFound),
		errors.Is(err, document.ErrElementNotFound),
		errors.Is(err, document.ErrNoForm):
		res.Cause = report.CauseStructure
		res.Message = "page structure does not match the configured form"
	default:
		res.Message = "unexpected error"
	}
}

func evidenceOf(doc *document.Document) *report.Evidence {
	if doc == nil {
		return nil
	}
	ev := &report.Evidence{
		StatusCode:  doc.StatusCode,
		Fingerprint: fmt.Sprintf("%08x", doc.Fingerprint()),
		Title:       doc.Title(),
	}
	if doc.URL != nil {
		ev.URL = doc.URL.String()
	}
	return ev
}
