// Package session provides a stateful, browser-like HTTP session.
//
// A Session carries cookies across a sequence of page loads and form
// submissions, and keeps the most recently loaded page as its current
// document. BeginAt discards all prior state, so cookies received in one
// BeginAt span are never sent in the next.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/document"
	"github.com/waftester/csrfprobe/pkg/httpclient"
	"github.com/waftester/csrfprobe/pkg/iohelper"
)

// Session is a single-user browsing session. It is not safe for
// concurrent use.
type Session struct {
	httpCfg httpclient.Config
	logger  *slog.Logger

	client  *http.Client
	current *document.Document
	forms   []*document.Form
	working *document.Form
	history []Step
}

// Step records one request made by the session.
type Step struct {
	Method     string
	URL        string
	StatusCode int
	Latency    time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPConfig sets the configuration used for every client the session
// builds.
func WithHTTPConfig(cfg httpclient.Config) Option {
	return func(s *Session) {
		s.httpCfg = cfg
	}
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// New creates an idle session. Call BeginAt before anything else.
func New(opts ...Option) *Session {
	s := &Session{httpCfg: httpclient.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// BeginAt resets the session with a fresh cookie jar and loads rawURL.
func (s *Session) BeginAt(ctx context.Context, rawURL string) error {
	s.Close()

	client, err := httpclient.New(s.httpCfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	s.client = client

	return s.Navigate(ctx, rawURL)
}

// Navigate loads rawURL with the session's cookies and makes it the
// current document. Relative URLs resolve against the current page.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if s.client == nil {
		return ErrNotStarted
	}
	target, err := s.resolve(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if err := s.load(req); err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrConnection, target, err)
	}
	return nil
}

// SetField sets the value of the first control whose name, or failing
// that id, equals key. The form holding the control becomes the working
// form used by Submit.
func (s *Session) SetField(key, value string) error {
	if s.current == nil {
		return ErrNotStarted
	}
	if s.working != nil && s.working.Set(key, value) {
		return nil
	}
	for _, f := range s.forms {
		if f.Set(key, value) {
			s.working = f
			return nil
		}
	}
	return fmt.Errorf("%w: %q on %s", ErrFieldNotFound, key, s.current.URL)
}

// UseFormWith makes the form holding the control named key (or with id
// key) the working form without changing any value.
func (s *Session) UseFormWith(key string) error {
	if s.current == nil {
		return ErrNotStarted
	}
	for _, f := range s.forms {
		if f.Field(key) != nil {
			s.working = f
			return nil
		}
	}
	return fmt.Errorf("%w: no form holds %q on %s", ErrFieldNotFound, key, s.current.URL)
}

// WorkingForm returns a copy of the form Submit("") would send, or nil
// when the page has no form.
func (s *Session) WorkingForm() *document.Form {
	switch {
	case s.working != nil:
		return s.working.Clone()
	case len(s.forms) > 0:
		return s.forms[0].Clone()
	}
	return nil
}

// Submit submits a form on the current page. A non-empty buttonName
// activates that submit control, and the form holding it is submitted
// with the control's name/value pair. An empty buttonName submits the
// working form, or the page's first form, without a submitter.
func (s *Session) Submit(ctx context.Context, buttonName string) error {
	if s.current == nil {
		return ErrNotStarted
	}

	form, submitter, err := s.pickForm(buttonName)
	if err != nil {
		return err
	}

	req, err := buildRequest(ctx, form, submitter)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	if err := s.load(req); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrSubmission, form.Method, form.Action, err)
	}
	return nil
}

func (s *Session) pickForm(buttonName string) (*document.Form, *document.Field, error) {
	if len(s.forms) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", document.ErrNoForm, s.current.URL)
	}
	if buttonName == "" {
		if s.working != nil {
			return s.working, nil, nil
		}
		return s.forms[0], nil, nil
	}

	candidates := s.forms
	if s.working != nil {
		candidates = append([]*document.Form{s.working}, s.forms...)
	}
	for _, f := range candidates {
		if c := f.SubmitControl(buttonName); c != nil {
			return f, c, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: submit control %q on %s", ErrFieldNotFound, buttonName, s.current.URL)
}

func buildRequest(ctx context.Context, form *document.Form, submitter *document.Field) (*http.Request, error) {
	vals := form.Values(submitter)
	action := *form.Action
	action.Fragment = ""

	if form.Method == http.MethodPost {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(vals.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", defaults.ContentTypeForm)
		return req, nil
	}

	action.RawQuery = vals.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, action.String(), nil)
}

// load executes req and installs the response as the current document.
func (s *Session) load(req *http.Request) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", defaults.AcceptHTML)
	}
	if s.current != nil && s.current.URL != nil {
		req.Header.Set("Referer", s.current.URL.String())
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.logger.Debug("session request failed",
			slog.String("method", req.Method),
			slog.String("url", req.URL.String()),
			slog.String("error", err.Error()))
		return httpclient.Classify(err)
	}
	defer iohelper.DrainAndClose(resp.Body)

	body, err := iohelper.ReadBodyDefault(resp.Body)
	if err != nil {
		return httpclient.Classify(err)
	}

	doc, err := document.Parse(resp.Request.URL, resp.StatusCode, resp.Header.Get("Content-Type"), body)
	if err != nil {
		return err
	}

	s.current = doc
	s.forms = doc.Forms()
	s.working = nil
	s.history = append(s.history, Step{
		Method:     req.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Latency:    latency,
	})

	s.logger.Debug("session request",
		slog.String("method", req.Method),
		slog.String("url", resp.Request.URL.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", latency))
	return nil
}

func (s *Session) resolve(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.IsAbs() {
		return u, nil
	}
	if s.current == nil || s.current.URL == nil {
		return nil, fmt.Errorf("relative URL %q with no current page", rawURL)
	}
	return s.current.URL.ResolveReference(u), nil
}

// Document returns the current page, or nil before BeginAt.
func (s *Session) Document() *document.Document {
	return s.current
}

// Cookies returns the cookies the session would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	if s.client == nil || s.client.Jar == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.client.Jar.Cookies(u)
}

// History returns the requests made since the last BeginAt.
func (s *Session) History() []Step {
	out := make([]Step, len(s.history))
	copy(out, s.history)
	return out
}

// Close drops the cookie jar and the current document. The session can be
// restarted with BeginAt.
func (s *Session) Close() {
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
	s.client = nil
	s.current = nil
	s.forms = nil
	s.working = nil
	s.history = nil
}
