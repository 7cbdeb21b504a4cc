package httpclient

import (
	"net/http"

	"golang.org/x/time/rate"
)

// middlewareTransport wraps a base RoundTripper to add request-level
// middleware: a fixed User-Agent, default headers and request pacing.
type middlewareTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   http.Header
	limiter   *rate.Limiter
}

// RoundTrip implements http.RoundTripper with middleware.
func (m *middlewareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	r := req.Clone(req.Context())
	if m.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", m.userAgent)
	}
	for key, vals := range m.headers {
		if r.Header.Get(key) != "" {
			continue
		}
		for _, v := range vals {
			r.Header.Add(key, v)
		}
	}

	return m.base.RoundTrip(r)
}

// wrapTransport applies the middleware described by cfg to base.
func wrapTransport(base http.RoundTripper, cfg Config) http.RoundTripper {
	m := &middlewareTransport{
		base:      base,
		userAgent: cfg.UserAgent,
		headers:   cfg.Headers,
	}
	switch {
	case cfg.Limiter != nil:
		m.limiter = cfg.Limiter
	case cfg.RateLimit > 0:
		m.limiter = NewLimiter(cfg.RateLimit)
	}
	return m
}

// NewLimiter returns a limiter allowing rps requests per second with a
// burst of one second's worth (at least one request). rps <= 0 returns nil.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
