// Package httpclient builds the HTTP clients used by probe sessions.
// Every client carries its own cookie jar so that a session's cookies
// never outlive the session that received them.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/duration"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: 15s)
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool

	// Proxy is an http://, https://, socks5:// or socks5h:// proxy URL (optional)
	Proxy string

	// UserAgent overrides defaults.UserAgent
	UserAgent string

	// Headers are added to every request unless the request already sets them
	Headers http.Header

	// RateLimit caps requests per second; 0 disables pacing
	RateLimit float64

	// Limiter paces requests across every client built from this Config.
	// Nil builds a per-client limiter from RateLimit.
	Limiter *rate.Limiter

	// TLSProfile selects a uTLS ClientHello fingerprint ("" uses crypto/tls)
	TLSProfile string

	// MaxRedirects caps redirects followed per request (default: 10).
	// A negative value disables redirect following.
	MaxRedirects int
}

// DefaultConfig returns defaults suited to an authenticated form session.
func DefaultConfig() Config {
	return Config{
		Timeout:      duration.HTTPProbing,
		UserAgent:    defaults.UserAgent,
		MaxRedirects: defaults.MaxRedirects,
	}
}

// NewJar returns an empty cookie jar scoped with the public suffix list,
// so a cookie set for one registrable domain is never sent to another.
func NewJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// New creates a new HTTP client with the given configuration and a fresh
// cookie jar.
func New(cfg Config) (*http.Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = duration.HTTPProbing
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaults.MaxRedirects
	}

	base, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	jar, err := NewJar()
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: wrapTransport(base, cfg),
		Timeout:   cfg.Timeout,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if cfg.MaxRedirects < 0 {
				return http.ErrUseLastResponse
			}
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}, nil
}

// newTransport builds the base RoundTripper: a uTLS fingerprinting
// transport when a profile is set, otherwise a pooled http.Transport.
func newTransport(cfg Config) (http.RoundTripper, error) {
	proxyCfg, err := ParseProxyURL(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	if cfg.TLSProfile != "" {
		profile, err := ProfileByName(cfg.TLSProfile)
		if err != nil {
			return nil, err
		}
		dial, err := proxyCfg.DialContext(&net.Dialer{Timeout: duration.Dial, KeepAlive: duration.KeepAlive})
		if err != nil {
			return nil, err
		}
		return newFingerprintTransport(profile, dial, cfg.InsecureSkipVerify), nil
	}

	dialer := &net.Dialer{
		Timeout:   duration.Dial,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       duration.IdleConnTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   duration.TLSHandshake,
		DialContext:           dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if err := proxyCfg.Apply(transport, dialer); err != nil {
		return nil, err
	}

	return transport, nil
}
