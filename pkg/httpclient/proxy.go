// Proxy support: HTTP CONNECT proxies go through http.Transport.Proxy,
// SOCKS5 proxies replace the transport dialer.
//
// Supported proxy schemes:
//   - http:// and https:// CONNECT proxies (e.g. an intercepting proxy)
//   - socks5:// SOCKS5 with local DNS resolution
//   - socks5h:// SOCKS5 with remote DNS resolution
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

var supportedProxySchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks5":  true,
	"socks5h": true,
}

// DialFunc matches http.Transport.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ProxyConfig holds parsed proxy configuration
type ProxyConfig struct {
	URL      *url.URL
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string
}

// ParseProxyURL validates and parses a proxy URL string.
// Returns nil, nil if proxyURL is empty (no proxy configured).
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	if proxyURL == "" {
		return nil, nil
	}

	if !strings.Contains(proxyURL, "://") {
		proxyURL = "http://" + proxyURL
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !supportedProxySchemes[scheme] {
		return nil, fmt.Errorf("unsupported proxy scheme '%s', supported: http, https, socks5, socks5h", scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("proxy URL missing host")
	}
	port := parsed.Port()
	if port == "" {
		switch scheme {
		case "http":
			port = "8080"
		case "https":
			port = "8443"
		default:
			port = "1080"
		}
	}

	cfg := &ProxyConfig{
		URL:    parsed,
		Scheme: scheme,
		Host:   host,
		Port:   port,
	}
	if parsed.User != nil {
		cfg.Username = parsed.User.Username()
		cfg.Password, _ = parsed.User.Password()
	}
	return cfg, nil
}

// IsSOCKS reports whether the proxy speaks SOCKS5.
func (p *ProxyConfig) IsSOCKS() bool {
	return p != nil && (p.Scheme == "socks5" || p.Scheme == "socks5h")
}

// Addr returns host:port of the proxy.
func (p *ProxyConfig) Addr() string {
	return net.JoinHostPort(p.Host, p.Port)
}

// Apply routes transport through the proxy. A nil receiver is a no-op.
func (p *ProxyConfig) Apply(transport *http.Transport, dialer *net.Dialer) error {
	if p == nil {
		return nil
	}
	if !p.IsSOCKS() {
		transport.Proxy = http.ProxyURL(p.URL)
		return nil
	}
	dial, err := p.DialContext(dialer)
	if err != nil {
		return err
	}
	transport.DialContext = dial
	return nil
}

// DialContext returns a dial function that tunnels through a SOCKS5 proxy,
// or dialer.DialContext when no proxy is configured. HTTP CONNECT proxies
// cannot provide a raw dialer and return an error.
func (p *ProxyConfig) DialContext(dialer *net.Dialer) (DialFunc, error) {
	if p == nil {
		return dialer.DialContext, nil
	}
	if !p.IsSOCKS() {
		return nil, fmt.Errorf("%w: %s proxy cannot be combined with a TLS profile", ErrProxyConnect, p.Scheme)
	}

	var auth *proxy.Auth
	if p.Username != "" {
		auth = &proxy.Auth{User: p.Username, Password: p.Password}
	}
	socks, err := proxy.SOCKS5("tcp", p.Addr(), auth, dialer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProxyConnect, err)
	}
	cd, ok := socks.(proxy.ContextDialer)
	if !ok {
		return func(_ context.Context, network, addr string) (net.Conn, error) {
			return socks.Dial(network, addr)
		}, nil
	}
	return cd.DialContext, nil
}
