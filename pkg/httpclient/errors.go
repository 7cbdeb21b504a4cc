package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for HTTP client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrProxyConnect indicates the client failed to connect through
	// the configured proxy.
	ErrProxyConnect = errors.New("httpclient: proxy connection failed")

	// ErrDNS indicates a DNS resolution failure for the target host.
	ErrDNS = errors.New("httpclient: DNS resolution failed")

	// ErrTLS indicates a TLS handshake or certificate verification failure.
	ErrTLS = errors.New("httpclient: TLS handshake failed")

	// ErrTimeout indicates the request exceeded its deadline.
	ErrTimeout = errors.New("httpclient: request timed out")
)

// Classify wraps a transport error with the sentinel describing its cause.
// Errors that match no known cause are returned unchanged. The original
// error stays in the chain, so errors.Is works for both.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.As(err, &dnsErr):
		return fmt.Errorf("%w: %w", ErrDNS, err)
	case errors.As(err, &certErr), errors.As(err, &unknownAuth):
		return fmt.Errorf("%w: %w", ErrTLS, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case strings.Contains(err.Error(), "proxyconnect"), strings.Contains(err.Error(), "socks connect"):
		return fmt.Errorf("%w: %w", ErrProxyConnect, err)
	case strings.Contains(err.Error(), "tls: "), strings.Contains(err.Error(), "TLS handshake"):
		return fmt.Errorf("%w: %w", ErrTLS, err)
	}
	return err
}
