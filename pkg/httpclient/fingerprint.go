package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// TLSProfile is a named uTLS ClientHello fingerprint with the User-Agent
// that browser would send alongside it.
type TLSProfile struct {
	Name        string
	UserAgent   string
	ClientHello utls.ClientHelloID
}

var tlsProfiles = map[string]*TLSProfile{
	"chrome": {
		Name:        "chrome",
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ClientHello: utls.HelloChrome_120,
	},
	"firefox": {
		Name:        "firefox",
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
		ClientHello: utls.HelloFirefox_120,
	},
	"safari": {
		Name:        "safari",
		UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 13_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15",
		ClientHello: utls.HelloSafari_16_0,
	},
	"edge": {
		Name:        "edge",
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/106.0.0.0 Safari/537.36 Edg/106.0.1370.52",
		ClientHello: utls.HelloEdge_106,
	},
	"ios": {
		Name:        "ios",
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
		ClientHello: utls.HelloIOS_14,
	},
	"randomized": {
		Name:        "randomized",
		ClientHello: utls.HelloRandomized,
	},
}

// ProfileNames lists the accepted -tls-profile values.
func ProfileNames() []string {
	names := make([]string, 0, len(tlsProfiles))
	for name := range tlsProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProfileByName looks up a TLS profile, case-insensitively.
func ProfileByName(name string) (*TLSProfile, error) {
	p, ok := tlsProfiles[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown TLS profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// fingerprintTransport dials TLS with a uTLS ClientHello. ALPN is pinned to
// http/1.1 because the wrapped http.Transport only speaks HTTP/1 over a
// custom TLS dialer.
type fingerprintTransport struct {
	profile *TLSProfile
	inner   *http.Transport
}

func newFingerprintTransport(profile *TLSProfile, dial DialFunc, skipVerify bool) *fingerprintTransport {
	ft := &fingerprintTransport{profile: profile}
	ft.inner = &http.Transport{
		DialContext: dial,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return ft.dialTLS(ctx, dial, network, addr, skipVerify)
		},
		MaxIdleConnsPerHost: 2,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: skipVerify},
	}
	return ft
}

// RoundTrip implements http.RoundTripper.
func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.profile.UserAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.profile.UserAgent)
	}
	return t.inner.RoundTrip(req)
}

func (t *fingerprintTransport) dialTLS(ctx context.Context, dial DialFunc, network, addr string, skipVerify bool) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	cfg := &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: skipVerify,
	}

	var uConn *utls.UConn
	if spec, specErr := utls.UTLSIdToSpec(t.profile.ClientHello); specErr == nil {
		pinHTTP1(&spec)
		uConn = utls.UClient(conn, cfg, utls.HelloCustom)
		if err := uConn.ApplyPreset(&spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: apply %s preset: %w", ErrTLS, t.profile.Name, err)
		}
	} else {
		cfg.NextProtos = []string{"http/1.1"}
		uConn = utls.UClient(conn, cfg, t.profile.ClientHello)
	}

	if err := uConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrTLS, err)
	}
	return uConn, nil
}

func pinHTTP1(spec *utls.ClientHelloSpec) {
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
}
