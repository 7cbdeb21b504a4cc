// Package config loads probe settings from defaults, an optional YAML
// file, the environment and command-line flags, in that order of
// precedence (later layers win).
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/waftester/csrfprobe/pkg/csrf"
	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/duration"
	"github.com/waftester/csrfprobe/pkg/httpclient"
	"github.com/waftester/csrfprobe/pkg/session"
)

// Environment variables read by Load.
const (
	EnvUsername = "CSRFPROBE_USERNAME"
	EnvPassword = "CSRFPROBE_PASSWORD"
)

// Config holds all probe configuration.
type Config struct {
	Target    TargetConfig    `yaml:"target"`
	Login     LoginConfig     `yaml:"login"`
	HTTP      HTTPConfig      `yaml:"http"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LogLevel  string          `yaml:"log_level"`
}

// TargetConfig addresses the application under test.
type TargetConfig struct {
	BaseURL        string `yaml:"base_url"`
	ScanPath       string `yaml:"scan_path"`   // absolute or relative to BaseURL
	LogoutPath     string `yaml:"logout_path"` // absolute or relative to BaseURL
	TokenField     string `yaml:"token_field"`
	ErrorSignature string `yaml:"error_signature"`
	TamperValue    string `yaml:"tamper_value"`
}

// LoginConfig holds credentials and the login form's control names.
type LoginConfig struct {
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	UsernameField string `yaml:"username_field"`
	PasswordField string `yaml:"password_field"`
	Button        string `yaml:"button"`
}

// HTTPConfig tunes the HTTP client of every session.
type HTTPConfig struct {
	Timeout    time.Duration     `yaml:"timeout"`
	SkipVerify bool              `yaml:"skip_verify"`
	Proxy      string            `yaml:"proxy"`
	UserAgent  string            `yaml:"user_agent"`
	Headers    map[string]string `yaml:"headers"`
	RateLimit  float64           `yaml:"rate_limit"`
	TLSProfile string            `yaml:"tls_profile"`
}

// OutputConfig selects the report writer.
type OutputConfig struct {
	Format   string `yaml:"format"`
	File     string `yaml:"file"`
	Template string `yaml:"template"`
	Verbose  bool   `yaml:"verbose"`
	Silent   bool   `yaml:"silent"`
	NoColor  bool   `yaml:"no_color"`
}

// TelemetryConfig enables trace and metric export.
type TelemetryConfig struct {
	OTelEndpoint string `yaml:"otel_endpoint"`
	OTelInsecure bool   `yaml:"otel_insecure"`
	PushGateway  string `yaml:"pushgateway"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			ScanPath:       defaults.ScanPath,
			LogoutPath:     defaults.LogoutPath,
			TokenField:     defaults.TokenField,
			ErrorSignature: defaults.ErrorSignature,
			TamperValue:    defaults.TamperValue,
		},
		Login: LoginConfig{
			UsernameField: defaults.UsernameField,
			PasswordField: defaults.PasswordField,
			Button:        defaults.LoginButton,
		},
		HTTP: HTTPConfig{
			Timeout:   duration.HTTPProbing,
			UserAgent: defaults.UserAgent,
			Headers:   map[string]string{},
			RateLimit: defaults.RateUnlimited,
		},
		Output: OutputConfig{
			Format: "console",
		},
		LogLevel: "warn",
	}
}

// LoadFile overlays the YAML document at path onto c. Unknown keys are
// rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

// ApplyEnv overlays credentials from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvUsername); ok {
		c.Login.Username = v
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Login.Password = v
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("%w: target base URL (-u)", ErrMissingRequired)
	}
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base URL %q must be an absolute http(s) URL", ErrInvalidConfig, c.Target.BaseURL)
	}
	if c.Login.Username == "" {
		return fmt.Errorf("%w: username (-user or %s)", ErrMissingRequired, EnvUsername)
	}
	if c.Target.TokenField == "" {
		return fmt.Errorf("%w: token field (-token-field)", ErrMissingRequired)
	}
	if c.Target.ErrorSignature == "" {
		return fmt.Errorf("%w: error signature (-signature)", ErrMissingRequired)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.HTTP.Timeout)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative, got %g", ErrInvalidConfig, c.HTTP.RateLimit)
	}
	if c.HTTP.TLSProfile != "" {
		if _, err := httpclient.ProfileByName(c.HTTP.TLSProfile); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.HTTP.Proxy != "" {
		if _, err := httpclient.ParseProxyURL(c.HTTP.Proxy); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q (use debug, info, warn or error)", ErrInvalidConfig, c.LogLevel)
	}
	return lvl, nil
}

// ProbeTarget converts the target section for the csrf package.
func (c *Config) ProbeTarget() csrf.Target {
	return csrf.Target{
		BaseURL:        c.Target.BaseURL,
		ScanURL:        c.Target.ScanPath,
		LogoutURL:      c.Target.LogoutPath,
		TokenField:     c.Target.TokenField,
		ErrorSignature: c.Target.ErrorSignature,
		TamperValue:    c.Target.TamperValue,
	}
}

// Credentials converts the login section for the session package.
func (c *Config) Credentials() session.Credentials {
	return session.Credentials{
		Username:      c.Login.Username,
		Password:      c.Login.Password,
		UsernameField: c.Login.UsernameField,
		PasswordField: c.Login.PasswordField,
		LoginButton:   c.Login.Button,
	}
}

// HTTPClient converts the HTTP section for the httpclient package.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.HTTP.Timeout
	hc.InsecureSkipVerify = c.HTTP.SkipVerify
	hc.Proxy = c.HTTP.Proxy
	hc.UserAgent = c.HTTP.UserAgent
	hc.RateLimit = c.HTTP.RateLimit
	hc.TLSProfile = c.HTTP.TLSProfile
	if len(c.HTTP.Headers) > 0 {
		hc.Headers = make(http.Header, len(c.HTTP.Headers))
		for k, v := range c.HTTP.Headers {
			hc.Headers.Set(k, v)
		}
	}
	return hc
}

// headerFlag collects repeated -H "Name: Value" flags.
type headerFlag map[string]string

func (h headerFlag) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (h headerFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("header %q must be \"Name: Value\"", s)
	}
	h[name] = strings.TrimSpace(value)
	return nil
}

// binding copies one flag's value from the flag-backed Config onto the
// layered one.
type binding func(dst, src *Config)

// Flags parses command-line arguments on top of a layered Config.
type Flags struct {
	fs         *flag.FlagSet
	src        *Config
	bindings   map[string]binding
	configPath string
}

// NewFlags registers every probe flag on a new FlagSet named name.
func NewFlags(name string, output io.Writer) *Flags {
	f := &Flags{
		fs:       flag.NewFlagSet(name, flag.ContinueOnError),
		src:      Default(),
		bindings: make(map[string]binding),
	}
	f.fs.SetOutput(output)
	d := f.src

	f.fs.StringVar(&f.configPath, "config", "", "YAML configuration file")

	// === TARGET ===
	f.str(&d.Target.BaseURL, "u", "Target base URL (login page)", func(dst, src *Config) { dst.Target.BaseURL = src.Target.BaseURL })
	f.str(&d.Target.ScanPath, "scan", "Page holding the protected form", func(dst, src *Config) { dst.Target.ScanPath = src.Target.ScanPath })
	f.str(&d.Target.LogoutPath, "logout", "Logout page", func(dst, src *Config) { dst.Target.LogoutPath = src.Target.LogoutPath })
	f.str(&d.Target.TokenField, "token-field", "Id of the hidden anti-CSRF field", func(dst, src *Config) { dst.Target.TokenField = src.Target.TokenField })
	f.str(&d.Target.ErrorSignature, "signature", "Text the server emits on token mismatch (case-sensitive)", func(dst, src *Config) { dst.Target.ErrorSignature = src.Target.ErrorSignature })
	f.str(&d.Target.TamperValue, "tamper", "Replacement token for the tampered submission", func(dst, src *Config) { dst.Target.TamperValue = src.Target.TamperValue })

	// === LOGIN ===
	f.str(&d.Login.Username, "user", "Login username (or "+EnvUsername+")", func(dst, src *Config) { dst.Login.Username = src.Login.Username })
	f.str(&d.Login.Password, "pass", "Login password (prefer "+EnvPassword+")", func(dst, src *Config) { dst.Login.Password = src.Login.Password })
	f.str(&d.Login.UsernameField, "user-field", "Username control name", func(dst, src *Config) { dst.Login.UsernameField = src.Login.UsernameField })
	f.str(&d.Login.PasswordField, "pass-field", "Password control name", func(dst, src *Config) { dst.Login.PasswordField = src.Login.PasswordField })
	f.str(&d.Login.Button, "login-button", "Login submit button name", func(dst, src *Config) { dst.Login.Button = src.Login.Button })

	// === NETWORK ===
	f.fs.DurationVar(&d.HTTP.Timeout, "timeout", d.HTTP.Timeout, "Per-request timeout")
	f.bindings["timeout"] = func(dst, src *Config) { dst.HTTP.Timeout = src.HTTP.Timeout }
	f.fs.BoolVar(&d.HTTP.SkipVerify, "k", false, "Skip TLS verification")
	f.bindings["k"] = func(dst, src *Config) { dst.HTTP.SkipVerify = src.HTTP.SkipVerify }
	f.str(&d.HTTP.Proxy, "proxy", "HTTP/SOCKS5 proxy URL", func(dst, src *Config) { dst.HTTP.Proxy = src.HTTP.Proxy })
	f.str(&d.HTTP.UserAgent, "ua", "User-Agent header", func(dst, src *Config) { dst.HTTP.UserAgent = src.HTTP.UserAgent })
	f.fs.Var(headerFlag(d.HTTP.Headers), "H", "Extra request header \"Name: Value\" (repeatable)")
	f.bindings["H"] = func(dst, src *Config) {
		if dst.HTTP.Headers == nil {
			dst.HTTP.Headers = make(map[string]string)
		}
		for k, v := range src.HTTP.Headers {
			dst.HTTP.Headers[k] = v
		}
	}
	f.fs.Float64Var(&d.HTTP.RateLimit, "rate", d.HTTP.RateLimit, "Max requests per second (0 = unlimited)")
	f.bindings["rate"] = func(dst, src *Config) { dst.HTTP.RateLimit = src.HTTP.RateLimit }
	f.str(&d.HTTP.TLSProfile, "tls-profile", "uTLS fingerprint: "+strings.Join(httpclient.ProfileNames(), ", "), func(dst, src *Config) { dst.HTTP.TLSProfile = src.HTTP.TLSProfile })

	// === OUTPUT ===
	f.str(&d.Output.Format, "format", "Output format: console, json, junit, md, template, pdf", func(dst, src *Config) { dst.Output.Format = src.Output.Format })
	f.str(&d.Output.File, "o", "Output file (default stdout)", func(dst, src *Config) { dst.Output.File = src.Output.File })
	f.str(&d.Output.Template, "template", "Template file, or built-in name (csv, text-summary)", func(dst, src *Config) { dst.Output.Template = src.Output.Template })
	f.boolean(&d.Output.Verbose, "v", "Verbose console output", func(dst, src *Config) { dst.Output.Verbose = src.Output.Verbose })
	f.boolean(&d.Output.Silent, "silent", "Suppress banner and progress", func(dst, src *Config) { dst.Output.Silent = src.Output.Silent })
	f.boolean(&d.Output.NoColor, "no-color", "Disable colored output", func(dst, src *Config) { dst.Output.NoColor = src.Output.NoColor })
	f.str(&d.LogLevel, "log-level", "Log level: debug, info, warn, error", func(dst, src *Config) { dst.LogLevel = src.LogLevel })

	// === TELEMETRY ===
	f.str(&d.Telemetry.OTelEndpoint, "otel-endpoint", "OTLP gRPC endpoint for traces", func(dst, src *Config) { dst.Telemetry.OTelEndpoint = src.Telemetry.OTelEndpoint })
	f.boolean(&d.Telemetry.OTelInsecure, "otel-insecure", "Plaintext connection to the OTLP endpoint", func(dst, src *Config) { dst.Telemetry.OTelInsecure = src.Telemetry.OTelInsecure })
	f.str(&d.Telemetry.PushGateway, "pushgateway", "Prometheus Pushgateway URL", func(dst, src *Config) { dst.Telemetry.PushGateway = src.Telemetry.PushGateway })

	return f
}

func (f *Flags) str(p *string, name, usage string, b binding) {
	f.fs.StringVar(p, name, *p, usage)
	f.bindings[name] = b
}

func (f *Flags) boolean(p *bool, name, usage string, b binding) {
	f.fs.BoolVar(p, name, *p, usage)
	f.bindings[name] = b
}

// FlagSet exposes the underlying FlagSet, e.g. for PrintDefaults.
func (f *Flags) FlagSet() *flag.FlagSet {
	return f.fs
}

// Load parses args and builds the layered configuration. A single
// positional argument, before, between or after the flags, is taken as
// the base URL when -u is not given. The result is not validated.
func (f *Flags) Load(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	positional, err := f.parse(args)
	if err != nil {
		return nil, err
	}
	if len(positional) > 1 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", ErrInvalidConfig, positional[1:])
	}

	cfg := Default()
	if f.configPath != "" {
		if err := cfg.LoadFile(f.configPath); err != nil {
			return nil, err
		}
	}
	if lookupEnv != nil {
		cfg.ApplyEnv(lookupEnv)
	}

	f.fs.Visit(func(fl *flag.Flag) {
		if b, ok := f.bindings[fl.Name]; ok {
			b(cfg, f.src)
		}
	})
	if cfg.Target.BaseURL == "" && len(positional) == 1 {
		cfg.Target.BaseURL = positional[0]
	}
	return cfg, nil
}

// parse runs the FlagSet over args, resuming after each positional
// argument so flags may follow it. Everything after "--" is positional.
func (f *Flags) parse(args []string) ([]string, error) {
	var positional []string
	rest := args
	for {
		if err := f.fs.Parse(rest); err != nil {
			return nil, err
		}
		if f.fs.NArg() == 0 {
			return positional, nil
		}
		if consumed := len(rest) - f.fs.NArg(); consumed > 0 && rest[consumed-1] == "--" {
			return append(positional, f.fs.Args()...), nil
		}
		positional = append(positional, f.fs.Arg(0))
		rest = f.fs.Args()[1:]
	}
}
