package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/csrfprobe/pkg/defaults"
	"github.com/waftester/csrfprobe/pkg/duration"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "csrfprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func load(t *testing.T, args []string, env func(string) (string, bool)) (*Config, error) {
	t.Helper()
	return NewFlags("scan", io.Discard).Load(args, env)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := load(t, nil, noEnv)
	require.NoError(t, err)

	assert.Equal(t, defaults.ScanPath, cfg.Target.ScanPath)
	assert.Equal(t, defaults.LogoutPath, cfg.Target.LogoutPath)
	assert.Equal(t, defaults.TokenField, cfg.Target.TokenField)
	assert.Equal(t, defaults.ErrorSignature, cfg.Target.ErrorSignature)
	assert.Equal(t, "XXX", cfg.Target.TamperValue)
	assert.Equal(t, defaults.UsernameField, cfg.Login.UsernameField)
	assert.Equal(t, duration.HTTPProbing, cfg.HTTP.Timeout)
	assert.Equal(t, "console", cfg.Output.Format)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadLayers(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
target:
  base_url: http://file.test
  scan_path: /transfer
  token_field: authenticity_token
login:
  username: file-user
  password: file-pass
http:
  timeout: 20s
  headers:
    X-From: file
output:
  format: json
`)
	cfg, err := load(t,
		[]string{"-config", path, "-format", "junit", "-H", "X-Flag: yes", "-rate", "2.5"},
		envOf(map[string]string{EnvUsername: "env-user"}))
	require.NoError(t, err)

	assert.Equal(t, "http://file.test", cfg.Target.BaseURL)
	assert.Equal(t, "/transfer", cfg.Target.ScanPath)
	assert.Equal(t, "authenticity_token", cfg.Target.TokenField)
	assert.Equal(t, defaults.ErrorSignature, cfg.Target.ErrorSignature, "unset keys keep defaults")
	assert.Equal(t, "env-user", cfg.Login.Username, "env overrides file")
	assert.Equal(t, "file-pass", cfg.Login.Password)
	assert.Equal(t, 20*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "junit", cfg.Output.Format, "flags override file")
	assert.Equal(t, 2.5, cfg.HTTP.RateLimit)
	assert.Equal(t, map[string]string{"X-From": "file", "X-Flag": "yes"}, cfg.HTTP.Headers)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Parallel()

	cfg, err := load(t, []string{"-user", "flag-user"}, envOf(map[string]string{
		EnvUsername: "env-user",
		EnvPassword: "env-pass",
	}))
	require.NoError(t, err)
	assert.Equal(t, "flag-user", cfg.Login.Username)
	assert.Equal(t, "env-pass", cfg.Login.Password)
}

func TestPositionalBaseURL(t *testing.T) {
	t.Parallel()

	cfg, err := load(t, []string{"-v", "http://app.test"}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "http://app.test", cfg.Target.BaseURL)
	assert.True(t, cfg.Output.Verbose)

	cfg, err = load(t, []string{"-u", "http://flag.test", "http://positional.test"}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "http://flag.test", cfg.Target.BaseURL)

	_, err = load(t, []string{"http://a.test", "http://b.test"}, noEnv)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPositionalBaseURLBeforeFlags(t *testing.T) {
	t.Parallel()

	cfg, err := load(t, []string{"http://app.test", "-user", "alice", "-format", "json", "-silent"}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "http://app.test", cfg.Target.BaseURL)
	assert.Equal(t, "alice", cfg.Login.Username)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Output.Silent)

	cfg, err = load(t, []string{"-user", "alice", "http://app.test", "-v"}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "http://app.test", cfg.Target.BaseURL)
	assert.True(t, cfg.Output.Verbose)

	_, err = load(t, []string{"http://a.test", "-v", "http://b.test"}, noEnv)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err = load(t, []string{"-user", "alice", "--", "-odd-url"}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "-odd-url", cfg.Target.BaseURL, "arguments after -- are never flags")
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	_, err := load(t, []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, noEnv)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = load(t, []string{"-config", writeConfig(t, "target:\n  base_ulr: typo\n")}, noEnv)
	assert.ErrorIs(t, err, ErrInvalidConfig, "unknown keys are rejected")

	_, err = load(t, []string{"-config", writeConfig(t, "target: [\n")}, noEnv)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := load(t, []string{"-config", writeConfig(t, "")}, noEnv)
	require.NoError(t, err, "an empty file is valid")
	assert.Equal(t, defaults.TokenField, cfg.Target.TokenField)
}

func TestBadHeaderFlag(t *testing.T) {
	t.Parallel()

	_, err := load(t, []string{"-H", "no-colon"}, noEnv)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		c := Default()
		c.Target.BaseURL = "http://app.test"
		c.Login.Username = "alice"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no base url", func(c *Config) { c.Target.BaseURL = "" }, ErrMissingRequired},
		{"relative base url", func(c *Config) { c.Target.BaseURL = "/login" }, ErrInvalidConfig},
		{"ftp base url", func(c *Config) { c.Target.BaseURL = "ftp://app.test" }, ErrInvalidConfig},
		{"no username", func(c *Config) { c.Login.Username = "" }, ErrMissingRequired},
		{"no token field", func(c *Config) { c.Target.TokenField = "" }, ErrMissingRequired},
		{"no signature", func(c *Config) { c.Target.ErrorSignature = "" }, ErrMissingRequired},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, ErrInvalidConfig},
		{"negative rate", func(c *Config) { c.HTTP.RateLimit = -1 }, ErrInvalidConfig},
		{"unknown tls profile", func(c *Config) { c.HTTP.TLSProfile = "netscape" }, ErrInvalidConfig},
		{"bad proxy", func(c *Config) { c.HTTP.Proxy = "ftp://proxy:21" }, ErrInvalidConfig},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	c := Default()
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn, "error": slog.LevelError} {
		c.LogLevel = in
		got, err := c.SlogLevel()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestConversions(t *testing.T) {
	t.Parallel()

	c := Default()
	c.Target.BaseURL = "http://app.test"
	c.Target.TamperValue = "forged"
	c.Login.Username = "alice"
	c.HTTP.Headers["x-trace"] = "1"
	c.HTTP.TLSProfile = "chrome"

	tgt := c.ProbeTarget()
	assert.Equal(t, "http://app.test", tgt.BaseURL)
	assert.Equal(t, defaults.ScanPath, tgt.ScanURL)
	assert.Equal(t, "forged", tgt.TamperValue)

	creds := c.Credentials()
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, defaults.LoginButton, creds.LoginButton)

	hc := c.HTTPClient()
	assert.Equal(t, "1", hc.Headers.Get("X-Trace"))
	assert.Equal(t, "chrome", hc.TLSProfile)
	assert.Equal(t, defaults.MaxRedirects, hc.MaxRedirects)
}
