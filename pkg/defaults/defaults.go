// Package defaults provides canonical default values for csrfprobe.
//
// Usage:
//
//	req.Header.Set("Content-Type", defaults.ContentTypeForm)
//	tamper := defaults.TamperValue
//
// Prefer these constants over literals scattered through the probe code.
package defaults

import "fmt"

// Version is the current csrfprobe version
const Version = "1.2.0"

// ToolName is used for suite names, tracer names and metric prefixes
const ToolName = "csrfprobe"

// ============================================================================
// PROBE SETTINGS
// ============================================================================

const (
	// TamperValue replaces the anti-CSRF token in the tampered submission
	TamperValue = "XXX"

	// TokenField is the default id of the hidden field carrying the token
	TokenField = "csrfToken"

	// ErrorSignature is the default marker the server emits when token
	// validation fails
	ErrorSignature = "CSRFTokenValidationError"

	// ScanPath is the default page holding the form under test
	ScanPath = "/pageWithForm/"

	// LogoutPath is the default logout page
	LogoutPath = "/logout"

	// UsernameField, PasswordField and LoginButton name the login form controls
	UsernameField = "userName"
	PasswordField = "passWord"
	LoginButton   = "login"
)

// ============================================================================
// HTTP SETTINGS
// ============================================================================

const (
	// ContentTypeForm is application/x-www-form-urlencoded
	ContentTypeForm = "application/x-www-form-urlencoded"

	// ContentTypeHTML is text/html
	ContentTypeHTML = "text/html"

	// AcceptHTML is the Accept header sent on every navigation
	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// MaxRedirects caps redirect chains followed inside a session
	MaxRedirects = 10

	// RateUnlimited disables request pacing
	RateUnlimited = 0
)

// UserAgent is the default User-Agent for probe requests
var UserAgent = fmt.Sprintf("%s/%s", ToolName, Version)
