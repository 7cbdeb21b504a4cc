package session

import "errors"

// Sentinel errors for session operations.
// Callers should use errors.Is() to check for these.
var (
	// ErrConnection indicates a page load failed at the transport level.
	ErrConnection = errors.New("session: connection failed")

	// ErrFieldNotFound indicates no form control with the requested name
	// or id exists on the current page.
	ErrFieldNotFound = errors.New("session: field not found")

	// ErrSubmission indicates a form submission failed at the transport
	// level.
	ErrSubmission = errors.New("session: submission failed")

	// ErrLoginFailed indicates the login form could not be completed or
	// the server rejected it.
	ErrLoginFailed = errors.New("session: login failed")

	// ErrNotStarted indicates an operation that needs a loaded page was
	// called before BeginAt.
	ErrNotStarted = errors.New("session: not started")
)

func isTransport(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrSubmission)
}
