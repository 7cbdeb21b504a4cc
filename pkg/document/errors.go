package document

import "errors"

// Sentinel errors for page structure mismatches.
// Callers should use errors.Is() to check for these.
var (
	// ErrElementNotFound indicates no element with the requested id exists
	// on the page.
	ErrElementNotFound = errors.New("document: element not found")

	// ErrNoForm indicates the page holds no form to act on.
	ErrNoForm = errors.New("document: no form on page")
)
