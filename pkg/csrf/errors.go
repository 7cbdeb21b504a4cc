package csrf

import "errors"

var (
	// ErrInvalidTarget indicates the probe configuration cannot address
	// the target application.
	ErrInvalidTarget = errors.New("csrf: invalid target")

	// errPrecondition marks an assertion that cannot be evaluated because
	// the token field is absent from the scan page.
	errPrecondition = errors.New("csrf: precondition not met")
)
