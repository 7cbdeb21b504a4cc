package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Every assertion passed
	ExitProbeFailed   = 1 // At least one assertion failed or errored
	ExitUserError     = 2 // Invalid arguments or configuration
	ExitNetworkError  = 3 // Target unreachable for the whole run
	ExitInternalError = 4 // Unexpected internal error
)
