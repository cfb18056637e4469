package core

// Error codes for sync failures.
const (
	// ErrCodeStoreUnavailable: the initial fetch failed. Terminal until the
	// session is re-activated from scratch.
	ErrCodeStoreUnavailable = "store_unavailable"
	// ErrCodeSubscription: a push stream reported an error. Non-terminal,
	// the stale cache stays visible.
	ErrCodeSubscription = "subscription_error"
	// ErrCodeWriteRejected: a mutation intent's remote write failed. Reported
	// per call, cached state is untouched.
	ErrCodeWriteRejected = "write_rejected"
	// ErrCodeInvalidInput: rejected locally, never reaches the remote store.
	ErrCodeInvalidInput = "invalid_input"
)

// CoreError wraps a code, a human-readable message and an optional cause.
type CoreError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Terminal reports whether the error blocks further sync until the session is
// re-activated. Only an initial-load failure is terminal; everything else is
// advisory while cached data remains usable.
func (e *CoreError) Terminal() bool {
	return e.Code == ErrCodeStoreUnavailable
}

func coreError(code, msg string, cause error) *CoreError {
	return &CoreError{Code: code, Message: msg, Cause: cause}
}

// IsCode reports whether err is a *CoreError carrying the given code.
func IsCode(err error, code string) bool {
	ce, ok := err.(*CoreError)
	return ok && ce.Code == code
}
