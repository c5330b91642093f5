package alerts

import "errors"

// Sentinel errors returned by the registry. Callers classify with
// errors.Is; wrapped variants carry the detail.
var (
	ErrInvalidInput     = errors.New("invalid alert input")
	ErrQuotaExceeded    = errors.New("user alert quota exceeded")
	ErrCapacityExceeded = errors.New("alert capacity exceeded")
	ErrNotFound         = errors.New("alert not found")
	ErrStorageFailure   = errors.New("alert storage failure")
)
