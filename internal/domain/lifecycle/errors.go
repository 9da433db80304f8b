package lifecycle

import "errors"

// Domain errors for lifecycle transitions
var (
	ErrConflictingTransition = errors.New("conflicting transition")
	ErrAlreadyDecided        = errors.New("advertisement already decided")
	ErrInvalidState          = errors.New("invalid lifecycle state")
	ErrInvalidWindow         = errors.New("end date must be after start date")
	ErrMissingSession        = errors.New("payment session id is required")
	ErrInvalidScanResult     = errors.New("content-safety result must be CLEAN or FLAGGED")
)
