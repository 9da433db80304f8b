package ad

import "errors"

// Domain errors for Advertisement aggregate
var (
	ErrInvalidEnumValue     = errors.New("invalid enum value")
	ErrInvalidName          = errors.New("advertisement name cannot be empty")
	ErrInvalidOwner         = errors.New("owner id cannot be empty")
	ErrInvalidMediaRef      = errors.New("media reference cannot be empty")
	ErrInvalidPrice         = errors.New("price must be greater than zero")
	ErrInvalidStartDate     = errors.New("start date is required")
	ErrInvalidTargetURL     = errors.New("target url must be an absolute http(s) url")
	ErrAdNotFound           = errors.New("ad not found")
	ErrAdAlreadyExists      = errors.New("ad already exists")
	ErrAdArchived           = errors.New("ad is archived")
	ErrNotArchivable        = errors.New("ad cannot be archived yet")
	ErrNotOwner             = errors.New("caller does not own this ad")
	ErrInvalidModerator     = errors.New("moderator id cannot be empty")
	ErrReasonRequired       = errors.New("rejection reason cannot be empty")
	ErrAlreadyPaid          = errors.New("ad is already paid")
	ErrPaymentNotAllowed    = errors.New("ad no longer accepts payment")
	ErrOptimisticLockFailed = errors.New("optimistic lock failed - ad was modified by another process")
)
