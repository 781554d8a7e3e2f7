package services

import "github.com/pkg/errors"

// Batch-fatal draw errors. A batch rejected with one of these wrote no records.
var (
	ErrInvalidDrawCount        = errors.New("draw count must be between 1 and 10")
	ErrMissingUser             = errors.New("caller identity is required")
	ErrActivityNotFound        = errors.New("activity not found")
	ErrActivityNotActive       = errors.New("activity is not active")
	ErrActivityOutOfTimeWindow = errors.New("activity is not within valid time range")
	ErrQuotaExceeded           = errors.New("draw count exceeds maximum allowed per user")
	ErrConcurrencyExceeded     = errors.New("too many concurrent draws, please try again later")
	ErrLockNotAcquired         = errors.New("lock not acquired")
)

// Management errors.
var (
	ErrInvalidActivity     = errors.New("invalid activity")
	ErrInvalidPrize        = errors.New("invalid prize")
	ErrProbabilityOverflow = errors.New("total prize probability cannot exceed 100%")
	ErrPrizeNotFound       = errors.New("prize not found")
	ErrImageStoreDisabled  = errors.New("image storage is not configured")
)
