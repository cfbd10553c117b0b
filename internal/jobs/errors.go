package jobs

import "errors"

var (
	// ErrConfigNotFound means the job referenced a config that no longer exists. Not retried.
	ErrConfigNotFound = errors.New("collector config not found")

	// ErrInvalidTimeRange means a manual window was unparseable, incomplete or not increasing.
	ErrInvalidTimeRange = errors.New("invalid time range")
)
