package repositories

import "errors"

var (
	// ErrNotFound is returned by lookups that must resolve to a row.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict means the caller's version no longer matches the stored one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrConfigExists means the owner already has a config for the platform.
	ErrConfigExists = errors.New("collector config already exists for platform")
)
