package model

import "errors"

var (
	// ErrNotFound is returned when a document does not exist on disk.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when a document cannot be parsed even after
	// the recovery heuristics have run. Callers substitute defaults.
	ErrCorrupt = errors.New("document corrupt")

	// ErrLockTimeout is returned when a file lock could not be acquired
	// within the retry budget. Nothing has been written.
	ErrLockTimeout = errors.New("lock acquisition timed out")
)
