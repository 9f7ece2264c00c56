package client

import "github.com/Basbat-net/Study-Enforcer/internal/model"

// Re-exported domain types so SDK consumers do not import internal
// packages directly.

// LogEntry is one recorded active-or-inactive time span for a user.
type LogEntry = model.LogEntry

// TimerState is the single live snapshot of a user's stopwatch.
type TimerState = model.TimerState

// Log entry types.
const (
	LogTypeActive   = model.LogTypeActive
	LogTypeInactive = model.LogTypeInactive
)

// EndIntervalResult is the server's answer to an end-pending-interval
// call: the inactive entry it produced, if any, and whether a pending
// interval existed at all.
type EndIntervalResult struct {
	Success            bool      `json:"success"`
	InactiveLog        *LogEntry `json:"inactiveLog"`
	HadPendingInterval bool      `json:"hadPendingInterval"`
}
