package model

import "time"

// Log entry types. Every recorded interval is one or the other.
const (
	LogTypeActive   = "active"
	LogTypeInactive = "inactive"
)

// LogEntry is one recorded active-or-inactive time span for a user.
// Entries are immutable once written; ordering within a user's log is
// append order, not timestamp order, and duplicates are tolerated.
type LogEntry struct {
	Type         string `json:"type"`
	Duration     int64  `json:"duration"`
	Timestamp    int64  `json:"timestamp"`
	EndTimestamp int64  `json:"endTimestamp"`
	Username     string `json:"username"`
}

// TimerState is the single live snapshot of a user's stopwatch.
// Last writer wins; there is no history.
type TimerState struct {
	Time                 int64 `json:"time"`
	LastUpdate           int64 `json:"lastUpdate"`
	WasPaused            bool  `json:"wasPaused"`
	WasRunning           bool  `json:"wasRunning"`
	IsActiveTrackingMode bool  `json:"isActiveTrackingMode"`
}

// DefaultTimerState returns the state served when nothing usable is stored.
func DefaultTimerState() TimerState {
	return TimerState{
		Time:                 0,
		LastUpdate:           time.Now().UnixMilli(),
		WasPaused:            true,
		WasRunning:           false,
		IsActiveTrackingMode: true,
	}
}

// PendingInactiveInterval marks an inactivity span that has started but not
// yet been closed, keyed by username in a single shared map document. At
// most one exists per user; a new start overwrites any prior one.
type PendingInactiveInterval struct {
	StartTime int64 `json:"startTime"`
	IsActive  bool  `json:"isActive"`
}

// NormalizeTimerState coerces a loosely-typed document into a valid
// TimerState. Fields that are missing or out of range fall back to
// defaults rather than being rejected; the store is permissive at the
// boundary and strict about what it persists.
func NormalizeTimerState(raw map[string]interface{}) TimerState {
	s := DefaultTimerState()
	if raw == nil {
		return s
	}
	if v, ok := asInt64(raw["time"]); ok && v >= 0 {
		s.Time = v
	}
	if v, ok := asInt64(raw["lastUpdate"]); ok && v > 0 {
		s.LastUpdate = v
	}
	if v, ok := raw["wasPaused"].(bool); ok {
		s.WasPaused = v
	}
	if v, ok := raw["wasRunning"].(bool); ok {
		s.WasRunning = v
	}
	if v, ok := raw["isActiveTrackingMode"].(bool); ok {
		s.IsActiveTrackingMode = v
	}
	return s
}

// asInt64 accepts the numeric shapes encoding/json can produce.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
