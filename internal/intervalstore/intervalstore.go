// Package intervalstore tracks pending inactivity intervals: spans that
// began while the client process might disappear (page hidden, tab killed)
// and must be resolved into a dated inactive log entry the next time the
// same user's session resumes.
package intervalstore

import (
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/config"
	"github.com/Basbat-net/Study-Enforcer/internal/filestore"
	"github.com/Basbat-net/Study-Enforcer/internal/logstore"
	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// Store keeps all pending intervals in one shared map document keyed by
// username. At most one pending interval exists per user; Start simply
// overwrites any prior one, a deliberate lost-update simplification.
type Store struct {
	files *filestore.Store
	logs  *logstore.Store
	cfg   *config.Config
	log   zerolog.Logger
}

// New constructs an interval store.
func New(files *filestore.Store, logs *logstore.Store, cfg *config.Config, log zerolog.Logger) *Store {
	return &Store{files: files, logs: logs, cfg: cfg, log: log}
}

// Start creates or replaces the user's pending interval at timestamp.
func (s *Store) Start(username string, timestamp int64) error {
	return s.update(func(intervals map[string]model.PendingInactiveInterval) error {
		intervals[username] = model.PendingInactiveInterval{
			StartTime: timestamp,
			IsActive:  true,
		}
		return nil
	})
}

// End resolves the user's pending interval against currentTime. When one
// exists and its duration is positive, the span is appended to the user's
// log as an inactive entry; the pending record is deleted either way.
// Returns the resulting entry (nil when none was produced) and whether a
// pending interval existed at all.
func (s *Store) End(username string, currentTime int64) (*model.LogEntry, bool, error) {
	var (
		entry      *model.LogEntry
		hadPending bool
	)
	err := s.update(func(intervals map[string]model.PendingInactiveInterval) error {
		pending, ok := intervals[username]
		if !ok || !pending.IsActive {
			return filestore.ErrNoChange
		}
		hadPending = true

		if duration := currentTime - pending.StartTime; duration > 0 {
			entry = &model.LogEntry{
				Type:         model.LogTypeInactive,
				Duration:     duration,
				Timestamp:    pending.StartTime,
				EndTimestamp: currentTime,
				Username:     username,
			}
			// Direct store call, not HTTP: the resolver runs server-side.
			if err := s.logs.Append(s.cfg.LogsPath(username), *entry); err != nil {
				entry = nil
				return err
			}
		}

		delete(intervals, username)
		return nil
	})
	return entry, hadPending, err
}

// update rewrites the shared interval map in one exclusive critical
// section so concurrent requests for different users cannot lose each
// other's pending intervals. A missing or unreadable document starts
// over from an empty map.
func (s *Store) update(mutate func(map[string]model.PendingInactiveInterval) error) error {
	intervals := map[string]model.PendingInactiveInterval{}
	return s.files.Update(s.cfg.IntervalsFile(), &intervals, func(readErr error) error {
		if readErr != nil || intervals == nil {
			intervals = map[string]model.PendingInactiveInterval{}
		}
		return mutate(intervals)
	})
}
