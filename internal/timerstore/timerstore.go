// Package timerstore persists one live TimerState document per user.
package timerstore

import (
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/config"
	"github.com/Basbat-net/Study-Enforcer/internal/filestore"
	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// Store is permissive at the boundary and strict about what it persists:
// every incoming document is normalized against the TimerState shape, and
// reads never fail; anything unusable becomes the default state.
type Store struct {
	files *filestore.Store
	cfg   *config.Config
	log   zerolog.Logger
}

// New constructs a timer state store.
func New(files *filestore.Store, cfg *config.Config, log zerolog.Logger) *Store {
	return &Store{files: files, cfg: cfg, log: log}
}

// Get returns the user's timer state, substituting the default state on
// any error. Availability over strict correctness.
func (s *Store) Get(username string) model.TimerState {
	path := s.cfg.TimerStatePath(username)

	var raw map[string]interface{}
	if err := s.files.ReadJSON(path, &raw); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("serving default timer state")
		return model.DefaultTimerState()
	}
	return model.NormalizeTimerState(raw)
}

// Set normalizes raw against the TimerState shape and persists it,
// returning what was actually stored.
func (s *Store) Set(username string, raw map[string]interface{}) (model.TimerState, error) {
	state := model.NormalizeTimerState(raw)
	if err := s.files.WriteJSON(s.cfg.TimerStatePath(username), state); err != nil {
		return model.TimerState{}, err
	}
	return state, nil
}

// Clear deletes the user's timer state. The file store snapshots a backup
// first so an accidental clear is recoverable by an operator.
func (s *Store) Clear(username string) error {
	return s.files.Delete(s.cfg.TimerStatePath(username))
}
