// Package userstore maintains the de-duplicated, sorted set of known
// usernames, reconciled against the per-user directories that exist on
// disk.
package userstore

import (
	"encoding/json"
	"errors"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/config"
	"github.com/Basbat-net/Study-Enforcer/internal/filestore"
	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// Store is the user registry. The authoritative set is the union of the
// persisted explicit list and the usernames discovered by directory
// enumeration; discovery always upserts into the persisted list, so the
// registry is self-healing and idempotent.
type Store struct {
	files *filestore.Store
	cfg   *config.Config
	log   zerolog.Logger
}

// New constructs a user registry.
func New(files *filestore.Store, cfg *config.Config, log zerolog.Logger) *Store {
	return &Store{files: files, cfg: cfg, log: log}
}

// List returns the sorted union of persisted and discovered usernames,
// folding every discovered-but-unlisted name back into the persisted list.
func (s *Store) List() ([]string, error) {
	persisted, err := s.persistedUsers()
	if err != nil {
		return nil, err
	}
	discovered, err := s.discoverDirectories()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(persisted)+len(discovered))
	for _, u := range persisted {
		seen[u] = struct{}{}
	}
	for _, u := range discovered {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			if err := s.Add(u); err != nil {
				s.log.Error().Err(err).Str("username", u).Msg("failed to fold discovered user into list")
			}
		}
	}

	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// Add inserts username into the persisted list, keeping it sorted and
// de-duplicated. Idempotent.
func (s *Store) Add(username string) error {
	return s.updateList(func(users []string) ([]string, error) {
		for _, u := range users {
			if u == username {
				return nil, filestore.ErrNoChange
			}
		}
		users = append(users, username)
		sort.Strings(users)
		s.log.Info().Str("username", username).Msg("added user to persistent list")
		return users, nil
	})
}

// Init registers username and creates its storage: the user directory, an
// empty append log, and a default timer-state document.
func (s *Store) Init(username string) error {
	if err := s.Add(username); err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.UserDir(username), 0o755); err != nil {
		return err
	}
	if err := s.files.EnsureExists(s.cfg.LogsPath(username), ""); err != nil {
		return err
	}
	defaultState, err := json.MarshalIndent(model.DefaultTimerState(), "", "  ")
	if err != nil {
		return err
	}
	return s.files.EnsureExists(s.cfg.TimerStatePath(username), string(defaultState))
}

// Remove deletes username from the persisted list and removes its whole
// per-user storage subtree. The subtree removal happens inside the list's
// critical section so a racing Add cannot resurrect the user.
func (s *Store) Remove(username string) error {
	return s.updateList(func(users []string) ([]string, error) {
		if err := os.RemoveAll(s.cfg.UserDir(username)); err != nil {
			s.log.Error().Err(err).Str("username", username).Msg("failed to remove user directory")
		}
		kept := users[:0]
		for _, u := range users {
			if u != username {
				kept = append(kept, u)
			}
		}
		return kept, nil
	})
}

// updateList rewrites the persisted user list in one exclusive critical
// section so concurrent registry changes cannot lose each other's
// entries. A missing or unreadable list starts over empty.
func (s *Store) updateList(mutate func(users []string) ([]string, error)) error {
	var users []string
	return s.files.Update(s.cfg.UsersFile(), &users, func(readErr error) error {
		if readErr != nil {
			users = nil
		}
		next, err := mutate(users)
		if err != nil {
			return err
		}
		if next == nil {
			next = []string{}
		}
		users = next
		return nil
	})
}

func (s *Store) persistedUsers() ([]string, error) {
	var users []string
	err := s.files.ReadJSON(s.cfg.UsersFile(), &users)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrCorrupt) {
			return []string{}, nil
		}
		return nil, err
	}
	return users, nil
}

func (s *Store) discoverDirectories() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.UsersDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
