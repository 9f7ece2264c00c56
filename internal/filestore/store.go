// Package filestore is the durable state primitive: a lock-protected JSON
// document store with atomic writes, backup/restore, and corruption
// recovery. It owns the on-disk representation exclusively; higher layers
// (log store, timer store, user registry, interval table) never touch the
// files directly.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// ErrNoChange can be returned by an Update mutate func to signal that the
// document was left untouched; the rewrite is skipped.
var ErrNoChange = errors.New("filestore: document unchanged")

// Store reads and writes JSON documents under the file-lock discipline:
// shared locks for reads, exclusive locks for writes and deletes.
type Store struct {
	locker *Locker
	log    zerolog.Logger
}

// New constructs a Store with the given lock policy.
func New(policy LockPolicy, log zerolog.Logger) *Store {
	return &Store{
		locker: NewLocker(policy, log),
		log:    log,
	}
}

// Locker exposes the lock primitive for stores that need a raw critical
// section (the append-log store appends without rewriting).
func (s *Store) Locker() *Locker { return s.locker }

// EnsureExists creates path with defaultContent when it does not exist,
// creating parent directories as needed. Existing files are left alone.
// The existence check and the write happen under the exclusive lock, and
// the default content lands via tmp+rename, so a concurrent WriteJSON can
// never be clobbered by defaults.
func (s *Store) EnsureExists(path, defaultContent string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	release, err := s.locker.AcquireExclusive(path)
	if err != nil {
		return err
	}
	defer release()

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	s.log.Debug().Str("path", path).Msg("creating file")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(defaultContent), 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// ReadJSON decodes the document at path into v under a shared lock.
// Missing files return model.ErrNotFound. A file that fails to parse is
// run through the recovery heuristics; if those also fail the read
// returns model.ErrCorrupt so callers can substitute defaults.
func (s *Store) ReadJSON(path string, v interface{}) error {
	release, err := s.locker.AcquireShared(path)
	if err != nil {
		return err
	}
	defer release()

	return s.readInto(path, v)
}

// readInto is the lockless read path shared by ReadJSON and Update; the
// caller must already hold a lock on path.
func (s *Store) readInto(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ErrNotFound
		}
		return err
	}

	if err := json.Unmarshal(raw, v); err == nil {
		return nil
	}

	recovered, ok := recoverJSON(raw)
	if !ok {
		s.log.Error().Str("path", path).Msg("document unreadable after recovery heuristics")
		return fmt.Errorf("%w: %s", model.ErrCorrupt, path)
	}
	corruptionRecoveriesTotal.Inc()
	s.log.Warn().Str("path", path).Msg("document recovered from corruption")
	return json.Unmarshal(recovered, v)
}

// WriteJSON atomically replaces the document at path with v under an
// exclusive lock. The previous content is copied to a .backup sibling
// first (best effort); the new content lands in a .tmp sibling and is
// renamed into place, so a concurrent reader observes either the old or
// the new document, never a partial one. If the write fails after the
// backup was taken, the backup is copied back before the error is
// returned.
func (s *Store) WriteJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	release, err := s.locker.AcquireExclusive(path)
	if err != nil {
		return err
	}
	defer release()

	return s.replaceDocument(path, v)
}

// Update rewrites the document at path through a single exclusive critical
// section: the read, the caller's mutation, and the atomic rewrite all
// happen under one lock, so concurrent updates of the same document can
// never lose each other's changes. The document is decoded into v; mutate
// then edits v in place. readErr reports the read outcome so callers can
// fall back to defaults on model.ErrNotFound or model.ErrCorrupt (any
// other read error aborts before mutate runs). Returning ErrNoChange from
// mutate skips the rewrite.
func (s *Store) Update(path string, v interface{}, mutate func(readErr error) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	release, err := s.locker.AcquireExclusive(path)
	if err != nil {
		return err
	}
	defer release()

	readErr := s.readInto(path, v)
	if readErr != nil && !errors.Is(readErr, model.ErrNotFound) && !errors.Is(readErr, model.ErrCorrupt) {
		return readErr
	}
	if err := mutate(readErr); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	return s.replaceDocument(path, v)
}

// replaceDocument is the backup-then-atomic-write path shared by WriteJSON
// and Update; the caller must already hold the exclusive lock on path.
func (s *Store) replaceDocument(path string, v interface{}) error {
	backupPath := path + ".backup"
	backupTaken := false
	if err := copyFile(path, backupPath); err == nil {
		backupTaken = true
	} else if !os.IsNotExist(err) {
		s.log.Error().Err(err).Str("path", path).Msg("failed to create backup")
	}

	if err := s.writeAtomic(path, v); err != nil {
		if backupTaken {
			if restoreErr := copyFile(backupPath, path); restoreErr != nil {
				s.log.Error().Err(restoreErr).Str("path", path).Msg("failed to restore from backup")
			} else {
				backupRestoresTotal.Inc()
			}
		}
		return err
	}
	return nil
}

// Delete removes the document at path under an exclusive lock, taking a
// backup snapshot first so an accidental delete is recoverable by an
// operator. A missing file is not an error.
func (s *Store) Delete(path string) error {
	release, err := s.locker.AcquireExclusive(path)
	if err != nil {
		return err
	}
	defer release()

	if err := copyFile(path, path+".backup"); err != nil && !os.IsNotExist(err) {
		s.log.Error().Err(err).Str("path", path).Msg("failed to create backup before delete")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// writeAtomic marshals v, validates the result, writes it to a temp
// sibling, and renames it onto path.
func (s *Store) writeAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: refusing to write malformed document to %s", model.ErrCorrupt, path)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// copyFile copies src to dst, returning the os.IsNotExist error unchanged
// when src is missing so callers can distinguish that case.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}
