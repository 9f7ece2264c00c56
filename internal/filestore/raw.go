package filestore

import (
	"os"
	"path/filepath"

	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// The raw variants serve the append-log format, which is a sequence of
// self-delimited JSON blocks rather than one document. They follow the
// same lock and backup discipline as the JSON methods so no other
// component ever touches the files directly.

// ReadRaw returns the file's bytes under a shared lock. Missing files
// return model.ErrNotFound.
func (s *Store) ReadRaw(path string) ([]byte, error) {
	release, err := s.locker.AcquireShared(path)
	if err != nil {
		return nil, err
	}
	defer release()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

// AppendRaw appends data to path under an exclusive lock without rewriting
// existing content, keeping the operation O(1) in file size. The file is
// created empty first when missing.
func (s *Store) AppendRaw(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	release, err := s.locker.AcquireExclusive(path)
	if err != nil {
		return err
	}
	defer release()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteRaw atomically replaces the file's content under an exclusive lock
// with the usual backup-then-tmp-then-rename discipline. This is the
// dangerous full-rewrite path; steady-state appends must use AppendRaw.
func (s *Store) WriteRaw(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	release, err := s.locker.AcquireExclusive(path)
	if err != nil {
		return err
	}
	defer release()

	backupPath := path + ".backup"
	backupTaken := false
	if err := copyFile(path, backupPath); err == nil {
		backupTaken = true
	} else if !os.IsNotExist(err) {
		s.log.Error().Err(err).Str("path", path).Msg("failed to create backup")
	}

	tmpPath := path + ".tmp"
	err = os.WriteFile(tmpPath, data, 0o644)
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil && backupTaken {
		if restoreErr := copyFile(backupPath, path); restoreErr != nil {
			s.log.Error().Err(restoreErr).Str("path", path).Msg("failed to restore from backup")
		} else {
			backupRestoresTotal.Inc()
		}
	}
	return err
}
