// Package logstore persists a user's ordered sequence of activity records.
// Entries are serialized individually (pretty-printed) and separated by a
// blank line, so appending one entry never rewrites existing content and
// one malformed block never invalidates the rest of the file.
package logstore

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/filestore"
	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

const blockSeparator = "\n\n"

// Store reads and writes per-user append logs on top of the locked file
// store.
type Store struct {
	files *filestore.Store
	log   zerolog.Logger
}

// New constructs a log store.
func New(files *filestore.Store, log zerolog.Logger) *Store {
	return &Store{files: files, log: log}
}

// ReadAll returns every parseable entry in the file, in file order.
// A missing or empty file reads as an empty sequence, not an error.
func (s *Store) ReadAll(path string) ([]model.LogEntry, error) {
	raw, err := s.files.ReadRaw(path)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return []model.LogEntry{}, nil
		}
		return nil, err
	}

	entries := []model.LogEntry{}
	for _, block := range strings.Split(string(raw), blockSeparator) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		var e model.LogEntry
		if err := json.Unmarshal([]byte(block), &e); err == nil {
			entries = append(entries, e)
			continue
		}

		// Legacy files were appended without clean blank-line boundaries;
		// re-segment the block into balanced objects and parse each.
		recovered := 0
		for _, frag := range resegment(block) {
			var e model.LogEntry
			if err := json.Unmarshal([]byte(frag), &e); err != nil {
				s.log.Warn().Str("path", path).Msg("skipping unparseable log fragment")
				continue
			}
			entries = append(entries, e)
			recovered++
		}
		if recovered == 0 {
			s.log.Warn().Str("path", path).Msg("skipping unparseable log block")
		}
	}
	return entries, nil
}

// Append serializes entry and appends it with its separator. It never
// rewrites existing content.
func (s *Store) Append(path string, entry model.LogEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return s.files.AppendRaw(path, append(data, []byte(blockSeparator)...))
}

// Overwrite replaces the whole file with the given entries. This is the
// bulk-correction/migration path only; it goes through the locked store's
// backup-before-write discipline and must never be called from the
// steady-state per-entry append flow.
func (s *Store) Overwrite(path string, entries []model.LogEntry) error {
	var b strings.Builder
	for _, e := range entries {
		data, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return err
		}
		b.Write(data)
		b.WriteString(blockSeparator)
	}
	return s.files.WriteRaw(path, []byte(b.String()))
}

// Clear removes the log file (backed up first by the file store).
func (s *Store) Clear(path string) error {
	return s.files.Delete(path)
}

// resegment splits a block into balanced {...} substrings, ignoring braces
// inside string literals.
func resegment(block string) []string {
	var (
		frags    []string
		start    = -1
		depth    = 0
		inString = false
		escaped  = false
	)
	for i := 0; i < len(block); i++ {
		b := block[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					frags = append(frags, block[start:i+1])
					start = -1
				}
			}
		}
	}
	return frags
}
