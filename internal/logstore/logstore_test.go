package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Basbat-net/Study-Enforcer/internal/filestore"
	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	policy := filestore.LockPolicy{
		Stale:      500 * time.Millisecond,
		Refresh:    50 * time.Millisecond,
		MinDelay:   5 * time.Millisecond,
		MaxDelay:   20 * time.Millisecond,
		Multiplier: 2,
		MaxRetries: 5,
	}
	files := filestore.New(policy, zerolog.Nop())
	return New(files, zerolog.Nop()), filepath.Join(t.TempDir(), "logs.json")
}

func entry(typ string, start, dur int64) model.LogEntry {
	return model.LogEntry{
		Type:         typ,
		Duration:     dur,
		Timestamp:    start,
		EndTimestamp: start + dur,
		Username:     "alice",
	}
}

func TestReadAll_MissingFileIsEmpty(t *testing.T) {
	s, path := newTestStore(t)

	entries, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestReadAll_EmptyFileIsEmpty(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	entries, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAppendThenReadAll_PreservesOrder(t *testing.T) {
	s, path := newTestStore(t)

	want := []model.LogEntry{
		entry(model.LogTypeActive, 1000, 500),
		entry(model.LogTypeInactive, 1500, 200),
		entry(model.LogTypeActive, 1700, 900),
	}
	for _, e := range want {
		require.NoError(t, s.Append(path, e))
	}

	got, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestAppend_DoesNotRewriteExistingContent(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Append(path, entry(model.LogTypeActive, 1000, 500)))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, s.Append(path, entry(model.LogTypeInactive, 1500, 200)))
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(string(after), string(before)),
		"append must extend the file, not rewrite it")
}

func TestReadAll_SkipsMalformedBlockKeepsRest(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Append(path, entry(model.LogTypeActive, 1000, 500)))
	// A torn block, as left by a crash mid-append.
	require.NoError(t, os.WriteFile(path, append(mustRead(t, path), []byte("{\"type\": \"act\n\n")...), 0o644))
	require.NoError(t, s.Append(path, entry(model.LogTypeInactive, 1500, 200)))

	got, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, model.LogTypeActive, got[0].Type)
	require.Equal(t, model.LogTypeInactive, got[1].Type)
}

func TestReadAll_ResegmentsLegacyUnseparatedBlocks(t *testing.T) {
	s, path := newTestStore(t)

	// Two objects jammed together with no blank-line boundary.
	legacy := `{"type":"active","duration":500,"timestamp":1000,"endTimestamp":1500,"username":"alice"}{"type":"inactive","duration":200,"timestamp":1500,"endTimestamp":1700,"username":"alice"}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	got, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(500), got[0].Duration)
	require.Equal(t, int64(200), got[1].Duration)
}

func TestReadAll_IsIdempotent(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Append(path, entry(model.LogTypeActive, 1000, 500)))

	first, err := s.ReadAll(path)
	require.NoError(t, err)
	second, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestOverwrite_ReplacesAndRemainsAppendable(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Append(path, entry(model.LogTypeActive, 1, 1)))
	replacement := []model.LogEntry{
		entry(model.LogTypeInactive, 2000, 300),
	}
	require.NoError(t, s.Overwrite(path, replacement))

	// Appends after an overwrite must parse cleanly alongside it.
	require.NoError(t, s.Append(path, entry(model.LogTypeActive, 2300, 100)))

	got, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, replacement[0], got[0])
	require.Equal(t, int64(100), got[1].Duration)
}

func TestClear_RemovesFile(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Append(path, entry(model.LogTypeActive, 1, 1)))
	require.NoError(t, s.Clear(path))

	entries, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
