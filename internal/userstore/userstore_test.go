package userstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Basbat-net/Study-Enforcer/internal/config"
	"github.com/Basbat-net/Study-Enforcer/internal/filestore"
)

func newTestStore(t *testing.T) (*Store, *config.Config) {
	t.Helper()
	cfg := config.NewForTesting(t.TempDir())
	policy := filestore.LockPolicy{
		Stale:      cfg.LockStale(),
		Refresh:    cfg.LockRefresh(),
		MinDelay:   cfg.LockMinDelay(),
		MaxDelay:   cfg.LockMaxDelay(),
		Multiplier: float64(cfg.LockBackoffFactor),
		MaxRetries: uint64(cfg.LockRetries),
	}
	files := filestore.New(policy, zerolog.Nop())
	return New(files, cfg, zerolog.Nop()), cfg
}

func TestList_EmptyStateIsEmptyList(t *testing.T) {
	s, _ := newTestStore(t)

	users, err := s.List()
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestAdd_IsIdempotentAndSorted(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add("charlie"))
	require.NoError(t, s.Add("alice"))
	require.NoError(t, s.Add("charlie"))
	require.NoError(t, s.Add("bob"))

	users, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "charlie"}, users)
}

func TestList_DiscoversDirectoriesAndHealsList(t *testing.T) {
	s, cfg := newTestStore(t)

	require.NoError(t, s.Add("alice"))
	// A user directory created out of band, unknown to the persisted list.
	require.NoError(t, os.MkdirAll(cfg.UserDir("mallory"), 0o755))

	users, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "mallory"}, users)

	// The discovered name must have been folded into the persisted file.
	data, err := os.ReadFile(cfg.UsersFile())
	require.NoError(t, err)
	var persisted []string
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Contains(t, persisted, "mallory")
}

func TestList_CorruptListFallsBackToDiscovery(t *testing.T) {
	s, cfg := newTestStore(t)

	require.NoError(t, os.MkdirAll(cfg.UserDir("alice"), 0o755))
	require.NoError(t, os.WriteFile(cfg.UsersFile(), []byte("[[[ not json"), 0o644))

	users, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, users)
}

func TestAdd_ConcurrentAddsKeepEveryName(t *testing.T) {
	cfg := config.NewForTesting(t.TempDir())
	policy := filestore.LockPolicy{
		Stale:      5 * time.Second,
		Refresh:    200 * time.Millisecond,
		MinDelay:   2 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Multiplier: 2,
		MaxRetries: 100,
	}
	s := New(filestore.New(policy, zerolog.Nop()), cfg, zerolog.Nop())

	const n = 12
	gate := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, n)
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("user-%02d", i)
		want = append(want, name)
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			<-gate
			errs[i] = s.Add(name)
		}(i, name)
	}
	close(gate)
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "add for user-%02d", i)
	}

	users, err := s.List()
	require.NoError(t, err)
	require.Equal(t, want, users)
}

func TestRemove_RacingAddKeepsRegistryConsistent(t *testing.T) {
	cfg := config.NewForTesting(t.TempDir())
	policy := filestore.LockPolicy{
		Stale:      5 * time.Second,
		Refresh:    200 * time.Millisecond,
		MinDelay:   2 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Multiplier: 2,
		MaxRetries: 100,
	}
	s := New(filestore.New(policy, zerolog.Nop()), cfg, zerolog.Nop())

	require.NoError(t, s.Add("doomed"))

	gate := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-gate
		errs[0] = s.Remove("doomed")
	}()
	go func() {
		defer wg.Done()
		<-gate
		errs[1] = s.Add("fresh")
	}()
	close(gate)
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Whatever the interleaving, the add survives and the remove sticks.
	users, err := s.List()
	require.NoError(t, err)
	require.Contains(t, users, "fresh")
	require.NotContains(t, users, "doomed")
}

func TestInit_CreatesUserStorage(t *testing.T) {
	s, cfg := newTestStore(t)

	require.NoError(t, s.Init("alice"))

	info, err := os.Stat(cfg.UserDir("alice"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	_, err = os.Stat(cfg.LogsPath("alice"))
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.TimerStatePath("alice"))
	require.NoError(t, err)
	var state map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &state))
	require.Equal(t, float64(0), state["time"])
	require.Equal(t, true, state["wasPaused"])
}

func TestInit_IsIdempotent(t *testing.T) {
	s, cfg := newTestStore(t)

	require.NoError(t, s.Init("alice"))
	require.NoError(t, os.WriteFile(cfg.LogsPath("alice"), []byte("existing"), 0o644))
	require.NoError(t, s.Init("alice"))

	// A second init must not clobber existing data.
	data, err := os.ReadFile(cfg.LogsPath("alice"))
	require.NoError(t, err)
	require.Equal(t, "existing", string(data))
}

func TestRemove_DeletesListEntryAndStorage(t *testing.T) {
	s, cfg := newTestStore(t)

	require.NoError(t, s.Init("alice"))
	require.NoError(t, s.Init("bob"))
	require.NoError(t, s.Remove("alice"))

	users, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, users)

	_, err = os.Stat(cfg.UserDir("alice"))
	require.True(t, os.IsNotExist(err))
}

func TestRemove_UnknownUserIsNoop(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add("alice"))
	require.NoError(t, s.Remove("ghost"))

	users, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, users)
}
