package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// LockPolicy configures lock acquisition and staleness handling.
// Staleness breaking trades a rare correctness risk (a merely slow holder)
// for bounded blast radius after a crashed holder; the deployment target is
// a single writer process, so the trade is acceptable.
type LockPolicy struct {
	Stale      time.Duration // lock older than this may be broken
	Refresh    time.Duration // held exclusive locks are touched this often
	MinDelay   time.Duration // first retry delay
	MaxDelay   time.Duration // capped retry delay
	Multiplier float64       // exponential factor
	MaxRetries uint64        // attempts before ErrLockTimeout
}

// DefaultLockPolicy mirrors the production defaults: 30s staleness, 2s
// refresh, 10 retries from 100ms doubling up to 2.5s with jitter.
func DefaultLockPolicy() LockPolicy {
	return LockPolicy{
		Stale:      30 * time.Second,
		Refresh:    2 * time.Second,
		MinDelay:   100 * time.Millisecond,
		MaxDelay:   2500 * time.Millisecond,
		Multiplier: 2,
		MaxRetries: 10,
	}
}

// Locker serializes access to files using sentinel locks on disk, so mutual
// exclusion holds across process boundaries, not just goroutines.
//
// For a target path P, an exclusive holder owns the directory P.lock
// (created atomically with Mkdir) containing an owner token. Shared holders
// drop marker files into P.lock.shared/ and are admitted whenever no
// exclusive directory exists. Exclusive acquisition creates P.lock first,
// blocking new readers, then waits for existing shared markers to drain.
type Locker struct {
	policy LockPolicy
	log    zerolog.Logger
}

// NewLocker constructs a Locker with the given policy.
func NewLocker(policy LockPolicy, log zerolog.Logger) *Locker {
	if policy.Stale <= 0 {
		policy = DefaultLockPolicy()
	}
	return &Locker{policy: policy, log: log}
}

func exclusiveDir(path string) string { return path + ".lock" }
func sharedDir(path string) string    { return path + ".lock.shared" }

// newBackoff builds the retry schedule: exponential with randomized jitter,
// capped at MaxDelay, bounded by MaxRetries.
func (l *Locker) newBackoff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = l.policy.MinDelay
	exp.Multiplier = l.policy.Multiplier
	exp.MaxInterval = l.policy.MaxDelay
	exp.MaxElapsedTime = 0 // bounded by retry count, not wall clock
	exp.Reset()
	return backoff.WithMaxRetries(exp, l.policy.MaxRetries)
}

// AcquireExclusive takes the writer lock for path. The returned release
// function must be called exactly once.
func (l *Locker) AcquireExclusive(path string) (func(), error) {
	dir := exclusiveDir(path)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}

	// Phase 1: own the exclusive directory.
	err := backoff.Retry(func() error {
		if mkErr := os.Mkdir(dir, 0o755); mkErr == nil {
			return nil
		}
		l.breakIfStale(dir)
		return fmt.Errorf("exclusive lock held: %s", dir)
	}, l.newBackoff())
	if err != nil {
		lockTimeoutsTotal.Inc()
		return nil, fmt.Errorf("%w: %s", model.ErrLockTimeout, path)
	}

	token := uuid.New().String()
	ownerPath := filepath.Join(dir, "owner")
	if err := os.WriteFile(ownerPath, []byte(fmt.Sprintf("%s %d\n", token, os.Getpid())), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	// Phase 2: wait for in-flight readers to drain. New readers are already
	// blocked by the exclusive directory.
	err = backoff.Retry(func() error {
		if n := l.countSharedMarkers(path); n > 0 {
			return fmt.Errorf("%d shared holders still present", n)
		}
		return nil
	}, l.newBackoff())
	if err != nil {
		_ = os.RemoveAll(dir)
		lockTimeoutsTotal.Inc()
		return nil, fmt.Errorf("%w: readers did not drain for %s", model.ErrLockTimeout, path)
	}

	stopRefresh := l.startRefresh(dir, ownerPath)
	var once sync.Once
	release := func() {
		once.Do(func() {
			stopRefresh()
			if err := os.RemoveAll(dir); err != nil {
				l.log.Error().Err(err).Str("path", path).Msg("failed to release exclusive lock")
			}
		})
	}
	return release, nil
}

// AcquireShared takes a reader lock for path. Concurrent readers are
// admitted; writers are blocked until all markers are released.
func (l *Locker) AcquireShared(path string) (func(), error) {
	sdir := sharedDir(path)
	if err := os.MkdirAll(sdir, 0o755); err != nil {
		return nil, err
	}
	marker := filepath.Join(sdir, "r-"+uuid.New().String())

	err := backoff.Retry(func() error {
		if l.exclusiveHeld(path) {
			return fmt.Errorf("exclusive lock held: %s", path)
		}
		f, createErr := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if createErr != nil {
			return createErr
		}
		_ = f.Close()
		// A writer may have slipped in between the check and the marker
		// creation; back out and retry so it is never starved of phase 2.
		if l.exclusiveHeld(path) {
			_ = os.Remove(marker)
			return fmt.Errorf("writer arrived during shared acquisition: %s", path)
		}
		return nil
	}, l.newBackoff())
	if err != nil {
		lockTimeoutsTotal.Inc()
		return nil, fmt.Errorf("%w: %s", model.ErrLockTimeout, path)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
				l.log.Error().Err(err).Str("path", path).Msg("failed to release shared lock")
			}
		})
	}
	return release, nil
}

// exclusiveHeld reports whether a live exclusive lock exists, breaking it
// first when stale.
func (l *Locker) exclusiveHeld(path string) bool {
	dir := exclusiveDir(path)
	if _, err := os.Stat(dir); err != nil {
		return false
	}
	l.breakIfStale(dir)
	_, err := os.Stat(dir)
	return err == nil
}

// countSharedMarkers returns live shared markers, reaping stale ones.
func (l *Locker) countSharedMarkers(path string) int {
	entries, err := os.ReadDir(sharedDir(path))
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "r-") {
			continue
		}
		full := filepath.Join(sharedDir(path), e.Name())
		if info, err := os.Stat(full); err == nil {
			if time.Since(info.ModTime()) > l.policy.Stale {
				l.log.Warn().Str("marker", full).Msg("breaking stale shared lock")
				_ = os.Remove(full)
				continue
			}
		}
		n++
	}
	return n
}

// breakIfStale removes an exclusive lock directory whose mtime exceeds the
// staleness threshold, on the assumption that its holder is gone.
func (l *Locker) breakIfStale(dir string) {
	info, err := os.Stat(dir)
	if err != nil {
		return
	}
	if time.Since(info.ModTime()) > l.policy.Stale {
		l.log.Warn().Str("lock", dir).Dur("age", time.Since(info.ModTime())).Msg("breaking stale exclusive lock")
		staleLocksBrokenTotal.Inc()
		_ = os.RemoveAll(dir)
	}
}

// startRefresh keeps the exclusive lock's mtime fresh so a long critical
// section is not mistaken for an abandoned holder. Returns a stop func.
func (l *Locker) startRefresh(dir, ownerPath string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(l.policy.Refresh)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				now := time.Now()
				_ = os.Chtimes(dir, now, now)
				_ = os.Chtimes(ownerPath, now, now)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
