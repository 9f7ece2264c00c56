package tracker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Basbat-net/Study-Enforcer/client"
	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// fakeBackend records every effect the session fires.
type fakeBackend struct {
	mu sync.Mutex

	logged       []model.LogEntry
	starts       []int64
	ends         []int64
	savedStates  []model.TimerState
	flushed      int
	timerState   model.TimerState
	pendingStart int64 // non-zero: EndInactiveInterval resolves this span
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{timerState: model.DefaultTimerState()}
}

func (f *fakeBackend) AddLog(_ context.Context, _ string, e model.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, e)
	return nil
}

func (f *fakeBackend) Flush(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
	return nil
}

func (f *fakeBackend) GetTimerState(context.Context, string) (model.TimerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timerState, nil
}

func (f *fakeBackend) SaveTimerState(_ context.Context, _ string, s model.TimerState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedStates = append(f.savedStates, s)
	return nil
}

func (f *fakeBackend) StartInactiveInterval(_ context.Context, _ string, ts int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, ts)
	return nil
}

func (f *fakeBackend) EndInactiveInterval(_ context.Context, username string, currentTime int64) (*client.EndIntervalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, currentTime)
	res := &client.EndIntervalResult{Success: true}
	if f.pendingStart > 0 {
		res.HadPendingInterval = true
		if d := currentTime - f.pendingStart; d > 0 {
			res.InactiveLog = &model.LogEntry{
				Type:         model.LogTypeInactive,
				Duration:     d,
				Timestamp:    f.pendingStart,
				EndTimestamp: currentTime,
				Username:     username,
			}
		}
		f.pendingStart = 0
	}
	return res, nil
}

func (f *fakeBackend) loggedEntries() []model.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.LogEntry, len(f.logged))
	copy(out, f.logged)
	return out
}

func (f *fakeBackend) lastSavedState(t *testing.T) model.TimerState {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.savedStates)
	return f.savedStates[len(f.savedStates)-1]
}

// fakeClock is a manually advanced millisecond clock.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
}

func newTestSession(t *testing.T) (*Session, *fakeBackend, *fakeClock) {
	t.Helper()
	backend := newFakeBackend()
	clock := &fakeClock{now: 1_000_000}
	s := NewSession(backend, WithClock(clock.Now))
	_, err := s.SelectUser(context.Background(), "alice")
	require.NoError(t, err)
	return s, backend, clock
}

func TestStartStop_ActiveModeLogsActiveSpan(t *testing.T) {
	s, backend, clock := newTestSession(t)
	ctx := context.Background()

	s.Start(ctx)
	require.Equal(t, StateActiveRunning, s.State())

	clock.Advance(5000)
	s.Stop(ctx)
	require.Equal(t, StateIdle, s.State())

	logged := backend.loggedEntries()
	require.Len(t, logged, 1)
	require.Equal(t, model.LogTypeActive, logged[0].Type)
	require.Equal(t, int64(5000), logged[0].Duration)
	require.Equal(t, logged[0].Timestamp+logged[0].Duration, logged[0].EndTimestamp)
	require.Equal(t, "alice", logged[0].Username)

	saved := backend.lastSavedState(t)
	require.True(t, saved.WasPaused)
	require.False(t, saved.WasRunning)
	require.Equal(t, int64(5000), saved.Time)
}

func TestStart_NormalModeOpensPendingMarker(t *testing.T) {
	s, backend, clock := newTestSession(t)
	ctx := context.Background()

	s.ToggleTrackingMode(ctx)
	require.False(t, s.ActiveTrackingMode())

	s.Start(ctx)
	require.Equal(t, StateNormalRunning, s.State())
	require.Len(t, backend.starts, 1)

	clock.Advance(3000)
	s.Stop(ctx)

	// The span is logged inactive and the marker discarded at its own
	// start time so the server does not double-log it.
	logged := backend.loggedEntries()
	require.Len(t, logged, 1)
	require.Equal(t, model.LogTypeInactive, logged[0].Type)
	require.Equal(t, int64(3000), logged[0].Duration)
	require.Equal(t, []int64{backend.starts[0]}, backend.ends[1:])
}

func TestVisibility_SplitsActiveAndInactiveSpans(t *testing.T) {
	s, backend, clock := newTestSession(t)
	ctx := context.Background()

	s.Start(ctx)
	clock.Advance(2000)

	// Page hidden: active span closes, inactivity opens.
	s.SetVisible(ctx, false)
	require.Equal(t, StateActiveSuspended, s.State())
	require.Len(t, backend.starts, 1)

	clock.Advance(7000)

	// Page visible: inactive span closes, a fresh active one opens.
	s.SetVisible(ctx, true)
	require.Equal(t, StateActiveRunning, s.State())

	clock.Advance(1000)
	s.Stop(ctx)

	logged := backend.loggedEntries()
	require.Len(t, logged, 3)
	require.Equal(t, model.LogTypeActive, logged[0].Type)
	require.Equal(t, int64(2000), logged[0].Duration)
	require.Equal(t, model.LogTypeInactive, logged[1].Type)
	require.Equal(t, int64(7000), logged[1].Duration)
	require.Equal(t, model.LogTypeActive, logged[2].Type)
	require.Equal(t, int64(1000), logged[2].Duration)
}

func TestTick_HiddenTimeDoesNotAccrueInActiveMode(t *testing.T) {
	s, _, clock := newTestSession(t)
	ctx := context.Background()

	s.Start(ctx)
	clock.Advance(2000)
	s.SetVisible(ctx, false)
	clock.Advance(9000)
	s.SetVisible(ctx, true)
	clock.Advance(500)

	require.Equal(t, int64(2500), s.Elapsed())
}

func TestTick_WallClockAccruesInNormalMode(t *testing.T) {
	s, _, clock := newTestSession(t)
	ctx := context.Background()

	s.ToggleTrackingMode(ctx)
	s.Start(ctx)
	clock.Advance(2000)
	s.SetVisible(ctx, false)
	clock.Advance(9000)

	// Visibility is irrelevant in normal mode.
	require.Equal(t, StateNormalRunning, s.State())
	require.Equal(t, int64(11000), s.Elapsed())
}

func TestToggleTrackingMode_SplitsSpanAtTogglePoint(t *testing.T) {
	s, backend, clock := newTestSession(t)
	ctx := context.Background()

	s.Start(ctx)
	clock.Advance(4000)

	s.ToggleTrackingMode(ctx)
	require.Equal(t, StateNormalRunning, s.State())

	clock.Advance(6000)
	s.Stop(ctx)

	logged := backend.loggedEntries()
	require.Len(t, logged, 2)
	// Each span is typed by the mode in force while it accrued.
	require.Equal(t, model.LogTypeActive, logged[0].Type)
	require.Equal(t, int64(4000), logged[0].Duration)
	require.Equal(t, model.LogTypeInactive, logged[1].Type)
	require.Equal(t, int64(6000), logged[1].Duration)
}

func TestReset_LogsOpenSpanAndZeroesTimer(t *testing.T) {
	s, backend, clock := newTestSession(t)
	ctx := context.Background()

	s.Start(ctx)
	clock.Advance(3000)
	s.Reset(ctx)

	require.Equal(t, StateIdle, s.State())
	require.Equal(t, int64(0), s.Elapsed())

	logged := backend.loggedEntries()
	require.Len(t, logged, 1)
	require.Equal(t, int64(3000), logged[0].Duration)

	saved := backend.lastSavedState(t)
	require.Equal(t, int64(0), saved.Time)
}

func TestSelectUser_ResolvesOrphanedPendingInterval(t *testing.T) {
	backend := newFakeBackend()
	backend.pendingStart = 500_000
	clock := &fakeClock{now: 1_000_000}
	s := NewSession(backend, WithClock(clock.Now))

	_, err := s.SelectUser(context.Background(), "alice")
	require.NoError(t, err)

	require.Equal(t, []int64{1_000_000}, backend.ends)
}

func TestSelectUser_LoadsPersistedTimerState(t *testing.T) {
	backend := newFakeBackend()
	backend.timerState = model.TimerState{
		Time:                 42_000,
		LastUpdate:           999,
		WasPaused:            true,
		IsActiveTrackingMode: false,
	}
	clock := &fakeClock{now: 1_000_000}
	s := NewSession(backend, WithClock(clock.Now))

	state, err := s.SelectUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(42_000), state.Time)
	require.Equal(t, int64(42_000), s.Elapsed())
	require.False(t, s.ActiveTrackingMode())
}

func TestSelectUser_ClosesPreviousUsersSpan(t *testing.T) {
	s, backend, clock := newTestSession(t)
	ctx := context.Background()

	s.Start(ctx)
	clock.Advance(2000)

	_, err := s.SelectUser(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, StateIdle, s.State())
	require.Equal(t, "bob", s.Username())

	logged := backend.loggedEntries()
	require.Len(t, logged, 1)
	require.Equal(t, "alice", logged[0].Username)
	require.Equal(t, int64(2000), logged[0].Duration)
}

func TestHandleUnload_LogsSavesAndFlushes(t *testing.T) {
	s, backend, clock := newTestSession(t)
	ctx := context.Background()

	s.Start(ctx)
	clock.Advance(2500)
	s.HandleUnload(ctx)

	logged := backend.loggedEntries()
	require.Len(t, logged, 1)
	require.Equal(t, model.LogTypeActive, logged[0].Type)
	require.Equal(t, int64(2500), logged[0].Duration)

	saved := backend.lastSavedState(t)
	require.True(t, saved.WasRunning)
	require.False(t, saved.WasPaused)
	require.Equal(t, int64(2500), saved.Time)

	require.Equal(t, 1, backend.flushed)
}

func TestStop_WhenIdleIsNoop(t *testing.T) {
	s, backend, _ := newTestSession(t)

	s.Stop(context.Background())
	require.Empty(t, backend.loggedEntries())
}

func TestStart_WithoutUserIsNoop(t *testing.T) {
	backend := newFakeBackend()
	clock := &fakeClock{now: 1_000_000}
	s := NewSession(backend, WithClock(clock.Now))

	s.Start(context.Background())
	require.Equal(t, StateIdle, s.State())
}

func TestZeroDurationSpansAreNeverLogged(t *testing.T) {
	s, backend, _ := newTestSession(t)
	ctx := context.Background()

	s.Start(ctx)
	s.Stop(ctx) // same instant
	require.Empty(t, backend.loggedEntries())
}
