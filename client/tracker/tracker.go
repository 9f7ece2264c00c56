// Package tracker decides, from start/stop/visibility/mode events, when an
// active or inactive time span begins and ends, and drives the append log
// and the server-side pending-interval table through the client. It is the
// client half of interval accounting; the server half recovers spans that
// were still open when this process last disappeared.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/client"
	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// State is the session's position in the interval state machine.
type State int

const (
	// StateIdle: timer not running.
	StateIdle State = iota
	// StateActiveRunning: timer running, active tracking mode, page visible.
	StateActiveRunning
	// StateActiveSuspended: timer running, active tracking mode, page
	// hidden; logically inactive time is accruing.
	StateActiveSuspended
	// StateNormalRunning: timer running, normal tracking mode; visibility
	// is irrelevant, wall-clock time counts.
	StateNormalRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActiveRunning:
		return "active-running"
	case StateActiveSuspended:
		return "active-suspended"
	case StateNormalRunning:
		return "normal-running"
	}
	return "unknown"
}

// Backend is the slice of the client the tracker drives. *client.Client
// satisfies it.
type Backend interface {
	AddLog(ctx context.Context, username string, entry model.LogEntry) error
	Flush(ctx context.Context, username string) error
	GetTimerState(ctx context.Context, username string) (model.TimerState, error)
	SaveTimerState(ctx context.Context, username string, state model.TimerState) error
	StartInactiveInterval(ctx context.Context, username string, timestamp int64) error
	EndInactiveInterval(ctx context.Context, username string, currentTime int64) (*client.EndIntervalResult, error)
}

// Session is one user's interval state machine. All methods are safe for
// concurrent use; effect failures degrade to log output, never to the
// caller: a lost append is recovered by the write queue's local cache,
// a lost pending marker by the next session's reconciliation.
type Session struct {
	backend Backend
	log     zerolog.Logger
	now     func() int64 // epoch ms

	mu              sync.Mutex
	username        string
	state           State
	activeMode      bool  // true: active tracking; false: normal
	visible         bool  // last observed page visibility
	accumulated     int64 // timer value, ms
	lastTick        int64 // last accumulation point, epoch ms
	intervalStart   int64 // open interval start, 0 when none
	inactivityStart int64 // open inactivity span start, 0 when none
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithClock overrides the time source (epoch milliseconds). Tests use
// this to make transitions deterministic.
func WithClock(now func() int64) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession constructs an idle session with no user selected.
func NewSession(backend Backend, opts ...SessionOption) *Session {
	s := &Session{
		backend:    backend,
		log:        zerolog.Nop(),
		now:        func() int64 { return time.Now().UnixMilli() },
		state:      StateIdle,
		activeMode: true,
		visible:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username returns the selected user, empty when none.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// ActiveTrackingMode reports whether the session counts only visible time.
func (s *Session) ActiveTrackingMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeMode
}

// Elapsed returns the timer value including any in-progress accrual.
func (s *Session) Elapsed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked(s.now())
}

func (s *Session) elapsedLocked(now int64) int64 {
	if s.counting() && s.lastTick > 0 && now > s.lastTick {
		return s.accumulated + (now - s.lastTick)
	}
	return s.accumulated
}

// counting reports whether timer time is accruing right now.
func (s *Session) counting() bool {
	return s.state == StateActiveRunning || s.state == StateNormalRunning
}

// Tick folds elapsed wall clock into the accumulated timer value. Callers
// drive it periodically; transitions call it implicitly so spans are
// accounted to the instant they close.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked(s.now())
}

func (s *Session) tickLocked(now int64) {
	if s.counting() && s.lastTick > 0 && now > s.lastTick {
		s.accumulated += now - s.lastTick
	}
	s.lastTick = now
}

// Start begins the timer: Idle -> ActiveRunning or NormalRunning,
// opening a new interval. In normal mode a server-side pending inactivity
// marker opens too, so the continuous inactivity ledger survives a crash.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle || s.username == "" {
		return
	}
	now := s.now()
	s.intervalStart = now
	s.lastTick = now
	if s.activeMode {
		s.state = StateActiveRunning
	} else {
		s.state = StateNormalRunning
		s.inactivityStart = now
		s.openPendingLocked(ctx, now)
	}
	s.saveStateLocked(ctx, true)
}

// Stop halts the timer from any running state, closes the open interval,
// logs it when its duration is positive, and persists a paused snapshot.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return
	}
	now := s.now()
	s.tickLocked(now)
	s.closeOpenIntervalLocked(ctx, now)
	s.state = StateIdle
	s.intervalStart = 0
	s.inactivityStart = 0
	s.saveStateLocked(ctx, false)
}

// Reset closes and logs any open interval, then zeroes the timer.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.state != StateIdle {
		s.tickLocked(now)
		s.closeOpenIntervalLocked(ctx, now)
		s.state = StateIdle
		s.intervalStart = 0
		s.inactivityStart = 0
	}
	s.accumulated = 0
	s.saveStateLocked(ctx, false)
}

// ToggleTrackingMode flips between active and normal tracking. While
// running this is a point-in-time split, not a retroactive
// reclassification: the open interval closes typed by the mode that was
// in force while it accrued, then a fresh interval opens under the new
// mode.
func (s *Session) ToggleTrackingMode(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	running := s.state != StateIdle
	if running {
		s.tickLocked(now)
		s.closeOpenIntervalLocked(ctx, now)
	}

	s.activeMode = !s.activeMode
	if running {
		s.intervalStart = now
		s.inactivityStart = 0
		if s.activeMode {
			if s.visible {
				s.state = StateActiveRunning
			} else {
				s.state = StateActiveSuspended
				s.inactivityStart = now
				s.openPendingLocked(ctx, now)
			}
		} else {
			s.state = StateNormalRunning
			s.inactivityStart = now
			s.openPendingLocked(ctx, now)
		}
	}
	s.saveStateLocked(ctx, running)
}

// SetVisible informs the session of a page-visibility change. In active
// tracking mode, hiding the page closes the active interval and opens an
// inactive one, both locally and as a server-side pending marker so the
// span survives a killed process; becoming visible again closes the
// inactive interval and reopens an active one.
func (s *Session) SetVisible(ctx context.Context, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if visible == s.visible {
		return
	}
	s.visible = visible
	now := s.now()

	switch s.state {
	case StateActiveRunning:
		if !visible {
			s.tickLocked(now)
			s.logIntervalLocked(ctx, model.LogTypeActive, s.intervalStart, now)
			s.intervalStart = 0
			s.inactivityStart = now
			s.openPendingLocked(ctx, now)
			s.state = StateActiveSuspended
		}
	case StateActiveSuspended:
		if visible {
			s.logIntervalLocked(ctx, model.LogTypeInactive, s.inactivityStart, now)
			s.discardPendingLocked(ctx, s.inactivityStart)
			s.inactivityStart = 0
			s.intervalStart = now
			s.lastTick = now
			s.state = StateActiveRunning
		}
	default:
		// Idle and NormalRunning ignore visibility.
	}
}

// SelectUser switches identity. Any open interval is closed and logged
// under the previous user first; then, for the new user, any pending
// inactivity marker left over from a prior crash is resolved into a dated
// inactive entry before the fresh timer state loads.
func (s *Session) SelectUser(ctx context.Context, username string) (model.TimerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	if s.username != "" && s.state != StateIdle {
		s.tickLocked(now)
		s.closeOpenIntervalLocked(ctx, now)
		s.saveStateLocked(ctx, false)
	}

	s.username = username
	s.state = StateIdle
	s.accumulated = 0
	s.intervalStart = 0
	s.inactivityStart = 0
	s.lastTick = 0
	s.activeMode = true

	if username == "" {
		return model.DefaultTimerState(), nil
	}

	// Crash/reconnect reconciliation: convert "we don't know how long the
	// process was gone" into a bounded, dated inactive span.
	if res, err := s.backend.EndInactiveInterval(ctx, username, now); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("failed to resolve pending inactivity marker")
	} else if res != nil && res.InactiveLog != nil {
		s.log.Info().
			Str("username", username).
			Int64("duration", res.InactiveLog.Duration).
			Msg("recovered orphaned inactivity span")
	}

	state, err := s.backend.GetTimerState(ctx, username)
	if err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("failed to load timer state, starting fresh")
		state = model.DefaultTimerState()
	}
	s.accumulated = state.Time
	s.activeMode = state.IsActiveTrackingMode
	return state, nil
}

// HandleUnload is the best-effort exit path: within the narrow unload
// window it logs the open active interval, persists a snapshot with
// wasRunning=true so the next session can detect the disappearance, and
// flushes the write queue synchronously.
func (s *Session) HandleUnload(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateIdle || s.username == "" {
		s.mu.Unlock()
		return
	}
	now := s.now()
	s.tickLocked(now)
	if s.state == StateActiveRunning && s.intervalStart > 0 {
		s.logIntervalLocked(ctx, model.LogTypeActive, s.intervalStart, now)
		s.intervalStart = 0
	}
	username := s.username
	state := model.TimerState{
		Time:                 s.accumulated,
		LastUpdate:           now,
		WasPaused:            false,
		WasRunning:           true,
		IsActiveTrackingMode: s.activeMode,
	}
	s.mu.Unlock()

	if err := s.backend.SaveTimerState(ctx, username, state); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("failed to persist unload snapshot")
	}
	if err := s.backend.Flush(ctx, username); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("failed to flush write queue on unload")
	}
}

// SaveSnapshot persists the current timer state; callers run it on a
// periodic cadence while the timer runs.
func (s *Session) SaveSnapshot(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked(s.now())
	s.saveStateLocked(ctx, s.state != StateIdle)
}

// --------------------------------------------------------------------
// internals (s.mu held)
// --------------------------------------------------------------------

// closeOpenIntervalLocked ends whatever span is open, typed by the regime
// it accrued under, and discards any server-side pending marker.
func (s *Session) closeOpenIntervalLocked(ctx context.Context, now int64) {
	switch s.state {
	case StateActiveRunning:
		s.logIntervalLocked(ctx, model.LogTypeActive, s.intervalStart, now)
	case StateActiveSuspended:
		s.logIntervalLocked(ctx, model.LogTypeInactive, s.inactivityStart, now)
		s.discardPendingLocked(ctx, s.inactivityStart)
	case StateNormalRunning:
		s.logIntervalLocked(ctx, model.LogTypeInactive, s.intervalStart, now)
		s.discardPendingLocked(ctx, s.inactivityStart)
	}
}

// logIntervalLocked enqueues one closed span. Zero and negative durations
// are never logged.
func (s *Session) logIntervalLocked(ctx context.Context, typ string, start, end int64) {
	if start <= 0 || end <= start {
		return
	}
	entry := model.LogEntry{
		Type:         typ,
		Duration:     end - start,
		Timestamp:    start,
		EndTimestamp: end,
		Username:     s.username,
	}
	if err := s.backend.AddLog(ctx, s.username, entry); err != nil {
		s.log.Warn().Err(err).Str("username", s.username).Str("type", typ).Msg("failed to enqueue interval entry")
	}
}

func (s *Session) openPendingLocked(ctx context.Context, now int64) {
	if err := s.backend.StartInactiveInterval(ctx, s.username, now); err != nil {
		s.log.Warn().Err(err).Str("username", s.username).Msg("failed to open pending inactivity marker")
	}
}

// discardPendingLocked deletes the server-side pending marker without
// producing an entry: ending a pending interval at its own start time
// yields zero duration, which the server treats as "delete, log nothing".
// The span itself has already been enqueued through the write queue.
func (s *Session) discardPendingLocked(ctx context.Context, startTime int64) {
	if startTime <= 0 {
		return
	}
	if _, err := s.backend.EndInactiveInterval(ctx, s.username, startTime); err != nil {
		s.log.Warn().Err(err).Str("username", s.username).Msg("failed to discard pending inactivity marker")
	}
}

func (s *Session) saveStateLocked(ctx context.Context, running bool) {
	if s.username == "" {
		return
	}
	state := model.TimerState{
		Time:                 s.accumulated,
		LastUpdate:           s.now(),
		WasPaused:            !running,
		WasRunning:           running,
		IsActiveTrackingMode: s.activeMode,
	}
	if err := s.backend.SaveTimerState(ctx, s.username, state); err != nil {
		s.log.Warn().Err(err).Str("username", s.username).Msg("failed to persist timer state")
	}
}

var _ Backend = (*client.Client)(nil)
