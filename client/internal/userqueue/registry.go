// Package userqueue guarantees at-most-one-in-flight, strictly-ordered
// execution per username. Each username gets its own lazily constructed
// worker (one goroutine fed by a bounded channel), so operations for the
// same user run FIFO while different users never block each other. There
// is no ambient global state; every queue is owned by a Registry.
//
// Contract: callers must not invoke Submit concurrently for the same
// username from multiple goroutines if they care about relative order of
// those submissions; FIFO ordering is defined by arrival on the channel.
package userqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/client/internal/apierr"
)

// Config tunes the registry. Zero values select defaults.
type Config struct {
	QueueSize      int           // per-user channel capacity (default 128)
	EnqueueTimeout time.Duration // how long Submit waits for space (default 100ms)
	MaxAttempts    int           // attempts per job before giving up (default 8)
	BaseBackoff    time.Duration // first retry delay (default 100ms)
	MaxInterval    time.Duration // capped retry delay (default 20s)

	// ErrorHandler is invoked with the final error of a job that failed
	// irrecoverably or exhausted its attempts. Optional.
	ErrorHandler func(error)
}

type queuedJob struct {
	ctx context.Context
	job Job
}

type userWorker struct {
	username string
	ch       chan queuedJob
}

// Registry maps usernames to their dedicated sequential workers.
type Registry struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	workers map[string]*userWorker

	done   chan struct{} // closed in Stop
	closed uint32        // 0 running, 1 closed
	wg     sync.WaitGroup
}

// NewRegistry constructs a Registry. Workers start on first Submit for a
// username.
func NewRegistry(cfg Config, log zerolog.Logger) *Registry {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 20 * time.Second
	}
	return &Registry{
		cfg:     cfg,
		log:     log,
		workers: make(map[string]*userWorker),
		done:    make(chan struct{}),
	}
}

// Submit enqueues job on username's worker.
//
//   - Returns nil on success.
//   - Returns ErrRegistryClosed after Stop.
//   - Returns a *QueueFullError when the queue has no room within
//     EnqueueTimeout.
//   - Returns ctx.Err() if the caller's context is cancelled first.
func (r *Registry) Submit(ctx context.Context, username string, job Job) error {
	if atomic.LoadUint32(&r.closed) == 1 {
		return ErrRegistryClosed
	}
	select {
	case <-r.done:
		return ErrRegistryClosed
	default:
	}

	w := r.workerFor(username)
	if w == nil {
		return ErrRegistryClosed
	}

	timer := time.NewTimer(r.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case w.ch <- queuedJob{ctx: ctx, job: job}:
		submissionsTotal.WithLabelValues(username).Inc()
		return nil
	case <-r.done:
		return ErrRegistryClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(username).Inc()
		return &QueueFullError{Username: username, Length: len(w.ch), Capacity: cap(w.ch)}
	}
}

// Barrier enqueues a no-op job for username and waits until it runs,
// guaranteeing all previously submitted jobs for that user have settled.
func (r *Registry) Barrier(ctx context.Context, username string) error {
	done := make(chan struct{})
	j := JobFunc(func(context.Context) error {
		close(done)
		return nil
	})
	if err := r.Submit(ctx, username, j); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Stop signals every worker to drain its queue, waits for them to finish,
// and rejects further submissions. Idempotent and safe for concurrent use.
func (r *Registry) Stop() {
	if !atomic.CompareAndSwapUint32(&r.closed, 0, 1) {
		return
	}
	r.log.Info().Msg("userqueue: stopping registry, draining workers")
	close(r.done)
	r.wg.Wait()
	r.log.Info().Msg("userqueue: registry stopped, all queues drained")
}

// Close lets Registry satisfy io.Closer.
func (r *Registry) Close() error {
	r.Stop()
	return nil
}

// workerFor returns username's worker, starting one on first use.
func (r *Registry) workerFor(username string) *userWorker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if atomic.LoadUint32(&r.closed) == 1 {
		return nil
	}
	if w, ok := r.workers[username]; ok {
		return w
	}
	w := &userWorker{username: username, ch: make(chan queuedJob, r.cfg.QueueSize)}
	r.workers[username] = w
	r.wg.Add(1)
	go r.runWorker(w)
	return w
}

func (r *Registry) runWorker(w *userWorker) {
	defer r.wg.Done()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("username", w.username).Msg("userqueue: worker panic")
		}
	}()

	for {
		select {
		case qj := <-w.ch:
			r.runJob(w, qj)
			queueDepth.WithLabelValues(w.username).Set(float64(len(w.ch)))

		case <-r.done:
			// Drain remaining jobs, preserving FIFO, then exit.
			for {
				select {
				case qj := <-w.ch:
					r.runJob(w, qj)
				default:
					queueDepth.WithLabelValues(w.username).Set(0)
					return
				}
			}
		}
	}
}

// runJob executes one job with the retry policy: exponential backoff for
// recoverable errors, fail-fast for irrecoverable ones.
func (r *Registry) runJob(w *userWorker, qj queuedJob) {
	if qj.job == nil {
		return
	}

	// Honour caller context so a cancelled job doesn't stall the worker.
	select {
	case <-qj.ctx.Done():
		r.handleError(w.username, qj.ctx.Err())
		return
	default:
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = r.cfg.MaxInterval
	exp.Reset()

	attempts := 0
	for {
		start := time.Now()
		err := r.runAttempt(qj)
		runDuration.WithLabelValues(w.username).Observe(time.Since(start).Seconds())

		if err == nil {
			return
		}
		if apierr.IsIrrecoverable(err) {
			r.handleError(w.username, err)
			return
		}
		if attempts >= r.cfg.MaxAttempts-1 {
			r.handleError(w.username, err)
			return
		}

		attempts++
		select {
		case <-time.After(exp.NextBackOff()):
		case <-r.done:
			return
		case <-qj.ctx.Done():
			r.handleError(w.username, qj.ctx.Err())
			return
		}
	}
}

// runAttempt executes one attempt, converting a panic into an
// irrecoverable error so the worker survives misbehaving jobs.
func (r *Registry) runAttempt(qj queuedJob) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("userqueue: job panic")
			err = apierr.NewPanicError(rec)
		}
	}()
	return qj.job.Run(qj.ctx)
}

func (r *Registry) handleError(username string, err error) {
	if err == nil {
		return
	}
	failuresTotal.WithLabelValues(username).Inc()
	if r.cfg.ErrorHandler == nil {
		return
	}
	func() {
		// Guard against panics in the user-supplied handler.
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Interface("panic", rec).Msg("userqueue: error handler panic")
			}
		}()
		r.cfg.ErrorHandler(err)
	}()
}
