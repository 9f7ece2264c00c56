package client

// Functional options that configure the Client during construction.
// Options must be deterministic and side-effect free.

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/client/internal/userqueue"
)

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		if h == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.http = h
		return nil
	}
}

// WithHTTPTimeout bounds the total time spent on a single HTTP request.
// Prefer per-request context deadlines where possible; this is a coarse
// safety net. The value must be greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.Timeout = d
		return nil
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

// WithCachePath overrides the local durable cache location. The default
// lives under the user's home directory.
func WithCachePath(path string) Option {
	return func(c *Client) error {
		c.cachePath = path
		return nil
	}
}

// QueueConfig tunes the per-user write queue. Zero values select defaults.
type QueueConfig struct {
	QueueSize      int           // per-user queue capacity
	EnqueueTimeout time.Duration // how long AddLog waits for queue space
	MaxAttempts    int           // attempts per submission before giving up
	BaseBackoff    time.Duration // first retry delay
	MaxInterval    time.Duration // capped retry delay
}

// WithQueueConfig tunes the per-user write queue.
func WithQueueConfig(cfg QueueConfig) Option {
	return func(c *Client) error {
		c.queueCfg = userqueue.Config{
			QueueSize:      cfg.QueueSize,
			EnqueueTimeout: cfg.EnqueueTimeout,
			MaxAttempts:    cfg.MaxAttempts,
			BaseBackoff:    cfg.BaseBackoff,
			MaxInterval:    cfg.MaxInterval,
		}
		return nil
	}
}
