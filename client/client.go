// Package client is the Go SDK for the study-enforcer server. It exposes
// typed operations over the HTTP surface and owns the write-serialization
// queue that turns many concurrent append requests into a safe sequential
// stream per user, with a durable local cache for offline resilience.
package client

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/client/internal/localcache"
	"github.com/Basbat-net/Study-Enforcer/client/internal/userqueue"
)

// Client talks to one study-enforcer server.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	queues    *userqueue.Registry
	queueCfg  userqueue.Config
	cache     *localcache.Cache
	cachePath string

	// lastKnownCounts tracks, per user, the log length this client last
	// observed server-side. A fetch that comes back shorter is the
	// lost-update signal that triggers cache splicing.
	countsMu        sync.Mutex
	lastKnownCounts map[string]int

	closedOnce uint32
}

// New constructs a Client for baseURL. The local cache and the per-user
// queue registry are created eagerly so a submission can be durably
// recorded before the first network call.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:         baseURL,
		http:            &http.Client{Timeout: 30 * time.Second},
		log:             zerolog.Nop(),
		lastKnownCounts: make(map[string]int),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	cache, err := localcache.Open(c.cachePath)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	c.queues = userqueue.NewRegistry(c.queueCfg, c.log)
	return c, nil
}

// Close drains the queue registry and releases the cache. Safe to call
// multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	c.queues.Stop()
	return c.cache.Close()
}

// Flush blocks until every append previously enqueued for username has
// settled (success or final failure).
func (c *Client) Flush(ctx context.Context, username string) error {
	return c.queues.Barrier(ctx, username)
}

func (c *Client) lastKnownCount(username string) int {
	c.countsMu.Lock()
	defer c.countsMu.Unlock()
	return c.lastKnownCounts[username]
}

func (c *Client) setLastKnownCount(username string, n int) {
	c.countsMu.Lock()
	defer c.countsMu.Unlock()
	c.lastKnownCounts[username] = n
}

// Cache keys mirror the per-user shadow documents.
func backupLogsKey(username string) string  { return "backup_logs_" + username }
func failedLogsKey(username string) string  { return "failed_logs_" + username }
func timerBackupKey(username string) string { return "timer_state_backup_" + username }
