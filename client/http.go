package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Basbat-net/Study-Enforcer/client/internal/apierr"
)

// doJSON performs one HTTP request with an optional JSON body, decoding
// the response into out when out is non-nil. Failures come back as
// classified errors so the write queue can pick the right retry policy.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.NewNetworkError(method+" "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return apierr.NewHTTPError(resp.StatusCode, method+" "+path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// --------------------------------------------------------------------
// Synchronous operations (no queueing)
// --------------------------------------------------------------------

// ListUsers returns the registry's sorted username set.
func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	var users []string
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Ping checks server liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/api/ping", nil, nil)
}

// InitUser registers username and creates its server-side storage.
func (c *Client) InitUser(ctx context.Context, username string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/init-user/"+username, nil, nil)
}

// RemoveUser deletes username and its whole storage subtree.
func (c *Client) RemoveUser(ctx context.Context, username string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/user/"+username, nil, nil)
}

// SaveLogs replaces the user's whole log on the server. This is the
// dangerous bulk-rewrite path, used for splicing recovered entries back
// in; steady-state appends go through AddLog.
func (c *Client) SaveLogs(ctx context.Context, username string, entries []LogEntry) error {
	if entries == nil {
		entries = []LogEntry{}
	}
	return c.doJSON(ctx, http.MethodPost, "/api/logs/"+username, entries, nil)
}

// ClearLogs deletes the user's whole log (the server backs it up first)
// and resets the client's local shadow state for that user.
func (c *Client) ClearLogs(ctx context.Context, username string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/logs/"+username, nil, nil); err != nil {
		return err
	}
	_ = c.cache.Delete(backupLogsKey(username))
	_ = c.cache.Delete(failedLogsKey(username))
	c.setLastKnownCount(username, 0)
	return nil
}

// StartInactiveInterval creates or replaces the user's pending inactivity
// marker at timestamp.
func (c *Client) StartInactiveInterval(ctx context.Context, username string, timestamp int64) error {
	body := map[string]int64{"timestamp": timestamp}
	return c.doJSON(ctx, http.MethodPost, "/api/inactive-interval/start/"+username, body, nil)
}

// EndInactiveInterval resolves the user's pending inactivity marker
// against currentTime.
func (c *Client) EndInactiveInterval(ctx context.Context, username string, currentTime int64) (*EndIntervalResult, error) {
	body := map[string]int64{"currentTime": currentTime}
	var res EndIntervalResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/inactive-interval/end/"+username, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetTimerState fetches the user's timer snapshot, falling back to the
// locally cached copy when the server is unreachable.
func (c *Client) GetTimerState(ctx context.Context, username string) (TimerState, error) {
	var state TimerState
	if err := c.doJSON(ctx, http.MethodGet, "/api/timer-state/"+username, nil, &state); err != nil {
		var cached TimerState
		if ok, cacheErr := c.cache.GetJSON(timerBackupKey(username), &cached); cacheErr == nil && ok {
			c.log.Warn().Err(err).Str("username", username).Msg("serving timer state from local cache")
			return cached, nil
		}
		return TimerState{}, err
	}
	_ = c.cache.SetJSON(timerBackupKey(username), state)
	return state, nil
}

// SaveTimerState persists the snapshot locally first, then on the server.
func (c *Client) SaveTimerState(ctx context.Context, username string, state TimerState) error {
	if err := c.cache.SetJSON(timerBackupKey(username), state); err != nil {
		c.log.Warn().Err(err).Str("username", username).Msg("failed to cache timer state")
	}
	return c.doJSON(ctx, http.MethodPost, "/api/timer-state/"+username, state, nil)
}

// ClearTimerState deletes the user's timer snapshot server-side and
// locally.
func (c *Client) ClearTimerState(ctx context.Context, username string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/timer-state/"+username, nil, nil); err != nil {
		return err
	}
	_ = c.cache.Delete(timerBackupKey(username))
	return nil
}
