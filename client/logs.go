package client

import (
	"context"
	"net/http"

	"github.com/Basbat-net/Study-Enforcer/client/internal/userqueue"
)

// GetLogs fetches the user's authoritative log. Before returning it
// resubmits any entries on the failed-retry list; the list is cleared
// only once every resubmission has succeeded. The observed log length is
// recorded for lost-update detection.
func (c *Client) GetLogs(ctx context.Context, username string) ([]LogEntry, error) {
	var entries []LogEntry
	if err := c.doJSON(ctx, http.MethodGet, "/api/logs/"+username, nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []LogEntry{}
	}

	entries = c.resubmitFailed(ctx, username, entries)

	c.setLastKnownCount(username, len(entries))
	return entries, nil
}

// resubmitFailed replays the failed-entry list against the append
// endpoint. Entries that still fail stay on the list for next time.
func (c *Client) resubmitFailed(ctx context.Context, username string, entries []LogEntry) []LogEntry {
	var failed []LogEntry
	if ok, err := c.cache.GetJSON(failedLogsKey(username), &failed); err != nil || !ok || len(failed) == 0 {
		return entries
	}

	c.log.Info().Str("username", username).Int("count", len(failed)).Msg("resubmitting failed log entries")
	var remaining []LogEntry
	for _, entry := range failed {
		if err := c.doJSON(ctx, http.MethodPost, "/api/logs/"+username+"/add", entry, nil); err != nil {
			c.log.Warn().Err(err).Str("username", username).Msg("resubmission failed, keeping entry for retry")
			remaining = append(remaining, entry)
			continue
		}
		entries = append(entries, entry)
	}

	if len(remaining) == 0 {
		_ = c.cache.Delete(failedLogsKey(username))
	} else {
		_ = c.cache.SetJSON(failedLogsKey(username), remaining)
	}
	return entries
}

// AddLog enqueues one append for username. Appends for the same user run
// strictly in submission order, one at a time; appends for different
// users proceed in parallel. The call returns once the work is enqueued;
// from that point the entry is never silently dropped: on any network
// failure it is durably recorded in the local cache and resubmitted
// later (worst case as a duplicate, which consumers tolerate). Callers
// that need the append to have actually reached the server, such as a
// shutdown path, should call Flush to drain the queue first.
func (c *Client) AddLog(ctx context.Context, username string, entry LogEntry) error {
	if username == "" {
		return nil
	}
	return c.queues.Submit(ctx, username, userqueue.JobFunc(func(jobCtx context.Context) error {
		c.appendStep(jobCtx, username, entry)
		return nil
	}))
}

// appendStep is one serialized unit of the write queue:
//
//  1. fetch the authoritative log,
//  2. compare its length with the last length this client observed; a
//     shorter log is a lost-update signal, answered by splicing the
//     locally cached entries back in via the bulk-save path,
//  3. append the new entry to the fetched set and persist the merged set
//     to the local durable cache,
//  4. submit the single new entry to the append endpoint,
//  5. on success, update the observed-length counter.
//
// The step never reports an error upward: once the entry is in the local
// cache it will reach the server eventually via resubmission.
func (c *Client) appendStep(ctx context.Context, username string, entry LogEntry) {
	expected := c.lastKnownCount(username)

	current, err := c.GetLogs(ctx, username)
	if err != nil {
		c.log.Warn().Err(err).Str("username", username).Msg("append fetch failed, recording entry locally")
		c.recordFailedEntry(username, entry)
		return
	}

	if len(current) < expected {
		var backup []LogEntry
		if ok, cacheErr := c.cache.GetJSON(backupLogsKey(username), &backup); cacheErr == nil && ok && len(backup) > len(current) {
			c.log.Warn().
				Str("username", username).
				Int("server", len(current)).
				Int("expected", expected).
				Int("backup", len(backup)).
				Msg("server log shorter than expected, splicing cached entries")
			if err := c.SaveLogs(ctx, username, backup); err != nil {
				c.log.Warn().Err(err).Str("username", username).Msg("splice failed, proceeding with server copy")
			} else {
				current = backup
			}
		}
	}

	merged := append(current, entry)
	if err := c.cache.SetJSON(backupLogsKey(username), merged); err != nil {
		c.log.Warn().Err(err).Str("username", username).Msg("failed to persist merged log to cache")
	}

	if err := c.doJSON(ctx, http.MethodPost, "/api/logs/"+username+"/add", entry, nil); err != nil {
		c.log.Warn().Err(err).Str("username", username).Msg("append submission failed, queueing for resubmission")
		c.recordFailedEntry(username, entry)
		return
	}
	c.setLastKnownCount(username, len(merged))
}

// recordFailedEntry durably parks entry on the user's failed list so the
// next successful fetch resubmits it.
func (c *Client) recordFailedEntry(username string, entry LogEntry) {
	var failed []LogEntry
	_, _ = c.cache.GetJSON(failedLogsKey(username), &failed)
	failed = append(failed, entry)
	if err := c.cache.SetJSON(failedLogsKey(username), failed); err != nil {
		c.log.Error().Err(err).Str("username", username).Msg("failed to record entry in local cache")
	}
}
