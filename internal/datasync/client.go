// File: internal/datasync/client.go
package datasync

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"cryptoterm/internal/fetch"
	"cryptoterm/internal/freshness"
)

// Snapshot is the caller-visible view of one cached resource. Value stays
// populated across failed refreshes (stale-while-revalidate); Err carries the
// most recent fetch failure, if any.
type Snapshot struct {
	Key          string
	Value        json.RawMessage
	LastSyncedAt time.Time
	Loading      bool
	Err          error
}

// Options tunes a Client. Zero values fall back to production defaults.
type Options struct {
	Window          freshness.Window
	PollInterval    time.Duration // background sync timer, default 120s
	RefreshCooldown time.Duration // min gap between manual refreshes, default 30s
	RetryBase       time.Duration // first retry delay, default 1s
	RetryCap        time.Duration // backoff ceiling, default 30s
	MaxRetries      int           // scheduled retries per failure episode, default 3

	// OnUpdate, when set, is called after every successful sync with the new
	// snapshot. It runs outside the client's lock.
	OnUpdate func(Snapshot)

	// Now is the clock; defaults to time.Now. Tests inject a fake.
	Now func() time.Time
}

func (o *Options) fillDefaults() {
	if o.Window == (freshness.Window{}) {
		o.Window = freshness.DefaultWindow()
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 120 * time.Second
	}
	if o.RefreshCooldown <= 0 {
		o.RefreshCooldown = 30 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.RetryCap <= 0 {
		o.RetryCap = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Client keeps one remote resource's cached value fresh: it serves the cached
// snapshot immediately, revalidates on a poll timer and on focus wake-ups,
// retries failures with exponential backoff, and throttles manual refreshes.
// All triggers funnel into one coalesced entry point so at most one fetch is
// in flight per resource at any time.
type Client struct {
	key     string
	fetcher fetch.Fetcher
	opts    Options

	mu           sync.Mutex
	value        json.RawMessage
	lastSyncedAt time.Time
	loading      bool
	lastErr      error
	attempt      int
	lastManualAt time.Time
	retryTimer   *time.Timer
	closed       bool

	wake chan struct{}
	done chan struct{}
}

func New(key string, f fetch.Fetcher, opts Options) *Client {
	opts.fillDefaults()
	return &Client{
		key:     key,
		fetcher: f,
		opts:    opts,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Snapshot returns the current cached state. Never blocks, never fetches.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() Snapshot {
	return Snapshot{
		Key:          c.key,
		Value:        c.value,
		LastSyncedAt: c.lastSyncedAt,
		Loading:      c.loading,
		Err:          c.lastErr,
	}
}

// TimeSinceLastSync reports the age of the cached value. ok is false when no
// sync ever succeeded.
func (c *Client) TimeSinceLastSync() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSyncedAt.IsZero() {
		return 0, false
	}
	return c.opts.Now().Sub(c.lastSyncedAt), true
}

// IsDataFresh reports whether the cached value is inside the fresh window.
func (c *Client) IsDataFresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return freshness.Classify(c.lastSyncedAt, c.opts.Now(), c.opts.Window) == freshness.Fresh
}

// TriggerBackgroundSync revalidates if the cached value is stale or expired.
// A no-op while fresh or while another fetch is in flight.
func (c *Client) TriggerBackgroundSync() {
	c.trigger(false)
}

// RequestManualRefresh forces a revalidation regardless of freshness, subject
// to the refresh cooldown. When throttled it performs no network activity and
// returns the remaining wait rounded up to whole seconds with ok=false. When
// allowed, the cooldown stamp is taken immediately, before the fetch outcome
// is known.
func (c *Client) RequestManualRefresh() (wait time.Duration, ok bool) {
	c.mu.Lock()
	now := c.opts.Now()
	if !c.lastManualAt.IsZero() {
		if elapsed := now.Sub(c.lastManualAt); elapsed < c.opts.RefreshCooldown {
			c.mu.Unlock()
			return ceilSeconds(c.opts.RefreshCooldown - elapsed), false
		}
	}
	c.lastManualAt = now
	c.mu.Unlock()
	c.trigger(true)
	return 0, true
}

// WakeFocus signals that the UI regained focus. Non-blocking; collapses into
// at most one pending wake.
func (c *Client) WakeFocus() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run drives the poll timer and the focus wake source until ctx is done or
// the client is closed. An initial sync fires immediately (no prior sync is
// always classified expired).
func (c *Client) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	c.trigger(false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.trigger(false)
		case <-c.wake:
			c.trigger(false)
		}
	}
}

// Close tears the client down. Fetches already in flight are not interrupted,
// but their completions are discarded rather than mutating a dead client.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()
	close(c.done)
}

// trigger is the single coalesced sync entry point for timers, focus wakes,
// manual refreshes and retry callbacks. Returns true if a fetch was started.
func (c *Client) trigger(force bool) bool {
	c.mu.Lock()
	if c.closed || c.loading {
		c.mu.Unlock()
		return false
	}
	if !force && freshness.Classify(c.lastSyncedAt, c.opts.Now(), c.opts.Window) == freshness.Fresh {
		c.mu.Unlock()
		return false
	}
	c.loading = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()
	go c.sync()
	return true
}

func (c *Client) sync() {
	payload, err := c.fetcher.Fetch(context.Background(), c.key)

	c.mu.Lock()
	if c.closed {
		// Late completion for a torn-down client: drop it.
		c.mu.Unlock()
		return
	}
	c.loading = false
	if err != nil {
		// Keep the previous value: stale data with an error beats no data.
		c.lastErr = err
		if c.attempt < c.opts.MaxRetries {
			delay := retryDelay(c.attempt, c.opts.RetryBase, c.opts.RetryCap)
			c.attempt++
			c.retryTimer = time.AfterFunc(delay, func() { c.trigger(true) })
			log.Printf("[sync] %s failed (attempt %d): %v; retrying in %v", c.key, c.attempt, err, delay)
		} else {
			log.Printf("[sync] %s failed, retries exhausted: %v", c.key, err)
		}
		c.mu.Unlock()
		return
	}
	c.value = payload
	c.lastSyncedAt = c.opts.Now()
	c.lastErr = nil
	c.attempt = 0
	snap := c.snapshotLocked()
	onUpdate := c.opts.OnUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snap)
	}
}

// retryDelay computes min(base << attempt, cap) for the attempt-th retry
// (0-based), so the default schedule runs 1s, 2s, 4s, ... capped at 30s.
func retryDelay(attempt int, base, cap time.Duration) time.Duration {
	if attempt > 30 {
		return cap
	}
	d := base << uint(attempt)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}

// ceilSeconds rounds a duration up to a whole second, for "retry after Ns"
// messages.
func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	whole := d.Truncate(time.Second)
	if whole < d {
		whole += time.Second
	}
	return whole
}
