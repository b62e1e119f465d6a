package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// rateLimitTracker records the primary rate limit from response headers.
// Before each request it blocks until the reset time when the remaining
// count is known to be zero.
type rateLimitTracker struct {
	mu        sync.Mutex
	limit     int
	remaining int
	used      int
	reset     time.Time
	known     bool
	now       func() time.Time
}

func newRateLimitTracker(now func() time.Time) *rateLimitTracker {
	return &rateLimitTracker{now: now}
}

func (tracker *rateLimitTracker) update(header http.Header) {
	remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return
	}
	limit, _ := strconv.Atoi(header.Get("X-RateLimit-Limit"))
	used, _ := strconv.Atoi(header.Get("X-RateLimit-Used"))

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.limit = limit
	tracker.remaining = remaining
	tracker.used = used
	tracker.reset = time.Unix(resetUnix, 0)
	tracker.known = true
}

// wait returns once a request may be sent, or ctx.Err().
func (tracker *rateLimitTracker) wait(ctx context.Context) error {
	tracker.mu.Lock()
	if !tracker.known || tracker.remaining > 0 {
		tracker.mu.Unlock()
		return nil
	}
	d := tracker.reset.Sub(tracker.now())
	tracker.mu.Unlock()

	if d <= 0 {
		return nil
	}
	return sleep(ctx, d)
}

// retryAfter computes the backoff for a rate-limited response: Retry-After
// (secondary limits) first, then X-RateLimit-Reset. Zero means unknown.
func (tracker *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	if seconds, err := strconv.Atoi(header.Get("Retry-After")); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if resetUnix, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		if d := time.Unix(resetUnix, 0).Sub(tracker.now()); d > 0 {
			return d
		}
	}
	return 0
}

// snapshot returns the last observed limits; ok is false before the first
// response that carried rate-limit headers.
func (tracker *rateLimitTracker) snapshot() (limit, remaining, used int, reset time.Time, ok bool) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.limit, tracker.remaining, tracker.used, tracker.reset, tracker.known
}
