// Package cache memoizes per-repository detail fetches.
//
// Each (owner, repo) key moves through NotLoaded → Loading → Loaded. While a
// key is Loading every caller joins the one request already in flight. A
// failed fetch removes the entry so the next caller retries, and the callers
// of the failed attempt get an empty result. Entries never expire; Clear
// drops everything when settings change.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/ghtree/pkg/debug"
	"github.com/vanderheijden86/ghtree/pkg/metrics"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// Fetcher retrieves the detail categories of one repository.
type Fetcher interface {
	FetchRepoDetails(ctx context.Context, owner, repo string) ([]*model.TreeNode, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, owner, repo string) ([]*model.TreeNode, error)

func (f FetcherFunc) FetchRepoDetails(ctx context.Context, owner, repo string) ([]*model.TreeNode, error) {
	return f(ctx, owner, repo)
}

// EntryState is the lifecycle state of one cache key.
type EntryState int

const (
	NotLoaded EntryState = iota
	Loading
	Loaded
	// Failed means the most recent attempt failed and nothing has retried
	// since. The entry itself is gone; Get treats it like NotLoaded.
	Failed
)

func (s EntryState) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("EntryState(%d)", int(s))
	}
}

type entry struct {
	state    EntryState
	data     []*model.TreeNode
	loadedAt time.Time
	gen      uint64
}

// Config configures a DetailCache.
type Config struct {
	Fetcher Fetcher
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// DetailCache is a single-flight memoizing cache of repository details.
// It is safe for concurrent use.
type DetailCache struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	failed  map[string]bool
	gen     uint64

	fetches atomic.Int64
}

// New creates a DetailCache.
func New(cfg Config) *DetailCache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &DetailCache{
		fetcher: cfg.Fetcher,
		logger:  logger,
		now:     now,
		entries: make(map[string]*entry),
		failed:  make(map[string]bool),
	}
}

// Key returns the cache key for a repository. It is the repository's node id.
func Key(owner, repo string) string {
	return model.RepoID(owner, repo)
}

// Get returns the detail categories for owner/repo, fetching them at most
// once across concurrent callers.
//
// On fetch failure the error is returned together with an empty, non-nil
// slice, and the entry is removed so the next call retries. If ctx ends
// while waiting, Get returns early; the shared fetch keeps running for the
// other callers.
func (c *DetailCache) Get(ctx context.Context, owner, repo string) ([]*model.TreeNode, error) {
	key := Key(owner, repo)

	c.mu.Lock()
	e := c.entries[key]
	if e != nil && e.state == Loaded {
		data := e.data
		c.mu.Unlock()
		metrics.DetailCache.Hit()
		return data, nil
	}
	gen := c.gen
	var mine *entry
	if e != nil && e.state == Loading {
		metrics.DetailCache.Dedup()
	} else {
		metrics.DetailCache.Miss()
		delete(c.failed, key)
		mine = &entry{state: Loading, gen: gen}
		c.entries[key] = mine
		debug.Log("cache: %s -> loading", key)
	}
	c.mu.Unlock()

	flightKey := fmt.Sprintf("%s@%d", key, gen)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), key, owner, repo, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.dropFailed(key, mine)
			return []*model.TreeNode{}, res.Err
		}
		return res.Val.([]*model.TreeNode), nil
	case <-ctx.Done():
		return []*model.TreeNode{}, ctx.Err()
	}
}

// dropFailed removes the Loading entry a caller installed when its flight
// ended in an error. The entry is still there when the caller joined a
// failed flight that had already cleaned up but not yet been forgotten.
func (c *DetailCache) dropFailed(key string, mine *entry) {
	if mine == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] == mine {
		delete(c.entries, key)
		c.failed[key] = true
		debug.Log("cache: %s -> failed (stale loading entry)", key)
	}
}

// load runs inside the single flight for key at generation gen.
func (c *DetailCache) load(ctx context.Context, key, owner, repo string, gen uint64) ([]*model.TreeNode, error) {
	// A caller that saw Loading may arrive after the flight finished.
	c.mu.Lock()
	if e := c.entries[key]; e != nil && e.state == Loaded && e.gen == gen {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	c.fetches.Add(1)
	stop := metrics.Timer(metrics.DetailFetch)
	data, err := c.fetcher.FetchRepoDetails(ctx, owner, repo)
	stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.gen == gen

	if err != nil {
		if current {
			delete(c.entries, key)
			c.failed[key] = true
		}
		c.logger.Warn("detail fetch failed",
			"owner", owner, "repo", repo, "error", err)
		debug.Log("cache: %s -> failed (%v)", key, err)
		return nil, fmt.Errorf("fetch details for %s/%s: %w", owner, repo, err)
	}

	if data == nil {
		data = []*model.TreeNode{}
	}
	if current {
		c.entries[key] = &entry{state: Loaded, data: data, loadedAt: c.now(), gen: gen}
		debug.Log("cache: %s -> loaded (%d categories)", key, len(data))
	} else {
		debug.Log("cache: %s result from generation %d discarded", key, gen)
	}
	return data, nil
}

// State reports the lifecycle state of owner/repo.
func (c *DetailCache) State(owner, repo string) EntryState {
	key := Key(owner, repo)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[key]; e != nil {
		return e.state
	}
	if c.failed[key] {
		return Failed
	}
	return NotLoaded
}

// Peek returns cached data without fetching.
func (c *DetailCache) Peek(owner, repo string) ([]*model.TreeNode, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[Key(owner, repo)]
	if e == nil || e.state != Loaded {
		return nil, time.Time{}, false
	}
	return e.data, e.loadedAt, true
}

// Clear drops every entry. Fetches still in flight complete for their
// waiting callers but their results are not stored.
func (c *DetailCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]*entry)
	c.failed = make(map[string]bool)
	debug.Log("cache: cleared, generation %d", c.gen)
}

// Len returns the number of loaded entries.
func (c *DetailCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.state == Loaded {
			n++
		}
	}
	return n
}

// Fetches returns how many upstream fetches have been issued.
func (c *DetailCache) Fetches() int64 {
	return c.fetches.Load()
}
