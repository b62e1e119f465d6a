// Package session wires the resource tree engine together for one set of
// settings: the tree store, the detail cache, the enabled-state manager and
// the batch loader, all fed by one Source. Both the TUI and the
// non-interactive CLI commands drive the engine through a Session.
//
// Settings changes swap the Source in place. The cache is cleared and the
// tree reloaded, so results still in flight for the old settings are
// discarded by the cache generation and overwritten by the new tree.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vanderheijden86/ghtree/pkg/cache"
	"github.com/vanderheijden86/ghtree/pkg/debug"
	"github.com/vanderheijden86/ghtree/pkg/enabled"
	"github.com/vanderheijden86/ghtree/pkg/filter"
	"github.com/vanderheijden86/ghtree/pkg/loader"
	"github.com/vanderheijden86/ghtree/pkg/metrics"
	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/tree"
)

// ErrNoSource is returned when a Session has no Source configured.
var ErrNoSource = errors.New("no resource source configured")

// Source is the resource client the engine reads from.
type Source interface {
	FetchTree(ctx context.Context, orgs []string) ([]*model.TreeNode, error)
	FetchRepoDetails(ctx context.Context, owner, repo string) ([]*model.TreeNode, error)
	FetchRateLimit(ctx context.Context) (model.RateLimit, error)
}

// Settings selects what a Session loads and where it persists.
type Settings struct {
	Source Source
	// Persister stores enabled records. Nil disables persistence.
	Persister enabled.Persister
	// Orgs restricts the initial tree; empty asks for the server default.
	Orgs []string
}

// Config configures a Session.
type Config struct {
	Settings
	Confirm  loader.Confirmer
	Progress loader.Progress
	// Delay between upstream requests in a batch; see loader.Config.
	Delay  time.Duration
	Logger *slog.Logger
}

// Session owns one engine instance.
type Session struct {
	Store   *tree.Store
	Cache   *cache.DetailCache
	Enabled *enabled.Manager
	Loader  *loader.Loader

	logger *slog.Logger

	mu       sync.RWMutex
	settings Settings
}

// New creates a Session with an empty tree. Call Load to populate it.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		Store:    tree.NewStore(nil),
		logger:   logger,
		settings: cfg.Settings,
	}
	s.Cache = cache.New(cache.Config{Fetcher: cache.FetcherFunc(s.fetchDetails), Logger: logger})
	s.Enabled = enabled.NewManager(enabled.Config{Store: s.Store, Persister: persister{s}, Logger: logger})
	s.Loader = loader.New(loader.Config{
		Store:    s.Store,
		Cache:    s.Cache,
		Confirm:  cfg.Confirm,
		Progress: cfg.Progress,
		Delay:    cfg.Delay,
		Logger:   logger,
	})
	return s
}

func (s *Session) current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Orgs returns the organizations the tree is restricted to.
func (s *Session) Orgs() []string {
	return s.current().Orgs
}

func (s *Session) fetchDetails(ctx context.Context, owner, repo string) ([]*model.TreeNode, error) {
	src := s.current().Source
	if src == nil {
		return nil, ErrNoSource
	}
	return src.FetchRepoDetails(ctx, owner, repo)
}

// persister forwards to whatever persister the current settings name, so
// the enabled manager survives settings changes.
type persister struct{ s *Session }

func (p persister) SaveEnabled(ctx context.Context, records []model.EnabledRecord) error {
	if dst := p.s.current().Persister; dst != nil {
		return dst.SaveEnabled(ctx, records)
	}
	return nil
}

func (p persister) LoadEnabled(ctx context.Context) ([]model.EnabledRecord, error) {
	if src := p.s.current().Persister; src != nil {
		return src.LoadEnabled(ctx)
	}
	return nil, nil
}

// Load fetches the shallow tree and replaces the store with it, then
// restores persisted enabled state. A tree fetch failure leaves the store
// untouched and is returned; it is a blocking error for the caller. A
// failure to restore enabled state is only logged.
func (s *Session) Load(ctx context.Context) error {
	set := s.current()
	if set.Source == nil {
		return ErrNoSource
	}
	stop := metrics.Timer(metrics.TreeFetch)
	roots, err := set.Source.FetchTree(ctx, set.Orgs)
	stop()
	if err != nil {
		return fmt.Errorf("loading resource tree: %w", err)
	}
	if roots == nil {
		roots = []*model.TreeNode{}
	}
	s.Store.Replace(roots)
	debug.Log("session: loaded %d roots", len(roots))

	if err := s.Enabled.Restore(ctx); err != nil {
		// Fall back to what this process already knows.
		_ = s.Enabled.Reapply()
	}
	return nil
}

// Refresh clears the detail cache and reloads the tree.
func (s *Session) Refresh(ctx context.Context) error {
	s.Cache.Clear()
	return s.Load(ctx)
}

// Reconfigure installs new settings, clears the cache and reloads the tree.
// The new settings stay installed even when the reload fails, so a retry
// uses them.
func (s *Session) Reconfigure(ctx context.Context, set Settings) error {
	s.mu.Lock()
	s.settings = set
	s.mu.Unlock()
	s.logger.Info("settings changed, reloading", "orgs", len(set.Orgs))
	return s.Refresh(ctx)
}

// RateLimit fetches the current rate limit.
func (s *Session) RateLimit(ctx context.Context) (model.RateLimit, error) {
	src := s.current().Source
	if src == nil {
		return model.RateLimit{}, ErrNoSource
	}
	return src.FetchRateLimit(ctx)
}

// Expand loads one repository's details, as on a manual expand. Loaded
// repositories and non-repositories are a no-op.
func (s *Session) Expand(ctx context.Context, id string) error {
	n := tree.Find(s.Store.Snapshot(), id)
	if n == nil {
		return fmt.Errorf("%w: %s", tree.ErrNodeNotFound, id)
	}
	if n.Type != model.TypeRepository || n.IsLoaded {
		return nil
	}
	_, err := s.Loader.LoadOne(ctx, id)
	return err
}

// Toggle flips the enabled flag of an organization or repository and loads
// the repositories the toggle made pending.
func (s *Session) Toggle(ctx context.Context, id string) (loader.Result, error) {
	n := tree.Find(s.Store.Snapshot(), id)
	if n == nil {
		return loader.Result{}, fmt.Errorf("%w: %s", tree.ErrNodeNotFound, id)
	}
	return s.SetEnabled(ctx, id, !n.IsEnabled())
}

// SetEnabled sets the enabled flag and batch loads newly pending
// repositories.
func (s *Session) SetEnabled(ctx context.Context, id string, on bool) (loader.Result, error) {
	res, err := s.Enabled.SetEnabled(ctx, id, on)
	if err != nil {
		return loader.Result{}, err
	}
	if len(res.Pending) == 0 {
		return loader.Result{}, nil
	}
	return s.Loader.Load(ctx, res.Pending)
}

// ExpandAll batch loads every pending enabled repository.
func (s *Session) ExpandAll(ctx context.Context) (loader.Result, error) {
	return s.Loader.ExpandAll(ctx, true)
}

// DeepSearch loads pending enabled repositories when opts could match
// something inside them. It returns a zero Result when no load is needed.
func (s *Session) DeepSearch(ctx context.Context, opts filter.Options) (loader.Result, error) {
	if !opts.NeedsDetails() {
		return loader.Result{}, nil
	}
	return s.ExpandAll(ctx)
}

// PendingCount returns how many enabled repositories are not loaded yet.
func (s *Session) PendingCount() int {
	return len(loader.Pending(s.Store.Snapshot(), true))
}

// Close waits for outstanding enabled-state writes.
func (s *Session) Close() error {
	return s.Enabled.Wait()
}
