// Package loader drives bulk loading of repository details into the tree.
//
// A batch is gated behind a confirmation when it reaches ConfirmThreshold
// repositories, then fetched one repository at a time through the detail
// cache with a short pause between upstream requests. Results are merged
// into the tree store in a single update at the end. A repository whose
// fetch fails is merged as loaded with no children and does not stop the
// rest of the batch.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanderheijden86/ghtree/pkg/cache"
	"github.com/vanderheijden86/ghtree/pkg/debug"
	"github.com/vanderheijden86/ghtree/pkg/metrics"
	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/tree"
)

const (
	// ConfirmThreshold is the batch size at which loading needs an explicit
	// accept.
	ConfirmThreshold = 10
	// DefaultDelay separates successive upstream requests to stay clear of
	// GitHub's secondary rate limits.
	DefaultDelay = 100 * time.Millisecond
)

// ErrDeclined is returned when the confirmation was declined. Nothing was
// fetched and the tree is unchanged.
var ErrDeclined = errors.New("batch load declined")

// Confirmer asks whether a batch of count repositories should be loaded.
type Confirmer func(ctx context.Context, count int) (bool, error)

// Progress is called after each repository with the number done so far.
type Progress func(current, total int)

// Config configures a Loader.
type Config struct {
	Store *tree.Store
	Cache *cache.DetailCache
	// Confirm is consulted for batches of Threshold or more. A nil Confirm
	// declines such batches.
	Confirm  Confirmer
	Progress Progress
	// Delay between upstream requests. Zero means DefaultDelay, negative
	// means none.
	Delay time.Duration
	// Threshold overrides ConfirmThreshold when positive.
	Threshold int
	Logger    *slog.Logger
}

// Loader loads repository details in batches.
type Loader struct {
	store     *tree.Store
	cache     *cache.DetailCache
	confirm   Confirmer
	progress  Progress
	delay     time.Duration
	threshold int
	logger    *slog.Logger
}

// New creates a Loader.
func New(cfg Config) *Loader {
	l := &Loader{
		store:     cfg.Store,
		cache:     cfg.Cache,
		confirm:   cfg.Confirm,
		progress:  cfg.Progress,
		delay:     cfg.Delay,
		threshold: cfg.Threshold,
		logger:    cfg.Logger,
	}
	if l.delay == 0 {
		l.delay = DefaultDelay
	}
	if l.threshold <= 0 {
		l.threshold = ConfirmThreshold
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Result reports which repositories were loaded. Failed repositories are
// also marked loaded, with no children.
type Result struct {
	Loaded []string
	Failed []string
}

// Total returns the number of repositories processed.
func (r Result) Total() int { return len(r.Loaded) + len(r.Failed) }

// NeedsConfirmation reports whether a batch of count repositories is gated.
func (l *Loader) NeedsConfirmation(count int) bool {
	return count >= l.threshold
}

// fetchable drops nodes that do not name a repository, so the confirmation
// count and progress total cover only what will be fetched.
func (l *Loader) fetchable(repos []*model.TreeNode) []*model.TreeNode {
	out := repos[:0:0]
	for _, repo := range repos {
		if _, _, ok := model.ParseRepoID(repo.ID); !ok {
			l.logger.Warn("skipping node without repository id", "node_id", repo.ID)
			continue
		}
		out = append(out, repo)
	}
	return out
}

// Load fetches the details of repos sequentially and merges them into the
// store in one update. Duplicate ids are loaded once and nodes that are
// not repositories are skipped.
//
// If ctx ends mid-batch the repositories finished so far are still merged
// and ctx.Err() is returned.
func (l *Loader) Load(ctx context.Context, repos []*model.TreeNode) (Result, error) {
	repos = l.fetchable(distinct(repos))
	if len(repos) == 0 {
		return Result{}, nil
	}
	defer metrics.Timer(metrics.BatchLoad)()

	if l.NeedsConfirmation(len(repos)) {
		ok := false
		if l.confirm != nil {
			var err error
			ok, err = l.confirm(ctx, len(repos))
			if err != nil {
				return Result{}, fmt.Errorf("confirm batch load: %w", err)
			}
		}
		if !ok {
			debug.Log("loader: batch of %d declined", len(repos))
			return Result{}, ErrDeclined
		}
	}

	var res Result
	var fetched bool
	var stopErr error
	patches := make(map[string]tree.Patch, len(repos))
	total := len(repos)
	for i, repo := range repos {
		owner, name, _ := model.ParseRepoID(repo.ID)

		upstream := l.cache.State(owner, name) != cache.Loaded
		if upstream && fetched {
			if err := sleep(ctx, l.delay); err != nil {
				stopErr = err
				break
			}
		}

		children, err := l.cache.Get(ctx, owner, name)
		if err != nil && ctx.Err() != nil {
			stopErr = ctx.Err()
			break
		}
		if err != nil {
			l.logger.Warn("repository details unavailable",
				"owner", owner, "repo", name, "error", err)
			res.Failed = append(res.Failed, repo.ID)
		} else {
			res.Loaded = append(res.Loaded, repo.ID)
		}
		patches[repo.ID] = tree.LoadedPatch(children)
		fetched = fetched || upstream

		if l.progress != nil {
			l.progress(i+1, total)
		}
	}

	l.merge(patches)
	debug.Log("loader: batch done, %d loaded, %d failed", len(res.Loaded), len(res.Failed))
	return res, stopErr
}

// LoadOne loads a single repository, as on a manual expand. There is no
// confirmation and no delay.
func (l *Loader) LoadOne(ctx context.Context, repoID string) ([]*model.TreeNode, error) {
	owner, name, ok := model.ParseRepoID(repoID)
	if !ok || model.TypeOfID(repoID) != model.TypeRepository {
		return nil, fmt.Errorf("%w: %s is not a repository", tree.ErrNodeNotFound, repoID)
	}
	children, err := l.cache.Get(ctx, owner, name)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		l.logger.Warn("repository details unavailable",
			"owner", owner, "repo", name, "error", err)
	}
	l.merge(map[string]tree.Patch{repoID: tree.LoadedPatch(children)})
	return children, err
}

// ExpandAll loads every pending repository in the current tree.
func (l *Loader) ExpandAll(ctx context.Context, onlyEnabled bool) (Result, error) {
	return l.Load(ctx, Pending(l.store.Snapshot(), onlyEnabled))
}

func (l *Loader) merge(patches map[string]tree.Patch) {
	if len(patches) == 0 {
		return
	}
	_ = l.store.Update(func(current []*model.TreeNode) ([]*model.TreeNode, error) {
		next, missing := tree.ApplyAll(current, patches)
		// Repositories can vanish when the tree was replaced mid-batch.
		debug.LogIf(len(missing) > 0, "loader: %d repositories no longer in tree", len(missing))
		return next, nil
	})
}

// Pending returns repositories that may have children and are not loaded,
// in tree order. With onlyEnabled, disabled repositories are skipped.
func Pending(roots []*model.TreeNode, onlyEnabled bool) []*model.TreeNode {
	var out []*model.TreeNode
	for _, repo := range tree.Repositories(roots) {
		if repo.IsLoaded || !repo.HasChildren {
			continue
		}
		if onlyEnabled && !repo.IsEnabled() {
			continue
		}
		out = append(out, repo)
	}
	return out
}

func distinct(repos []*model.TreeNode) []*model.TreeNode {
	seen := make(map[string]bool, len(repos))
	out := repos[:0:0]
	for _, r := range repos {
		if r == nil || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
