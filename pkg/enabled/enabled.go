// Package enabled manages the per-organization and per-repository enabled
// flag.
//
// Toggling a node cascades the value to every descendant in the tree, but
// only organization and repository flags are persisted. Persistence is fire
// and forget: the in-memory tree always reflects the toggle, and a failed
// save is logged, never reverted.
package enabled

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/vanderheijden86/ghtree/pkg/debug"
	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/tree"
)

// Persister stores enabled records.
type Persister interface {
	SaveEnabled(ctx context.Context, records []model.EnabledRecord) error
	LoadEnabled(ctx context.Context) ([]model.EnabledRecord, error)
}

// Config configures a Manager.
type Config struct {
	Store *tree.Store
	// Persister may be nil, in which case nothing is saved.
	Persister Persister
	Logger    *slog.Logger
}

// Manager applies enabled toggles to a tree.Store and persists them.
type Manager struct {
	store     *tree.Store
	persister Persister
	logger    *slog.Logger

	mu    sync.Mutex
	known map[string]bool
	seq   uint64

	saveMu    sync.Mutex
	savedSeq  uint64
	wg        sync.WaitGroup
	lastError error
}

// Result is the outcome of a toggle.
type Result struct {
	// Roots is the tree right after the toggle.
	Roots []*model.TreeNode
	// Pending holds repositories in the toggled subtree that are now
	// enabled but not loaded yet, in tree order.
	Pending []*model.TreeNode
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     cfg.Store,
		persister: cfg.Persister,
		logger:    logger,
		known:     make(map[string]bool),
	}
}

// SetEnabled sets the flag on nodeID and all of its descendants. The
// returned error is only ever tree.ErrNodeNotFound; persistence failures are
// logged.
func (m *Manager) SetEnabled(ctx context.Context, nodeID string, enabled bool) (Result, error) {
	var res Result
	err := m.store.Update(func(current []*model.TreeNode) ([]*model.TreeNode, error) {
		next, err := tree.Rewrite(current, nodeID, func(n *model.TreeNode) *model.TreeNode {
			return Cascade(n, enabled)
		})
		if err != nil {
			return nil, err
		}
		res.Roots = next
		return next, nil
	})
	if err != nil {
		return Result{}, err
	}

	toggled := tree.Find(res.Roots, nodeID)
	if enabled {
		res.Pending = PendingRepos(toggled)
	}
	debug.Log("enabled: %s -> %v (%d pending)", nodeID, enabled, len(res.Pending))

	m.mu.Lock()
	tree.Walk([]*model.TreeNode{toggled}, func(n *model.TreeNode, _ []*model.TreeNode) bool {
		if n.Type.IsPersistable() {
			m.known[n.ID] = enabled
			return true
		}
		return false
	})
	m.seq++
	seq := m.seq
	records := m.recordsLocked()
	m.mu.Unlock()

	m.persist(ctx, seq, records)
	return res, nil
}

// Restore loads persisted records and applies them to the current tree.
// A load failure is logged and returned; the tree is left as is.
func (m *Manager) Restore(ctx context.Context) error {
	if m.persister == nil {
		return nil
	}
	records, err := m.persister.LoadEnabled(ctx)
	if err != nil {
		m.logger.Warn("load enabled state failed", "error", err)
		return err
	}

	m.mu.Lock()
	for _, r := range records {
		m.known[r.NodeID] = r.Enabled
	}
	m.mu.Unlock()

	return m.store.Update(func(current []*model.TreeNode) ([]*model.TreeNode, error) {
		return Apply(current, records), nil
	})
}

// Reapply applies the records the manager already knows to the current
// tree, as after a refresh replaced it.
func (m *Manager) Reapply() error {
	records := m.Records()
	return m.store.Update(func(current []*model.TreeNode) ([]*model.TreeNode, error) {
		return Apply(current, records), nil
	})
}

// Records returns the known organization and repository records sorted by
// node id.
func (m *Manager) Records() []model.EnabledRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordsLocked()
}

func (m *Manager) recordsLocked() []model.EnabledRecord {
	records := make([]model.EnabledRecord, 0, len(m.known))
	for id, v := range m.known {
		records = append(records, model.EnabledRecord{NodeID: id, Enabled: v})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].NodeID < records[j].NodeID })
	return records
}

// persist saves records in the background. Saves are serialized and a save
// older than one already written is skipped.
func (m *Manager) persist(ctx context.Context, seq uint64, records []model.EnabledRecord) {
	if m.persister == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.saveMu.Lock()
		defer m.saveMu.Unlock()
		if seq <= m.savedSeq {
			return
		}
		if err := m.persister.SaveEnabled(ctx, records); err != nil {
			m.lastError = err
			m.logger.Warn("save enabled state failed",
				"records", len(records), "error", err)
			return
		}
		m.savedSeq = seq
		m.lastError = nil
	}()
}

// Wait blocks until background saves have finished and returns the error of
// the most recent failed save, if no later save succeeded.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	return m.lastError
}

// Cascade returns a copy of the subtree rooted at n with every node's
// enabled flag set. The input is not modified.
func Cascade(n *model.TreeNode, enabled bool) *model.TreeNode {
	out := n.WithEnabled(enabled)
	if len(n.Children) > 0 {
		out.Children = make([]*model.TreeNode, len(n.Children))
		for i, c := range n.Children {
			if c == nil {
				continue
			}
			out.Children[i] = Cascade(c, enabled)
		}
	}
	return out
}

// PendingRepos returns repositories at or below n that are enabled and not
// loaded yet.
func PendingRepos(n *model.TreeNode) []*model.TreeNode {
	if n == nil {
		return nil
	}
	var pending []*model.TreeNode
	tree.Walk([]*model.TreeNode{n}, func(node *model.TreeNode, _ []*model.TreeNode) bool {
		if node.Type == model.TypeRepository {
			if node.IsEnabled() && !node.IsLoaded {
				pending = append(pending, node)
			}
			return false
		}
		return true
	})
	return pending
}

// Apply applies persisted records top-down: a record sets its node and
// cascades to descendants, and a deeper record overrides the cascade from
// above. Nodes outside any recorded subtree are reused unchanged.
func Apply(roots []*model.TreeNode, records []model.EnabledRecord) []*model.TreeNode {
	if len(records) == 0 {
		return roots
	}
	byID := make(map[string]bool, len(records))
	for _, r := range records {
		byID[r.NodeID] = r.Enabled
	}
	out, _ := applyRecords(roots, byID, nil)
	return out
}

func applyRecords(nodes []*model.TreeNode, byID map[string]bool, inherited *bool) ([]*model.TreeNode, bool) {
	var out []*model.TreeNode
	for i, n := range nodes {
		if n == nil {
			continue
		}
		want := inherited
		if v, ok := byID[n.ID]; ok {
			want = &v
		}
		next := n
		if want != nil && (n.Enabled == nil || *n.Enabled != *want) {
			next = n.WithEnabled(*want)
		}
		if children, changed := applyRecords(n.Children, byID, want); changed {
			if next == n {
				next = n.Clone()
			}
			next.Children = children
		}
		if next != n {
			if out == nil {
				out = make([]*model.TreeNode, len(nodes))
				copy(out, nodes)
			}
			out[i] = next
		}
	}
	if out == nil {
		return nodes, false
	}
	return out, true
}
