package tree

import (
	"sync"

	"github.com/vanderheijden86/ghtree/pkg/debug"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// Store is the single owner of the current tree value.
//
// Readers take a Snapshot and may keep it as long as they like. Writers go
// through Update, which recomputes the next tree from whatever is current at
// the moment the write lock is held, so a late writer cannot resurrect data
// from a stale snapshot.
type Store struct {
	mu      sync.RWMutex
	roots   []*model.TreeNode
	version uint64
	subs    map[int]chan uint64
	nextSub int
}

// NewStore returns a store holding roots at version 1.
func NewStore(roots []*model.TreeNode) *Store {
	return &Store{roots: roots, version: 1, subs: make(map[int]chan uint64)}
}

// Snapshot returns the current roots. The returned slice and nodes must be
// treated as read-only.
func (s *Store) Snapshot() []*model.TreeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots
}

// SnapshotVersion returns the current roots together with their version.
func (s *Store) SnapshotVersion() ([]*model.TreeNode, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots, s.version
}

// Version returns a counter that increases on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Replace swaps in a whole new tree, as on refresh or settings change.
func (s *Store) Replace(roots []*model.TreeNode) uint64 {
	s.mu.Lock()
	s.roots = roots
	v := s.bumpLocked()
	s.mu.Unlock()
	debug.Log("tree: replaced, version %d", v)
	return v
}

// Update computes the next tree from the current one under the write lock.
// fn must be pure and quick. When fn returns an error the tree is left
// unchanged and the error is returned.
func (s *Store) Update(fn func(current []*model.TreeNode) ([]*model.TreeNode, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.roots)
	if err != nil {
		return err
	}
	if sameSlice(next, s.roots) {
		return nil
	}
	s.roots = next
	s.bumpLocked()
	return nil
}

// Patch applies a single-node patch.
func (s *Store) Patch(id string, p Patch) error {
	return s.Update(func(current []*model.TreeNode) ([]*model.TreeNode, error) {
		return Apply(current, id, p)
	})
}

// Subscribe returns a channel that receives the new version after each
// change. Intermediate versions may be coalesced; the latest is always
// delivered. Call cancel to stop receiving.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) bumpLocked() uint64 {
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- s.version:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.version:
			default:
			}
		}
	}
	return s.version
}

func sameSlice(a, b []*model.TreeNode) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return (a == nil) == (b == nil)
	}
	return &a[0] == &b[0]
}
