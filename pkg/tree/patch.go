// Package tree holds the canonical resource tree and the structural-sharing
// updates applied to it.
//
// Nodes reachable from a snapshot are never mutated. Every update copies the
// target node and its ancestor chain and reuses every other subtree, so
// consumers can compare pointers to find what changed.
package tree

import (
	"errors"
	"fmt"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

// ErrNodeNotFound is returned when an update targets an id that is not in
// the tree.
var ErrNodeNotFound = errors.New("node not found")

// Patch describes the fields to replace on a single node. Nil pointers and a
// false SetChildren leave the corresponding field untouched.
type Patch struct {
	// Children replaces the child list when SetChildren is true. A nil
	// slice with SetChildren resets children to "unknown".
	Children    []*model.TreeNode
	SetChildren bool
	IsLoaded    *bool
	Enabled     *bool
}

// LoadedPatch marks a node as loaded with the given children. A nil slice is
// stored as empty, since a loaded node always has known children.
func LoadedPatch(children []*model.TreeNode) Patch {
	if children == nil {
		children = []*model.TreeNode{}
	}
	return Patch{Children: children, SetChildren: true, IsLoaded: model.Bool(true)}
}

// EnabledPatch sets only the enabled flag.
func EnabledPatch(enabled bool) Patch {
	return Patch{Enabled: model.Bool(enabled)}
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return !p.SetChildren && p.IsLoaded == nil && p.Enabled == nil
}

// applyTo returns a patched copy of n.
func (p Patch) applyTo(n *model.TreeNode) *model.TreeNode {
	out := n.Clone()
	if p.SetChildren {
		out.Children = p.Children
	}
	if p.IsLoaded != nil {
		out.IsLoaded = *p.IsLoaded
	}
	if p.Enabled != nil {
		out.Enabled = model.Bool(*p.Enabled)
	}
	if out.IsLoaded && out.Children == nil {
		out.Children = []*model.TreeNode{}
	}
	return out
}

// Apply returns a new root list with patch applied to the node with the given
// id. Only that node and its ancestors are copied.
func Apply(roots []*model.TreeNode, id string, patch Patch) ([]*model.TreeNode, error) {
	return Rewrite(roots, id, patch.applyTo)
}

// Rewrite replaces the node with the given id by fn(node), copying the
// ancestor chain. fn must not mutate its argument.
func Rewrite(roots []*model.TreeNode, id string, fn func(*model.TreeNode) *model.TreeNode) ([]*model.TreeNode, error) {
	next, ok := rewrite(roots, id, fn)
	if !ok {
		return roots, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return next, nil
}

func rewrite(nodes []*model.TreeNode, id string, fn func(*model.TreeNode) *model.TreeNode) ([]*model.TreeNode, bool) {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		var replacement *model.TreeNode
		if n.ID == id {
			replacement = fn(n)
		} else if children, ok := rewrite(n.Children, id, fn); ok {
			replacement = n.Clone()
			replacement.Children = children
		} else {
			continue
		}
		out := make([]*model.TreeNode, len(nodes))
		copy(out, nodes)
		out[i] = replacement
		return out, true
	}
	return nil, false
}

// ApplyAll applies several patches in one pass and returns one new tree.
// Ids that are not present are returned in missing; the patches that did
// match are still applied.
func ApplyAll(roots []*model.TreeNode, patches map[string]Patch) (next []*model.TreeNode, missing []string) {
	if len(patches) == 0 {
		return roots, nil
	}
	seen := make(map[string]bool, len(patches))
	next, _ = applyAll(roots, patches, seen)
	for id := range patches {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return next, missing
}

func applyAll(nodes []*model.TreeNode, patches map[string]Patch, seen map[string]bool) ([]*model.TreeNode, bool) {
	var out []*model.TreeNode
	for i, n := range nodes {
		if len(seen) == len(patches) {
			break
		}
		if n == nil {
			continue
		}
		next := n
		if p, ok := patches[n.ID]; ok && !seen[n.ID] {
			seen[n.ID] = true
			next = p.applyTo(n)
		}
		if children, changed := applyAll(next.Children, patches, seen); changed {
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
