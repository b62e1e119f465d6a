// Package filter derives a filtered view of the resource tree from a search
// string and a set of node types. Everything here is pure: inputs are never
// modified and untouched subtrees are shared with the input.
package filter

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/ghtree/pkg/metrics"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// Options is the active filter.
type Options struct {
	SearchText    string
	SelectedTypes []model.NodeType
}

// Active reports whether the options filter anything.
func (o Options) Active() bool {
	return strings.TrimSpace(o.SearchText) != "" || len(o.SelectedTypes) > 0
}

// NeedsDetails reports whether the filter could match nodes below the
// repository level, which are only present once details are loaded.
func (o Options) NeedsDetails() bool {
	if strings.TrimSpace(o.SearchText) != "" {
		return true
	}
	for _, t := range o.SelectedTypes {
		if t != model.TypeOrganization && t != model.TypeRepository {
			return true
		}
	}
	return false
}

// Equal reports whether two options filter identically.
func (o Options) Equal(other Options) bool {
	if strings.TrimSpace(o.SearchText) != strings.TrimSpace(other.SearchText) {
		return false
	}
	a, b := o.typeSet(), other.typeSet()
	if len(a) != len(b) {
		return false
	}
	for t := range a {
		if !b[t] {
			return false
		}
	}
	return true
}

func (o Options) typeSet() map[model.NodeType]bool {
	set := make(map[model.NodeType]bool, len(o.SelectedTypes))
	for _, t := range o.SelectedTypes {
		set[t] = true
	}
	return set
}

type matcher struct {
	needle string
	types  map[model.NodeType]bool
}

func newMatcher(opts Options) matcher {
	return matcher{
		needle: strings.ToLower(strings.TrimSpace(opts.SearchText)),
		types:  opts.typeSet(),
	}
}

func (m matcher) matches(n *model.TreeNode) bool {
	if len(m.types) > 0 && !m.types[n.Type] {
		return false
	}
	if m.needle == "" {
		return true
	}
	if contains(n.Name, m.needle) || contains(string(n.Type), m.needle) || contains(n.Status, m.needle) {
		return true
	}
	for _, v := range n.Metadata {
		if v != nil && contains(fmt.Sprint(v), m.needle) {
			return true
		}
	}
	return false
}

func contains(s, lowerNeedle string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerNeedle)
}

// Matches reports whether a single node satisfies opts, ignoring its
// position in the tree.
func Matches(n *model.TreeNode, opts Options) bool {
	return newMatcher(opts).matches(n)
}

// Apply returns the filtered tree.
//
// With no active filter roots is returned as is. Otherwise nodes are
// evaluated top-down: a matching node is kept with its whole subtree, and a
// non-matching node is kept only if some descendant survives. Disabled
// repositories are dropped together with everything below them, wherever
// they appear. Organizations are kept on the strength of their descendants
// whatever their own enabled flag says.
func Apply(roots []*model.TreeNode, opts Options) []*model.TreeNode {
	if !opts.Active() {
		return roots
	}
	defer metrics.Timer(metrics.FilterApply)()
	m := newMatcher(opts)
	return m.filter(roots)
}

func (m matcher) filter(nodes []*model.TreeNode) []*model.TreeNode {
	out := make([]*model.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || excluded(n) {
			continue
		}
		if m.matches(n) {
			out = append(out, withoutDisabled(n))
			continue
		}
		kept := m.filter(n.Children)
		if len(kept) == 0 {
			continue
		}
		clone := n.Clone()
		clone.Children = kept
		out = append(out, clone)
	}
	return out
}

func excluded(n *model.TreeNode) bool {
	return n.Type == model.TypeRepository && !n.IsEnabled()
}

// withoutDisabled returns n with disabled repositories pruned from its
// subtree, sharing every subtree that needs no pruning.
func withoutDisabled(n *model.TreeNode) *model.TreeNode {
	if len(n.Children) == 0 {
		return n
	}
	var kept []*model.TreeNode
	changed := false
	for i, c := range n.Children {
		if c == nil || excluded(c) {
			if !changed {
				kept = append(kept, n.Children[:i]...)
				changed = true
			}
			continue
		}
		next := withoutDisabled(c)
		if next != c && !changed {
			kept = append(kept, n.Children[:i]...)
			changed = true
		}
		if changed {
			kept = append(kept, next)
		}
	}
	if !changed {
		return n
	}
	clone := n.Clone()
	if kept == nil {
		kept = []*model.TreeNode{}
	}
	clone.Children = kept
	return clone
}
