// Package view projects the (filtered) resource tree into the two shapes the
// UI renders: the tree itself and a flat, sortable, paginated list of
// concrete items.
package view

import (
	"strings"

	"github.com/vanderheijden86/ghtree/pkg/metrics"
	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/tree"
)

// PathSeparator joins ancestor names in FlatNode.Path.
const PathSeparator = " / "

// Flatten returns one row per concrete item in tree order. Organizations,
// repositories and categories are structural and never become rows, but
// their names appear in each row's path.
func Flatten(roots []*model.TreeNode) []model.FlatNode {
	defer metrics.Timer(metrics.Flatten)()

	var rows []model.FlatNode
	tree.Walk(roots, func(n *model.TreeNode, ancestors []*model.TreeNode) bool {
		if n.Type.IsContainer() {
			return true
		}
		rows = append(rows, flatNode(n, ancestors))
		return true
	})
	return rows
}

func flatNode(n *model.TreeNode, ancestors []*model.TreeNode) model.FlatNode {
	names := make([]string, 0, len(ancestors)+1)
	repoID := ""
	for _, a := range ancestors {
		names = append(names, a.Name)
		if a.Type == model.TypeRepository {
			repoID = a.ID
		}
	}
	names = append(names, n.Name)
	return model.FlatNode{
		ID:       n.ID,
		Name:     n.Name,
		Type:     n.Type,
		Status:   n.Status,
		URL:      n.URL,
		Path:     strings.Join(names, PathSeparator),
		RepoID:   repoID,
		Metadata: n.Metadata,
	}
}
