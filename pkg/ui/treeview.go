package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/ghtree/pkg/cache"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// treeRow is one visible line of the tree view.
type treeRow struct {
	node  *model.TreeNode
	depth int
	// lastAt[d] is true when the ancestor at depth d (or the node itself, at
	// the final index) is the last of its siblings.
	lastAt []bool
}

// visibleRows walks roots depth-first, descending into expanded nodes.
// With expandAll every node counts as expanded, as while filtering.
func visibleRows(roots []*model.TreeNode, expanded map[string]bool, expandAll bool) []treeRow {
	var rows []treeRow
	var walk func(nodes []*model.TreeNode, depth int, lastAt []bool)
	walk = func(nodes []*model.TreeNode, depth int, lastAt []bool) {
		for i, n := range nodes {
			la := append(lastAt[:depth:depth], i == len(nodes)-1)
			rows = append(rows, treeRow{node: n, depth: depth, lastAt: la})
			if (expandAll || expanded[n.ID]) && len(n.Children) > 0 {
				walk(n.Children, depth+1, la)
			}
		}
	}
	walk(roots, 0, nil)
	return rows
}

// treePrefix draws the branch characters for a row.
func treePrefix(r treeRow) string {
	if r.depth == 0 {
		return ""
	}
	var sb strings.Builder
	for d := 1; d < r.depth; d++ {
		if r.lastAt[d] {
			sb.WriteString("    ")
		} else {
			sb.WriteString("│   ")
		}
	}
	if r.lastAt[r.depth] {
		sb.WriteString("└── ")
	} else {
		sb.WriteString("├── ")
	}
	return sb.String()
}

// expandIndicator shows whether a node can be opened.
func expandIndicator(n *model.TreeNode, open bool, state cache.EntryState) string {
	switch {
	case state == cache.Loading:
		return "…"
	case !n.MayHaveChildren():
		return "•"
	case open && n.ChildrenKnown():
		return "▾"
	default:
		return "▸"
	}
}

// renderTreeRow renders one tree line, width cells wide at most.
func (m Model) renderTreeRow(r treeRow, selected bool, width int) string {
	n := r.node
	state := cache.NotLoaded
	if n.Type == model.TypeRepository && !n.IsLoaded {
		if owner, repo, ok := model.ParseRepoID(n.ID); ok {
			state = m.sess.Cache.State(owner, repo)
		}
	}
	open := m.expanded[n.ID] || m.filterActive()

	prefix := treePrefix(r)
	lead := prefix + expandIndicator(n, open, state) + " " + TypeIcon(n.Type) + " "
	name := n.Name
	if !n.IsEnabled() && (n.Type == model.TypeOrganization || n.Type == model.TypeRepository) {
		name += " (disabled)"
	}
	status := n.Status

	avail := width - runewidth.StringWidth(lead)
	if status != "" {
		avail -= runewidth.StringWidth(status) + 1
	}
	name = runewidth.Truncate(name, max(avail, 1), "…")

	line := m.theme.Prefix.Render(prefix) +
		strings.TrimPrefix(lead, prefix) +
		m.theme.NodeStyle(n).Render(name)
	if status != "" {
		line += " " + m.theme.StatusStyle(status).Render(status)
	}
	if selected {
		return m.theme.Selected.Width(width).Render(line)
	}
	return line
}

func (m Model) renderTree(height int) string {
	rows := m.treeRows()
	if len(rows) == 0 {
		return m.renderEmpty()
	}
	start, end := window(m.cursor, len(rows), height)
	var sb strings.Builder
	for i := start; i < end; i++ {
		sb.WriteString(m.renderTreeRow(rows[i], i == m.cursor, m.width))
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// window returns the slice of a list of total rows that keeps cursor
// visible in height lines.
func window(cursor, total, height int) (start, end int) {
	if height <= 0 || total <= height {
		return 0, total
	}
	start = cursor - height/2
	start = min(max(start, 0), total-height)
	return start, start + height
}
