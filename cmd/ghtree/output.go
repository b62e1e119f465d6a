package main

import (
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/view"
)

// nodeLabel is a node's name with its status and state markers.
func nodeLabel(n *model.TreeNode) string {
	label := n.Name
	if n.Status != "" {
		label += " [" + n.Status + "]"
	}
	if n.Type.IsPersistable() && !n.IsEnabled() {
		label += " (disabled)"
	} else if n.MayHaveChildren() && !n.ChildrenKnown() {
		label += " …"
	}
	return label
}

// printTree writes roots as an indented tree. Lines longer than width cells
// are truncated; width 0 means no limit.
func printTree(w io.Writer, roots []*model.TreeNode, width int) {
	var walk func(nodes []*model.TreeNode, prefix string, depth int)
	walk = func(nodes []*model.TreeNode, prefix string, depth int) {
		for i, n := range nodes {
			branch, next := "", ""
			if depth > 0 {
				if i == len(nodes)-1 {
					branch, next = "└── ", prefix+"    "
				} else {
					branch, next = "├── ", prefix+"│   "
				}
			}
			line := prefix + branch + nodeLabel(n)
			if width > 0 {
				line = runewidth.Truncate(line, width, "…")
			}
			fmt.Fprintln(w, line)
			walk(n.Children, next, depth+1)
		}
	}
	walk(roots, "", 0)
}

// renderRows writes one page of list rows as a table with a page footer.
func renderRows(w io.Writer, rows []model.FlatNode, info view.PageInfo) {
	if info.Total == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Type", "Status", "Updated", "Path"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Name, r.Type, r.Status, metaDate(r.Metadata["updated_at"]), r.Path})
	}
	t.Render()
	fmt.Fprintf(w, "Page %d/%d (%d-%d of %d)\n", info.Index+1, info.Pages, info.Start+1, info.End, info.Total)
}

func metaDate(v any) string {
	s, _ := v.(string)
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return ts.Local().Format("2006-01-02 15:04")
}

// renderRateLimit writes the rate limit as a one-row table.
func renderRateLimit(w io.Writer, rl model.RateLimit) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Limit", "Remaining", "Used", "Resets"})
	t.AppendRow(table.Row{rl.Limit, rl.Remaining, rl.Used, time.Unix(rl.Reset, 0).Local().Format("15:04:05")})
	t.Render()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
