package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/view"
)

// listColumn is one column of the list view. Width 0 takes what is left.
type listColumn struct {
	title  string
	width  int
	sortBy view.Column
	value  func(r model.FlatNode) string
}

var listColumns = []listColumn{
	{"NAME", 0, view.ColumnName, func(r model.FlatNode) string { return r.Name }},
	{"TYPE", 13, view.ColumnType, func(r model.FlatNode) string { return string(r.Type) }},
	{"STATUS", 12, view.ColumnStatus, func(r model.FlatNode) string { return r.Status }},
	{"UPDATED", 11, view.ColumnUpdatedAt, func(r model.FlatNode) string { return shortDate(r.Metadata["updated_at"]) }},
	{"PATH", 0, view.ColumnPath, func(r model.FlatNode) string { return r.Path }},
}

func shortDate(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02")
}

// columnWidths splits width between the columns; flexible columns share
// the remainder equally.
func columnWidths(width int) []int {
	widths := make([]int, len(listColumns))
	fixed, flex := 0, 0
	for i, c := range listColumns {
		widths[i] = c.width
		fixed += c.width + 1
		if c.width == 0 {
			flex++
		}
	}
	rest := max(width-fixed, flex*8)
	for i, c := range listColumns {
		if c.width == 0 {
			widths[i] = rest / flex
		}
	}
	return widths
}

func cell(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

func (m Model) renderListHeader(widths []int) string {
	spec := m.projector.SortSpec()
	cells := make([]string, len(listColumns))
	for i, c := range listColumns {
		title := c.title
		if c.sortBy == spec.Column {
			if spec.Descending {
				title += " ↓"
			} else {
				title += " ↑"
			}
		}
		cells[i] = cell(title, widths[i])
	}
	return m.theme.Header.Padding(0).Width(m.width).Render(strings.Join(cells, " "))
}

func (m Model) renderListRow(r model.FlatNode, selected bool, widths []int) string {
	cells := make([]string, len(listColumns))
	for i, c := range listColumns {
		text := cell(c.value(r), widths[i])
		if c.sortBy == view.ColumnStatus {
			text = m.theme.StatusStyle(r.Status).Render(text)
		}
		cells[i] = text
	}
	line := strings.Join(cells, " ")
	if selected {
		return m.theme.Selected.Width(m.width).Render(line)
	}
	return line
}

func (m Model) renderList(height int) string {
	rows := m.proj.PageRows
	if len(rows) == 0 {
		return m.renderEmpty()
	}
	widths := columnWidths(m.width)
	var sb strings.Builder
	sb.WriteString(m.renderListHeader(widths))
	bodyHeight := max(height-2, 1)
	start, end := window(m.listCursor, len(rows), bodyHeight)
	for i := start; i < end; i++ {
		sb.WriteString("\n")
		sb.WriteString(m.renderListRow(rows[i], i == m.listCursor, widths))
	}
	info := m.proj.Page
	sb.WriteString("\n")
	sb.WriteString(m.theme.Muted.Render(fmt.Sprintf(" Page %d/%d (%d-%d of %d)",
		info.Index+1, info.Pages, info.Start+min(1, info.Total), info.End, info.Total)))
	return sb.String()
}
