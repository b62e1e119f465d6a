package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/ghtree/pkg/loader"
	"github.com/vanderheijden86/ghtree/pkg/metrics"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// View implements tea.Model.
func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	switch {
	case m.err != nil:
		return m.renderError()
	case m.loading:
		return m.renderLoading()
	}

	var body string
	if m.mode == listView {
		body = m.renderList(m.bodyHeight())
	} else {
		body = m.renderTree(m.bodyHeight())
	}
	if m.confirm != nil {
		return m.renderConfirm()
	}
	if m.help.ShowAll {
		body = m.help.View(m.keys)
	}

	// Pad the body so the footer stays at the bottom.
	if lines := strings.Count(body, "\n") + 1; lines < m.bodyHeight() {
		body += strings.Repeat("\n", m.bodyHeight()-lines)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderChips(),
		body,
		m.renderStatus(),
		m.help.ShortHelpView(m.keys.ShortHelp()),
	)
}

// renderHeader: "ghtree │ tree view │ 3 orgs        rate 4890/5000 resets 14:05"
func (m Model) renderHeader() string {
	left := fmt.Sprintf("ghtree │ %s view │ %d orgs", m.mode, len(m.proj.Tree))
	if pending := m.sess.PendingCount(); pending > 0 {
		left += fmt.Sprintf(" │ %d repos not loaded", pending)
	}
	right := ""
	if m.rate != nil {
		right = fmt.Sprintf("rate %d/%d resets %s",
			m.rate.Remaining, m.rate.Limit, time.Unix(m.rate.Reset, 0).Format("15:04"))
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	style := m.theme.Header
	if m.rate != nil && m.rate.Low(10) {
		style = style.Background(ColorDanger)
	}
	return style.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// renderChips shows the search input and the type filter chips.
func (m Model) renderChips() string {
	var parts []string
	if m.searching || m.search.Value() != "" {
		parts = append(parts, m.search.View())
	}
	chip := "all types"
	style := m.theme.Chip
	if opts := m.filterOptions(); len(opts.SelectedTypes) > 0 {
		chip = "type: " + string(opts.SelectedTypes[0])
		style = m.theme.ChipOn
	}
	parts = append(parts, style.Render(chip))
	if m.mode == listView {
		spec := m.projector.SortSpec()
		dir := "asc"
		if spec.Descending {
			dir = "desc"
		}
		parts = append(parts, m.theme.Chip.Render(fmt.Sprintf("sort: %s %s", spec.Column, dir)))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderStatus() string {
	if m.batches > 0 {
		label := "Loading repository details"
		if m.batchTotal > 0 {
			label = fmt.Sprintf("Loading %d/%d", m.batchCurrent, m.batchTotal)
		}
		return m.spinner.View() + " " + label + " " + m.progress.View()
	}
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return m.theme.Error.Render(m.status)
	}
	return m.theme.Success.Render(m.status)
}

func (m Model) renderEmpty() string {
	msg := "No organizations to show."
	if m.filterActive() {
		msg = "Nothing matches the current filter. Press esc to clear it."
		if m.deepRunning {
			msg = "Searching repository details…"
		}
	} else if m.mode == listView {
		msg = "No items loaded yet. Expand repositories or press X to load all enabled ones."
	}
	return m.theme.Muted.Render(msg)
}

func (m Model) renderLoading() string {
	text := m.spinner.View() + " Loading organizations and repositories…"
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, text)
}

func (m Model) renderError() string {
	box := m.theme.Modal.BorderForeground(ColorDanger).Render(
		m.theme.Error.Render("Could not load the resource tree") + "\n\n" +
			wrap(m.err.Error(), max(m.width-12, 20)) + "\n\n" +
			m.theme.Muted.Render("r retry • q quit"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderConfirm() string {
	count := m.confirm.count
	eta := time.Duration(count) * loader.DefaultDelay
	text := m.theme.Title.Render("Load repository details?") + "\n\n" +
		fmt.Sprintf("This will fetch details for %d repositories,\n", count) +
		fmt.Sprintf("about %d API requests each (at least %s).", len(model.Categories()), eta.Round(100*time.Millisecond)) + "\n\n"
	if m.rate != nil {
		text += m.theme.Muted.Render(fmt.Sprintf("Rate limit remaining: %d/%d", m.rate.Remaining, m.rate.Limit)) + "\n\n"
	}
	text += "y load • n cancel"
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.theme.Modal.Render(text))
}

// wrap breaks s into lines of at most width cells on spaces.
func wrap(s string, width int) string {
	var out, line strings.Builder
	for _, word := range strings.Fields(s) {
		if line.Len() > 0 && lipgloss.Width(line.String())+1+lipgloss.Width(word) > width {
			out.WriteString(line.String() + "\n")
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	out.WriteString(line.String())
	return out.String()
}
