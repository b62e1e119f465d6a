package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

// Adaptive palette (Dracula on dark terminals, WCAG AA on light ones).
var (
	ColorText      = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo      = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorHighlight = lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"}
	ColorOnPrimary = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
)

// Theme holds the styles the views render with. Styles are built once so
// rendering a frame allocates no new ones.
type Theme struct {
	Renderer *lipgloss.Renderer

	Base     lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Disabled lipgloss.Style
	Title    lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Success  lipgloss.Style
	Chip     lipgloss.Style
	ChipOn   lipgloss.Style
	Modal    lipgloss.Style
	Prefix   lipgloss.Style

	types map[model.NodeType]lipgloss.Style
}

// NewTheme builds the named theme ("dark", "light" or "auto"). Unknown
// names behave like "auto", which follows the terminal background.
func NewTheme(r *lipgloss.Renderer, name string) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	switch name {
	case "dark":
		r.SetHasDarkBackground(true)
	case "light":
		r.SetHasDarkBackground(false)
	}

	t := Theme{Renderer: r}
	t.Base = r.NewStyle().Foreground(ColorText)
	t.Header = r.NewStyle().
		Background(ColorPrimary).
		Foreground(ColorOnPrimary).
		Bold(true).
		Padding(0, 1)
	t.Selected = r.NewStyle().Background(ColorHighlight).Bold(true)
	t.Muted = r.NewStyle().Foreground(ColorMuted)
	t.Disabled = r.NewStyle().Foreground(ColorMuted).Strikethrough(true)
	t.Title = r.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Error = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.Warning = r.NewStyle().Foreground(ColorWarning)
	t.Success = r.NewStyle().Foreground(ColorSuccess)
	t.Chip = r.NewStyle().Foreground(ColorMuted).Padding(0, 1)
	t.ChipOn = r.NewStyle().Background(ColorInfo).Foreground(ColorOnPrimary).Padding(0, 1)
	t.Modal = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(1, 2)
	t.Prefix = r.NewStyle().Foreground(ColorMuted)

	t.types = map[model.NodeType]lipgloss.Style{
		model.TypeOrganization: r.NewStyle().Foreground(ColorPrimary).Bold(true),
		model.TypeRepository:   r.NewStyle().Foreground(ColorInfo).Bold(true),
	}
	return t
}

// NodeStyle returns the style for a node name.
func (t Theme) NodeStyle(n *model.TreeNode) lipgloss.Style {
	if !n.IsEnabled() {
		return t.Disabled
	}
	if s, ok := t.types[n.Type]; ok {
		return s
	}
	if n.Type.IsCategory() {
		return t.Muted
	}
	return t.Base
}

// StatusStyle colours GitHub states and conclusions.
func (t Theme) StatusStyle(status string) lipgloss.Style {
	switch status {
	case "success", "completed", "open", "online", "active":
		return t.Success
	case "failure", "cancelled", "timed_out", "offline", "startup_failure":
		return t.Error
	case "in_progress", "queued", "pending", "waiting", "action_required":
		return t.Warning
	default:
		return t.Muted
	}
}

// TypeIcon is a one-cell marker per node type.
func TypeIcon(t model.NodeType) string {
	switch t {
	case model.TypeOrganization:
		return "◆"
	case model.TypeRepository:
		return "▣"
	case model.TypeWorkflow:
		return "⚙"
	case model.TypeWorkflowRun:
		return "▶"
	case model.TypeRunner:
		return "⛭"
	case model.TypeBranch:
		return "⎇"
	case model.TypePullRequest:
		return "⇄"
	case model.TypeIssue:
		return "●"
	default:
		return "▤"
	}
}
