package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Expand     key.Binding
	Toggle     key.Binding
	ExpandAll  key.Binding
	SwitchView key.Binding
	SortColumn key.Binding
	SortDir    key.Binding
	PrevPage   key.Binding
	NextPage   key.Binding
	Search     key.Binding
	TypeChip   key.Binding
	RateLimit  key.Binding
	Copy       key.Binding
	Refresh    key.Binding
	Retry      key.Binding
	Accept     key.Binding
	Decline    key.Binding
	Clear      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:     key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Top:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:     key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Expand:     key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand")),
		Toggle:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enable/disable")),
		ExpandAll:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "load all enabled")),
		SwitchView: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "tree/list")),
		SortColumn: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		SortDir:    key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sort direction")),
		PrevPage:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev page")),
		NextPage:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		TypeChip:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "type filter")),
		RateLimit:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "rate limit")),
		Copy:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy url")),
		Refresh:    key.NewBinding(key.WithKeys("f5"), key.WithHelp("F5", "refresh")),
		Retry:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Accept:     key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "load")),
		Decline:    key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "cancel")),
		Clear:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear filter")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Expand, k.Toggle, k.SwitchView, k.Search, k.TypeChip, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Expand, k.Toggle, k.ExpandAll, k.SwitchView},
		{k.SortColumn, k.SortDir, k.PrevPage, k.NextPage},
		{k.Search, k.TypeChip, k.Clear, k.Copy},
		{k.RateLimit, k.Refresh, k.Help, k.Quit},
	}
}
