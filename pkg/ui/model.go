// Package ui is the ghtree terminal interface: a Bubble Tea program that
// renders the resource tree either as a tree or as a flat, sortable,
// paginated list, both projected from the same filtered snapshot.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/ghtree/pkg/debug"
	"github.com/vanderheijden86/ghtree/pkg/filter"
	"github.com/vanderheijden86/ghtree/pkg/loader"
	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/session"
	"github.com/vanderheijden86/ghtree/pkg/tree"
	"github.com/vanderheijden86/ghtree/pkg/view"
	"github.com/vanderheijden86/ghtree/pkg/watcher"
)

type viewMode int

const (
	treeView viewMode = iota
	listView
)

func (v viewMode) String() string {
	if v == listView {
		return "list"
	}
	return "tree"
}

// Config configures the UI.
type Config struct {
	Session *session.Session
	// Bridge must be the one whose Confirm and Progress the session's
	// loader was built with.
	Bridge *Bridge
	// Watcher, when set, reports settings file changes.
	Watcher *watcher.Watcher
	// Reload re-reads settings after the file changed. It reports whether
	// anything the session depends on changed.
	Reload          func() (session.Settings, bool, error)
	PageSize        int
	DefaultView     string
	Theme           string
	RefreshInterval time.Duration
	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
	Renderer  *lipgloss.Renderer
}

type treeLoadedMsg struct {
	rate model.RateLimit
	err  error
}

type rateLimitMsg struct {
	rate model.RateLimit
	err  error
}

type storeChangedMsg struct{ version uint64 }

type expandedMsg struct {
	id  string
	err error
}

type batchDoneMsg struct {
	deep bool
	res  loader.Result
	err  error
}

// settingsChangedMsg means the settings file changed on disk.
type settingsChangedMsg struct{}

type settingsAppliedMsg struct {
	changed bool
	rate    model.RateLimit
	err     error
}

type refreshTickMsg struct{}

type copiedMsg struct {
	url string
	err error
}

// Model is the Bubble Tea model. Update and View run on the event loop
// only; engine work happens in commands.
type Model struct {
	cfg    Config
	sess   *session.Session
	bridge *Bridge
	ctx    context.Context
	cancel context.CancelFunc
	store  <-chan uint64
	unsub  func()

	theme    Theme
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	search   textinput.Model

	projector *view.Projector
	proj      view.Projection
	expanded  map[string]bool

	mode       viewMode
	cursor     int
	listCursor int
	typeIdx    int // -1 means every type
	searching  bool

	loading      bool
	err          error
	rate         *model.RateLimit
	batches      int
	batchCurrent int
	batchTotal   int
	deepRunning  bool
	deepDeclined bool
	confirm      *confirmRequestMsg
	status       string
	statusErr    bool

	width  int
	height int
}

// New creates the model. The tree is loaded by Init.
func New(cfg Config) Model {
	if cfg.Bridge == nil {
		cfg.Bridge = NewBridge()
	}
	if cfg.Clipboard == nil {
		cfg.Clipboard = clipboard.WriteAll
	}
	ctx, cancel := context.WithCancel(context.Background())
	storeCh, unsub := cfg.Session.Store.Subscribe()

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search names, states, metadata"
	search.CharLimit = 120

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		cfg:       cfg,
		sess:      cfg.Session,
		bridge:    cfg.Bridge,
		ctx:       ctx,
		cancel:    cancel,
		store:     storeCh,
		unsub:     unsub,
		theme:     NewTheme(cfg.Renderer, cfg.Theme),
		keys:      defaultKeyMap(),
		help:      help.New(),
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient()),
		search:    search,
		projector: view.NewProjector(cfg.PageSize),
		expanded:  make(map[string]bool),
		typeIdx:   -1,
		loading:   true,
		width:     80,
		height:    24,
	}
	if cfg.DefaultView == "list" {
		m.mode = listView
	}
	return m
}

// Stop cancels outstanding work and detaches from the store.
func (m Model) Stop() {
	m.cancel()
	m.unsub()
}

// Init starts the initial load and the background listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.loadCmd(false),
		m.bridge.wait(),
		waitStore(m.store),
	}
	if m.cfg.Watcher != nil {
		cmds = append(cmds, waitSettings(m.cfg.Watcher))
	}
	if m.cfg.RefreshInterval > 0 {
		cmds = append(cmds, refreshTick(m.cfg.RefreshInterval))
	}
	return tea.Batch(cmds...)
}

func waitStore(ch <-chan uint64) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return storeChangedMsg{version: v}
	}
}

func waitSettings(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return settingsChangedMsg{}
	}
}

func refreshTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

// loadCmd loads the tree and the rate limit. Either failing is a blocking
// error.
func (m Model) loadCmd(refresh bool) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		load := sess.Load
		if refresh {
			load = sess.Refresh
		}
		if err := load(ctx); err != nil {
			return treeLoadedMsg{err: err}
		}
		rl, err := sess.RateLimit(ctx)
		if err != nil {
			return treeLoadedMsg{err: fmt.Errorf("loading rate limit: %w", err)}
		}
		return treeLoadedMsg{rate: rl}
	}
}

func (m Model) rateLimitCmd() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		rl, err := sess.RateLimit(ctx)
		return rateLimitMsg{rate: rl, err: err}
	}
}

func (m Model) expandCmd(id string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		return expandedMsg{id: id, err: sess.Expand(ctx, id)}
	}
}

func (m Model) batchCmd(deep bool, run func(context.Context) (loader.Result, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		res, err := run(ctx)
		return batchDoneMsg{deep: deep, res: res, err: err}
	}
}

func (m Model) reloadSettingsCmd() tea.Cmd {
	sess, ctx, reload := m.sess, m.ctx, m.cfg.Reload
	return func() tea.Msg {
		if reload == nil {
			return settingsAppliedMsg{}
		}
		set, changed, err := reload()
		if err != nil || !changed {
			return settingsAppliedMsg{err: err}
		}
		if err := sess.Reconfigure(ctx, set); err != nil {
			return settingsAppliedMsg{changed: true, err: err}
		}
		rl, err := sess.RateLimit(ctx)
		return settingsAppliedMsg{changed: true, rate: rl, err: err}
	}
}

func copyCmd(write func(string) error, url string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{url: url, err: write(url)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = max(msg.Width-30, 10)
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case treeLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.rate = &msg.rate
		m.resetExpansion()
		m.reproject()
		return m, nil

	case settingsAppliedMsg:
		if msg.changed {
			m.loading = false
			if msg.err != nil {
				m.err = msg.err
				return m, nil
			}
			m.err = nil
			m.rate = &msg.rate
			m.resetExpansion()
			m.reproject()
			m.setStatus("Settings changed, tree reloaded", false)
		} else if msg.err != nil {
			m.setStatus("Reading settings: "+msg.err.Error(), true)
		}
		return m, nil

	case rateLimitMsg:
		if msg.err != nil {
			m.setStatus("Rate limit: "+msg.err.Error(), true)
			return m, nil
		}
		m.rate = &msg.rate
		return m, nil

	case storeChangedMsg:
		m.reproject()
		return m, waitStore(m.store)

	case expandedMsg:
		if msg.err != nil {
			m.setStatus("Could not load details: "+msg.err.Error(), true)
		}
		return m, nil

	case batchDoneMsg:
		return m.finishBatch(msg), nil

	case confirmRequestMsg:
		m.confirm = &msg
		return m, m.bridge.wait()

	case progressMsg:
		m.batchCurrent, m.batchTotal = msg.current, msg.total
		var cmd tea.Cmd
		if msg.total > 0 {
			cmd = m.progress.SetPercent(float64(msg.current) / float64(msg.total))
		}
		return m, tea.Batch(cmd, m.bridge.wait())

	case settingsChangedMsg:
		debug.Log("ui: settings file changed")
		return m, tea.Batch(m.reloadSettingsCmd(), waitSettings(m.cfg.Watcher))

	case refreshTickMsg:
		return m, tea.Batch(m.rateLimitCmd(), refreshTick(m.cfg.RefreshInterval))

	case copiedMsg:
		if msg.err != nil {
			m.setStatus("Copy failed: "+msg.err.Error(), true)
		} else {
			m.setStatus("Copied "+msg.url, false)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
}

func (m *Model) startBatch(deep bool, run func(context.Context) (loader.Result, error)) tea.Cmd {
	m.batches++
	m.batchCurrent, m.batchTotal = 0, 0
	if deep {
		m.deepRunning = true
	}
	return tea.Batch(m.batchCmd(deep, run), m.progress.SetPercent(0))
}

func (m Model) finishBatch(msg batchDoneMsg) Model {
	m.batches = max(m.batches-1, 0)
	if msg.deep {
		m.deepRunning = false
	}
	switch {
	case errors.Is(msg.err, loader.ErrDeclined):
		if msg.deep {
			m.deepDeclined = true
		}
		m.setStatus("Batch load cancelled", false)
	case errors.Is(msg.err, context.Canceled):
	case errors.Is(msg.err, tree.ErrNodeNotFound):
		m.setStatus(msg.err.Error(), true)
	case msg.err != nil:
		m.setStatus("Batch load: "+msg.err.Error(), true)
	case msg.res.Total() > 0:
		s := fmt.Sprintf("Loaded %d repositories", len(msg.res.Loaded))
		if n := len(msg.res.Failed); n > 0 {
			s += fmt.Sprintf(", %d failed", n)
		}
		m.setStatus(s, len(msg.res.Failed) > 0)
	}
	return m
}

// resetExpansion opens the organizations of a freshly loaded tree.
func (m *Model) resetExpansion() {
	m.expanded = make(map[string]bool)
	for _, n := range m.sess.Store.Snapshot() {
		m.expanded[n.ID] = true
	}
	m.cursor, m.listCursor = 0, 0
}

func (m *Model) reproject() {
	roots, version := m.sess.Store.SnapshotVersion()
	m.proj = m.projector.Project(roots, version)
	m.cursor = clamp(m.cursor, len(m.treeRows()))
	m.listCursor = clamp(m.listCursor, len(m.proj.PageRows))
}

func clamp(i, n int) int {
	return min(max(i, 0), max(n-1, 0))
}

func (m Model) filterOptions() filter.Options {
	opts := filter.Options{SearchText: m.search.Value()}
	if types := model.AllTypes(); m.typeIdx >= 0 && m.typeIdx < len(types) {
		opts.SelectedTypes = []model.NodeType{types[m.typeIdx]}
	}
	return opts
}

func (m Model) filterActive() bool {
	return m.projector.Filter().Active()
}

func (m Model) treeRows() []treeRow {
	return visibleRows(m.proj.Tree, m.expanded, m.filterActive())
}

// applyFilter installs the current search and type chip. A filter that can
// match inside unloaded repositories starts a deep search.
func (m *Model) applyFilter() tea.Cmd {
	opts := m.filterOptions()
	m.projector.SetFilter(opts)
	if !opts.Active() {
		m.deepDeclined = false
	}
	m.reproject()

	if !opts.NeedsDetails() || m.deepRunning || m.deepDeclined || m.sess.PendingCount() == 0 {
		return nil
	}
	sess := m.sess
	return m.startBatch(true, func(ctx context.Context) (loader.Result, error) {
		return sess.DeepSearch(ctx, opts)
	})
}

// selected returns the node under the cursor in either view.
func (m Model) selected() *model.TreeNode {
	if m.mode == listView {
		if len(m.proj.PageRows) == 0 {
			return nil
		}
		return tree.Find(m.proj.Tree, m.proj.PageRows[m.listCursor].ID)
	}
	rows := m.treeRows()
	if len(rows) == 0 {
		return nil
	}
	return rows[m.cursor].node
}

// toggleTarget is the organization or repository an enable toggle applies
// to: the selection itself, or in the list view the row's repository.
func (m Model) toggleTarget() string {
	if m.mode == listView && len(m.proj.PageRows) > 0 {
		return m.proj.PageRows[m.listCursor].RepoID
	}
	if n := m.selected(); n != nil && n.Type.IsPersistable() {
		return n.ID
	}
	return ""
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirm != nil {
		switch {
		case key.Matches(msg, m.keys.Accept):
			m.confirm.reply <- true
			m.confirm = nil
		case key.Matches(msg, m.keys.Decline):
			m.confirm.reply <- false
			m.confirm = nil
		}
		return m, nil
	}

	if m.err != nil {
		switch {
		case key.Matches(msg, m.keys.Retry):
			m.err = nil
			m.loading = true
			return m, m.loadCmd(false)
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil
	}

	if m.loading {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.move(1)
	case key.Matches(msg, m.keys.PageUp):
		m.move(-m.bodyHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.move(m.bodyHeight())
	case key.Matches(msg, m.keys.Top):
		m.move(-1 << 30)
	case key.Matches(msg, m.keys.Bottom):
		m.move(1 << 30)
	case key.Matches(msg, m.keys.SwitchView):
		if m.mode == treeView {
			m.mode = listView
		} else {
			m.mode = treeView
		}
	case key.Matches(msg, m.keys.Expand):
		return m, m.expandSelected()
	case key.Matches(msg, m.keys.Toggle):
		id := m.toggleTarget()
		if id == "" {
			m.setStatus("Only organizations and repositories can be enabled or disabled", true)
			return m, nil
		}
		return m, m.startBatch(false, func(ctx context.Context) (loader.Result, error) {
			return m.sess.Toggle(ctx, id)
		})
	case key.Matches(msg, m.keys.ExpandAll):
		sess := m.sess
		return m, m.startBatch(false, sess.ExpandAll)
	case key.Matches(msg, m.keys.SortColumn):
		spec := m.projector.SortSpec()
		spec.Column = spec.Column.Next()
		m.projector.SetSort(spec)
		m.reproject()
	case key.Matches(msg, m.keys.SortDir):
		spec := m.projector.SortSpec()
		spec.Descending = !spec.Descending
		m.projector.SetSort(spec)
		m.reproject()
	case key.Matches(msg, m.keys.PrevPage):
		m.projector.SetPage(m.proj.Page.Index - 1)
		m.listCursor = 0
		m.reproject()
	case key.Matches(msg, m.keys.NextPage):
		if m.proj.Page.HasNext() {
			m.projector.SetPage(m.proj.Page.Index + 1)
			m.listCursor = 0
			m.reproject()
		}
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.TypeChip):
		m.typeIdx++
		if m.typeIdx >= len(model.AllTypes()) {
			m.typeIdx = -1
		}
		return m, m.applyFilter()
	case key.Matches(msg, m.keys.Clear):
		m.search.SetValue("")
		m.typeIdx = -1
		return m, m.applyFilter()
	case key.Matches(msg, m.keys.RateLimit):
		return m, m.rateLimitCmd()
	case key.Matches(msg, m.keys.Copy):
		n := m.selected()
		if n == nil || n.URL == "" {
			m.setStatus("Nothing to copy", true)
			return m, nil
		}
		return m, copyCmd(m.cfg.Clipboard, n.URL)
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		m.setStatus("", false)
		return m, m.loadCmd(true)
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		return m, m.applyFilter()
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.applyFilter())
}

func (m *Model) move(delta int) {
	if m.mode == listView {
		m.listCursor = clamp(m.listCursor+delta, len(m.proj.PageRows))
		return
	}
	m.cursor = clamp(m.cursor+delta, len(m.treeRows()))
}

// expandSelected opens or closes the selected tree node. Opening an
// unloaded repository loads its details.
func (m *Model) expandSelected() tea.Cmd {
	if m.mode != treeView || m.filterActive() {
		return nil
	}
	n := m.selected()
	if n == nil || !n.MayHaveChildren() {
		return nil
	}
	if m.expanded[n.ID] {
		delete(m.expanded, n.ID)
		return nil
	}
	m.expanded[n.ID] = true
	if n.Type == model.TypeRepository && !n.IsLoaded {
		return m.expandCmd(n.ID)
	}
	return nil
}

func (m Model) bodyHeight() int {
	// header, chips, status and help lines
	return max(m.height-4, 1)
}
