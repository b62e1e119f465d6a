package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/ghtree/pkg/loader"
	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/session"
	"github.com/vanderheijden86/ghtree/pkg/testutil"
	"github.com/vanderheijden86/ghtree/pkg/tree"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	mu      sync.Mutex
	roots   func() []*model.TreeNode
	treeErr error
	fetches int
}

func (f *fakeSource) FetchTree(context.Context, []string) ([]*model.TreeNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	return f.roots(), nil
}

func (f *fakeSource) FetchRepoDetails(_ context.Context, owner, repo string) ([]*model.TreeNode, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	cats := testutil.NewDefault().DetailsWith(owner, repo, map[model.NodeType]int{model.TypeIssues: 2})
	cats[0].Children[0].Name = "Crash bug on startup"
	return cats, nil
}

func (f *fakeSource) FetchRateLimit(context.Context) (model.RateLimit, error) {
	return model.RateLimit{Limit: 5000, Remaining: 4321, Reset: time.Now().Unix()}, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func newTestModel(t *testing.T, src session.Source) Model {
	t.Helper()
	bridge := NewBridge()
	sess := session.New(session.Config{
		Settings: session.Settings{Source: src},
		Confirm:  bridge.Confirm,
		Progress: bridge.Progress,
		Delay:    -1,
		Logger:   discardLogger(),
	})
	m := New(Config{Session: sess, Bridge: bridge, PageSize: 5})
	t.Cleanup(m.Stop)
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// drain runs cmd and any batched commands, returning the messages that
// arrive in time. Commands that block (listeners) are abandoned.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(2 * time.Second):
		return nil
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// settle feeds the results of cmd back into the model, skipping animation
// frames.
func settle(m Model, cmd tea.Cmd) Model {
	for _, msg := range drain(cmd) {
		if _, ok := msg.(storeChangedMsg); ok {
			continue
		}
		m, _ = update(m, msg)
	}
	m.reproject()
	return m
}

func keyPress(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "f5":
		return tea.KeyMsg{Type: tea.KeyF5}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = update(m, keyPress(k))
	}
	return m, cmd
}

func loaded(t *testing.T, src session.Source) Model {
	t.Helper()
	m := newTestModel(t, src)
	m = settle(m, m.loadCmd(false))
	if m.err != nil {
		t.Fatalf("load failed: %v", m.err)
	}
	return m
}

func rowIDs(m Model) []string {
	var ids []string
	for _, r := range m.treeRows() {
		ids = append(ids, r.node.ID)
	}
	return ids
}

func TestInitialLoadShowsOrgsExpanded(t *testing.T) {
	m := loaded(t, &fakeSource{roots: testutil.Acme})

	ids := rowIDs(m)
	if len(ids) != 2 || ids[0] != model.OrgID("acme") || ids[1] != model.RepoID("acme", "widgets") {
		t.Errorf("rows = %v", ids)
	}
	if m.rate == nil || m.rate.Remaining != 4321 {
		t.Errorf("rate limit not loaded: %+v", m.rate)
	}
	if !strings.Contains(m.View(), "rate 4321/5000") {
		t.Error("header should show the rate limit")
	}
}

func TestLoadErrorBlocksUntilRetry(t *testing.T) {
	src := &fakeSource{roots: testutil.Acme, treeErr: errors.New("bad credentials")}
	m := newTestModel(t, src)
	m = settle(m, m.loadCmd(false))

	if m.err == nil {
		t.Fatal("expected blocking error")
	}
	if v := m.View(); !strings.Contains(v, "Could not load") || !strings.Contains(v, "bad credentials") {
		t.Errorf("error screen missing:\n%s", v)
	}
	if next, cmd := press(m, "tab"); cmd != nil || next.mode != treeView {
		t.Error("keys other than retry and quit should be ignored on the error screen")
	}

	src.mu.Lock()
	src.treeErr = nil
	src.mu.Unlock()
	m, cmd := press(m, "r")
	if !m.loading || cmd == nil {
		t.Fatal("retry should start loading")
	}
	m = settle(m, cmd)
	if m.err != nil || len(rowIDs(m)) != 2 {
		t.Errorf("retry did not recover: %v %v", m.err, rowIDs(m))
	}
}

func TestExpandUnloadedRepoLoadsDetails(t *testing.T) {
	src := &fakeSource{roots: testutil.Acme}
	m := loaded(t, src)

	m, _ = press(m, "down")
	m, cmd := press(m, "enter")
	if cmd == nil {
		t.Fatal("expanding an unloaded repository should fetch")
	}
	m = settle(m, cmd)

	if src.fetchCount() != 1 {
		t.Errorf("fetches = %d", src.fetchCount())
	}
	ids := rowIDs(m)
	if len(ids) != 3 || ids[2] != model.CategoryID(model.TypeIssues, "acme", "widgets") {
		t.Errorf("rows after expand = %v", ids)
	}

	// collapse and reopen without another fetch
	m, _ = press(m, "enter")
	if len(rowIDs(m)) != 2 {
		t.Error("second enter should collapse")
	}
	m, cmd = press(m, "enter")
	m = settle(m, cmd)
	if src.fetchCount() != 1 {
		t.Error("reopening a loaded repository must not fetch again")
	}
}

func TestToggleRepositoryAndBack(t *testing.T) {
	src := &fakeSource{roots: testutil.Acme}
	m := loaded(t, src)
	repo := model.RepoID("acme", "widgets")

	m, _ = press(m, "down")
	m, cmd := press(m, "e")
	m = settle(m, cmd)
	testutil.AssertEnabled(t, m.sess.Store.Snapshot(), repo, false)
	if !strings.Contains(m.View(), "(disabled)") {
		t.Error("disabled repository should be marked")
	}

	m, cmd = press(m, "e")
	m = settle(m, cmd)
	testutil.AssertEnabled(t, m.sess.Store.Snapshot(), repo, true)
	if src.fetchCount() != 1 {
		t.Errorf("re-enabling should load the repository, fetches = %d", src.fetchCount())
	}
	if m.batches != 0 {
		t.Errorf("batches still running: %d", m.batches)
	}
}

func TestToggleRejectsCategories(t *testing.T) {
	roots := func() []*model.TreeNode {
		return []*model.TreeNode{testutil.Org("acme", testutil.LoadedRepo("acme", "widgets",
			testutil.Category(model.TypeIssues, "acme", "widgets")))}
	}
	m := loaded(t, &fakeSource{roots: roots})
	m, _ = press(m, "down", "enter", "down")
	if got := m.selected(); got == nil || got.Type != model.TypeIssues {
		t.Fatalf("selected %v", got)
	}
	m, cmd := press(m, "e")
	if cmd != nil || !m.statusErr {
		t.Error("toggling a category should be refused with a message")
	}
}

func TestSearchDeepLoadsWithConfirmation(t *testing.T) {
	src := &fakeSource{roots: func() []*model.TreeNode {
		return testutil.New(testutil.GeneratorConfig{Seed: 1, Orgs: 1, ReposPerOrg: 12}).Forest()
	}}
	m := loaded(t, src)

	m, _ = press(m, "/")
	if !m.searching {
		t.Fatal("slash should start search")
	}
	m, cmd := press(m, "b")
	if cmd == nil || !m.deepRunning {
		t.Fatal("search text should start a deep search")
	}

	done := make(chan []tea.Msg, 1)
	go func() { done <- drain(cmd) }()

	req := m.bridge.wait()()
	m, _ = update(m, req)
	if m.confirm == nil || m.confirm.count != 12 {
		t.Fatalf("expected a confirmation for 12 repositories, got %+v", m.confirm)
	}
	if !strings.Contains(m.View(), "Load repository details?") {
		t.Error("confirmation modal not shown")
	}

	m, _ = press(m, "n")
	var msgs []tea.Msg
	select {
	case msgs = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not finish after decline")
	}
	for _, msg := range msgs {
		m, _ = update(m, msg)
	}
	if !m.deepDeclined || m.deepRunning {
		t.Errorf("declined=%v running=%v", m.deepDeclined, m.deepRunning)
	}
	if src.fetchCount() != 0 {
		t.Error("declining must not fetch")
	}

	// more typing does not ask again
	if m, _ = press(m, "u"); m.deepRunning || m.batches != 0 {
		t.Error("a declined deep search should not restart while the filter stays active")
	}
}

func TestSearchFindsLoadedIssue(t *testing.T) {
	src := &fakeSource{roots: testutil.Acme}
	m := loaded(t, src)

	m, _ = press(m, "/")
	m, cmd := press(m, "b")
	if !m.deepRunning {
		t.Fatal("first character should start a deep search")
	}
	m = settle(m, cmd)
	m, _ = press(m, "u", "g", "enter")
	if m.searching {
		t.Error("enter should leave search mode")
	}
	if src.fetchCount() != 1 {
		t.Fatalf("deep search should have loaded widgets once, fetched %d", src.fetchCount())
	}
	found := false
	for _, r := range m.treeRows() {
		if r.node.Name == "Crash bug on startup" {
			found = true
		}
	}
	if !found {
		t.Errorf("issue not visible: %v", rowIDs(m))
	}

	m, cmd = press(m, "esc")
	m = settle(m, cmd)
	if m.search.Value() != "" || m.filterActive() {
		t.Error("esc should clear the filter")
	}
}

func TestListViewSortAndPages(t *testing.T) {
	g := testutil.New(testutil.GeneratorConfig{Seed: 5, Orgs: 1, ReposPerOrg: 1, ItemsPerCategory: 3})
	roots := func() []*model.TreeNode {
		return []*model.TreeNode{testutil.Org("org0", testutil.LoadedRepo("org0", "repo0", g.Details("org0", "repo0")...))}
	}
	m := loaded(t, &fakeSource{roots: roots})

	m, _ = press(m, "tab")
	if m.mode != listView {
		t.Fatal("tab should switch to the list view")
	}
	if m.proj.Page.Total != 18 || len(m.proj.PageRows) != 5 {
		t.Fatalf("rows %d, page rows %d", m.proj.Page.Total, len(m.proj.PageRows))
	}
	m, _ = press(m, "]", "]")
	if m.proj.Page.Index != 2 {
		t.Errorf("page = %d, want 2", m.proj.Page.Index)
	}
	m, _ = press(m, "s")
	if m.projector.SortSpec().Column != "name" || m.proj.Page.Index != 2 {
		t.Errorf("sort column %s, page %d", m.projector.SortSpec().Column, m.proj.Page.Index)
	}
	m, _ = press(m, "S")
	if !m.projector.SortSpec().Descending {
		t.Error("S should flip the direction")
	}
	m, _ = press(m, "[")
	if m.proj.Page.Index != 1 {
		t.Errorf("page = %d, want 1", m.proj.Page.Index)
	}

	m, cmd := press(m, "t")
	m = settle(m, cmd)
	if m.proj.Page.Index != 0 {
		t.Error("changing the type filter should reset the page")
	}
	if v := m.View(); !strings.Contains(v, "type: organization") {
		t.Errorf("list view:\n%s", v)
	}
}

func TestCopySelectedURL(t *testing.T) {
	var got string
	m := loaded(t, &fakeSource{roots: testutil.Acme})
	m.cfg.Clipboard = func(s string) error { got = s; return nil }

	m, _ = press(m, "down")
	m, cmd := press(m, "c")
	m = settle(m, cmd)
	if got != "https://github.com/acme/widgets" {
		t.Errorf("copied %q", got)
	}
	if !strings.Contains(m.status, "Copied") {
		t.Errorf("status = %q", m.status)
	}
}

func TestSettingsChangeReplacesTree(t *testing.T) {
	src := &fakeSource{roots: testutil.Acme}
	m := loaded(t, src)

	next := &fakeSource{roots: func() []*model.TreeNode {
		return []*model.TreeNode{testutil.Org("initech", testutil.Repo("initech", "tps"))}
	}}
	m.cfg.Reload = func() (session.Settings, bool, error) {
		return session.Settings{Source: next}, true, nil
	}
	m = settle(m, m.reloadSettingsCmd())

	if tree.Find(m.sess.Store.Snapshot(), model.OrgID("acme")) != nil {
		t.Error("old tree still present")
	}
	if ids := rowIDs(m); len(ids) != 2 || ids[0] != model.OrgID("initech") {
		t.Errorf("rows = %v", ids)
	}

	m.cfg.Reload = func() (session.Settings, bool, error) { return session.Settings{}, false, nil }
	before := m.sess.Store.Version()
	m = settle(m, m.reloadSettingsCmd())
	if m.sess.Store.Version() != before {
		t.Error("unchanged settings must not reload")
	}
}

func TestRefreshClearsCache(t *testing.T) {
	src := &fakeSource{roots: testutil.Acme}
	m := loaded(t, src)
	m, _ = press(m, "down")
	m, cmd := press(m, "enter")
	m = settle(m, cmd)

	m, cmd = press(m, "f5")
	if !m.loading {
		t.Error("F5 should show the loading screen")
	}
	m = settle(m, cmd)
	if m.sess.Cache.Len() != 0 {
		t.Error("refresh should clear the detail cache")
	}
	if n := tree.Find(m.sess.Store.Snapshot(), model.RepoID("acme", "widgets")); n.IsLoaded {
		t.Error("refreshed tree should be shallow again")
	}
}

func TestFinishBatchStatus(t *testing.T) {
	m := loaded(t, &fakeSource{roots: testutil.Acme})
	m.batches = 1
	m = m.finishBatch(batchDoneMsg{res: loader.Result{Loaded: []string{"a", "b"}, Failed: []string{"c"}}})
	if m.status != "Loaded 2 repositories, 1 failed" || !m.statusErr {
		t.Errorf("status = %q err=%v", m.status, m.statusErr)
	}
	if m.batches != 0 {
		t.Error("batch counter not decremented")
	}
}
