package ui

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/ghtree/pkg/cache"
	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/testutil"
)

func twoRepoForest() []*model.TreeNode {
	return []*model.TreeNode{
		testutil.Org("acme",
			testutil.LoadedRepo("acme", "api",
				testutil.Category(model.TypeIssues, "acme", "api",
					testutil.Item(model.TypeIssue, "acme", "api", "1", "First"))),
			testutil.Repo("acme", "web")),
		testutil.Org("globex"),
	}
}

func TestVisibleRowsFollowsExpansion(t *testing.T) {
	roots := twoRepoForest()

	rows := visibleRows(roots, map[string]bool{}, false)
	if len(rows) != 2 {
		t.Fatalf("collapsed rows = %d, want 2", len(rows))
	}

	expanded := map[string]bool{
		model.OrgID("acme"):         true,
		model.RepoID("acme", "api"): true,
	}
	rows = visibleRows(roots, expanded, false)
	var got []string
	for _, r := range rows {
		got = append(got, r.node.Name)
	}
	want := []string{"acme", "api", "Issues (1)", "web", "globex"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("rows = %v, want %v", got, want)
	}

	all := visibleRows(roots, nil, true)
	if len(all) != 6 {
		t.Errorf("expandAll rows = %d, want 6", len(all))
	}
}

func TestTreePrefix(t *testing.T) {
	rows := visibleRows(twoRepoForest(), nil, true)
	tests := []struct {
		name string
		want string
	}{
		{"acme", ""},
		{"api", "├── "},
		{"Issues (1)", "│   └── "},
		{"First", "│       └── "},
		{"web", "└── "},
		{"globex", ""},
	}
	for i, tt := range tests {
		if rows[i].node.Name != tt.name {
			t.Fatalf("row %d is %q, want %q", i, rows[i].node.Name, tt.name)
		}
		if got := treePrefix(rows[i]); got != tt.want {
			t.Errorf("prefix(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExpandIndicator(t *testing.T) {
	item := testutil.Item(model.TypeIssue, "a", "b", "1", "x")
	repo := testutil.Repo("a", "b")
	loaded := testutil.LoadedRepo("a", "b", testutil.Category(model.TypeIssues, "a", "b", item))

	tests := []struct {
		name  string
		node  *model.TreeNode
		open  bool
		state cache.EntryState
		want  string
	}{
		{"leaf", item, false, cache.NotLoaded, "•"},
		{"unloaded", repo, true, cache.NotLoaded, "▸"},
		{"fetching", repo, true, cache.Loading, "…"},
		{"open", loaded, true, cache.NotLoaded, "▾"},
		{"closed", loaded, false, cache.NotLoaded, "▸"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandIndicator(tt.node, tt.open, tt.state); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWindowKeepsCursorVisible(t *testing.T) {
	tests := []struct {
		cursor, total, height int
	}{
		{0, 100, 10},
		{50, 100, 10},
		{99, 100, 10},
		{3, 5, 10},
	}
	for _, tt := range tests {
		start, end := window(tt.cursor, tt.total, tt.height)
		if tt.cursor < start || tt.cursor >= end {
			t.Errorf("window(%d,%d,%d) = [%d,%d) hides the cursor", tt.cursor, tt.total, tt.height, start, end)
		}
		if end-start > tt.height || end > tt.total || start < 0 {
			t.Errorf("window(%d,%d,%d) = [%d,%d) out of bounds", tt.cursor, tt.total, tt.height, start, end)
		}
	}
}
