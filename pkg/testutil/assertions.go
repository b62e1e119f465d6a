package testutil

import (
	"os"
	"reflect"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

// AssertNoDuplicateIDs verifies node ids are unique across the whole tree.
func AssertNoDuplicateIDs(t *testing.T, roots []*model.TreeNode) {
	t.Helper()
	seen := make(map[string]bool)
	for _, id := range IDs(roots) {
		if seen[id] {
			t.Errorf("duplicate node ID: %s", id)
		}
		seen[id] = true
	}
}

// AssertAllValid verifies every node passes validation.
func AssertAllValid(t *testing.T, roots []*model.TreeNode) {
	t.Helper()
	if err := model.ValidateTree(roots); err != nil {
		t.Errorf("invalid tree: %v", err)
	}
}

// AssertNodeCount verifies the total number of nodes.
func AssertNodeCount(t *testing.T, roots []*model.TreeNode, expected int) {
	t.Helper()
	if got := len(IDs(roots)); got != expected {
		t.Errorf("expected %d nodes, got %d", expected, got)
	}
}

// AssertJSONEqual compares two values by their JSON encoding.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()
	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// AssertEnabled verifies the enabled flag of the node with the given id.
func AssertEnabled(t *testing.T, roots []*model.TreeNode, id string, want bool) {
	t.Helper()
	n := FindNode(roots, id)
	if n == nil {
		t.Fatalf("node %s not found", id)
	}
	if n.IsEnabled() != want {
		t.Errorf("node %s enabled = %v, want %v", id, n.IsEnabled(), want)
	}
}

// GoldenFile compares output against a file under testdata. Set
// GENERATE_GOLDEN=1 to rewrite the files.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual against the golden file, or rewrites it.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()
	path := g.Path()

	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		g.t.Fatalf("read golden file %s (run with GENERATE_GOLDEN=1 to create): %v", path, err)
	}
	if string(expected) == actual {
		return
	}
	want := strings.Split(string(expected), "\n")
	got := strings.Split(actual, "\n")
	for i := 0; i < len(want) || i < len(got); i++ {
		var w, a string
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			a = got[i]
		}
		if w != a {
			g.t.Errorf("golden mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, w, a)
			return
		}
	}
}

// AssertTreesEqual compares two trees structurally. Unknown (nil) and empty
// children are different values.
func AssertTreesEqual(t *testing.T, expected, actual []*model.TreeNode) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("trees differ:\nexpected ids: %v\nactual ids:   %v", IDs(expected), IDs(actual))
	}
}

// CloneTree deep-copies roots so a later comparison can detect mutation.
// Unknown (nil) children stay nil.
func CloneTree(roots []*model.TreeNode) []*model.TreeNode {
	if roots == nil {
		return nil
	}
	out := make([]*model.TreeNode, len(roots))
	for i, n := range roots {
		if n == nil {
			continue
		}
		c := n.Clone()
		c.Children = CloneTree(n.Children)
		out[i] = c
	}
	return out
}

// FindNode returns the node with the given id, or nil.
func FindNode(roots []*model.TreeNode, id string) *model.TreeNode {
	for _, n := range roots {
		if n == nil {
			continue
		}
		if n.ID == id {
			return n
		}
		if found := FindNode(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// IDs returns every node id in depth-first order.
func IDs(roots []*model.TreeNode) []string {
	var ids []string
	for _, n := range roots {
		if n == nil {
			continue
		}
		ids = append(ids, n.ID)
		ids = append(ids, IDs(n.Children)...)
	}
	return ids
}

// CountByType returns node counts per type.
func CountByType(roots []*model.TreeNode) map[model.NodeType]int {
	counts := make(map[model.NodeType]int)
	for _, n := range roots {
		if n == nil {
			continue
		}
		counts[n.Type]++
		for k, v := range CountByType(n.Children) {
			counts[k] += v
		}
	}
	return counts
}
