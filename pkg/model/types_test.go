package model

import (
	"reflect"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestNodeTypeContainers(t *testing.T) {
	containers := map[NodeType]bool{
		TypeOrganization: true, TypeRepository: true,
		TypeWorkflows: true, TypeWorkflowRuns: true, TypeRunners: true,
		TypeBranches: true, TypePullRequests: true, TypeIssues: true,
	}
	for _, typ := range AllTypes() {
		if got := typ.IsContainer(); got != containers[typ] {
			t.Errorf("%s.IsContainer() = %v, want %v", typ, got, containers[typ])
		}
	}
}

func TestCategoryItemType(t *testing.T) {
	for _, c := range Categories() {
		item := c.ItemType()
		if item == "" {
			t.Errorf("category %s has no item type", c)
			continue
		}
		if item.IsContainer() {
			t.Errorf("item type %s of %s should not be a container", item, c)
		}
	}
	if TypeIssue.ItemType() != "" {
		t.Error("non-category should have empty item type")
	}
}

func TestIsEnabledDefaultsTrue(t *testing.T) {
	n := &TreeNode{ID: "x", Type: TypeRepository}
	if !n.IsEnabled() {
		t.Error("unset enabled should default to true")
	}
	n.Enabled = Bool(false)
	if n.IsEnabled() {
		t.Error("expected disabled")
	}
}

func TestCloneCopiesMetadataAndEnabled(t *testing.T) {
	orig := &TreeNode{
		ID:       RepoID("acme", "widgets"),
		Type:     TypeRepository,
		Metadata: map[string]any{"stars": 3},
		Enabled:  Bool(true),
	}
	clone := orig.Clone()
	clone.Metadata["stars"] = 4
	*clone.Enabled = false

	if orig.Metadata["stars"] != 3 {
		t.Errorf("clone mutated original metadata: %v", orig.Metadata["stars"])
	}
	if !orig.IsEnabled() {
		t.Error("clone mutated original enabled flag")
	}
}

func TestValidateLoadedRequiresChildren(t *testing.T) {
	n := &TreeNode{ID: "repository:a:b", Type: TypeRepository, IsLoaded: true}
	if err := n.Validate(); err == nil {
		t.Error("expected error for loaded node without children")
	}
	n.Children = []*TreeNode{}
	if err := n.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateTreeDuplicateIDs(t *testing.T) {
	roots := []*TreeNode{
		{ID: OrgID("a"), Type: TypeOrganization, Children: []*TreeNode{
			{ID: RepoID("a", "x"), Type: TypeRepository},
			{ID: RepoID("a", "x"), Type: TypeRepository},
		}},
	}
	if err := ValidateTree(roots); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestIDRoundTrip(t *testing.T) {
	tests := []struct {
		id       string
		owner    string
		repo     string
		ok       bool
		wantType NodeType
	}{
		{RepoID("acme", "widgets"), "acme", "widgets", true, TypeRepository},
		{CategoryID(TypeIssues, "acme", "widgets"), "acme", "widgets", true, TypeIssues},
		{ItemID(TypeBranch, "acme", "widgets", "feature:x"), "acme", "widgets", true, TypeBranch},
		{OrgID("acme"), "acme", "", false, TypeOrganization},
		{"garbage", "", "", false, "garbage"},
	}
	for _, tt := range tests {
		owner, repo, ok := ParseRepoID(tt.id)
		if owner != tt.owner || repo != tt.repo || ok != tt.ok {
			t.Errorf("ParseRepoID(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.id, owner, repo, ok, tt.owner, tt.repo, tt.ok)
		}
		if got := TypeOfID(tt.id); got != tt.wantType {
			t.Errorf("TypeOfID(%q) = %q, want %q", tt.id, got, tt.wantType)
		}
	}
}

// TestChildrenJSONDistinguishesUnknownFromEmpty checks the wire format keeps
// "unknown" (null) apart from "checked, none" ([]).
func TestChildrenJSONDistinguishesUnknownFromEmpty(t *testing.T) {
	data := []byte(`[
		{"id":"repository:a:x","name":"x","type":"repository","children":null,"hasChildren":true},
		{"id":"repository:a:y","name":"y","type":"repository","children":[],"isLoaded":true}
	]`)
	var nodes []*TreeNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if nodes[0].ChildrenKnown() {
		t.Error("null children should decode as unknown")
	}
	if !nodes[1].ChildrenKnown() || len(nodes[1].Children) != 0 {
		t.Error("[] children should decode as known and empty")
	}
	if !nodes[0].MayHaveChildren() {
		t.Error("hasChildren hint should be honoured when children unknown")
	}
	if nodes[1].MayHaveChildren() {
		t.Error("loaded empty node has no children")
	}
}

// TestTreeJSONRoundTrip encodes a full org → repo → category → item chain
// with metadata at every level.
func TestTreeJSONRoundTrip(t *testing.T) {
	item := &TreeNode{
		ID: ItemID(TypeIssue, "acme", "widgets", "7"), Name: "Crash on start", Type: TypeIssue,
		Status: "open", URL: "https://github.com/acme/widgets/issues/7",
		Metadata: map[string]any{"owner": "acme", "number": float64(7), "labels": []any{"bug"}},
	}
	cat := &TreeNode{
		ID: CategoryID(TypeIssues, "acme", "widgets"), Name: "Issues (1)", Type: TypeIssues,
		Metadata: map[string]any{"owner": "acme", "repo": "widgets"},
		Children: []*TreeNode{item}, HasChildren: true, IsLoaded: true,
	}
	repo := &TreeNode{
		ID: RepoID("acme", "widgets"), Name: "widgets", Type: TypeRepository,
		Metadata: map[string]any{"private": false, "stars": float64(12), "language": "Go"},
		Children: []*TreeNode{cat}, HasChildren: true, IsLoaded: true, Enabled: Bool(true),
	}
	unloaded := &TreeNode{
		ID: RepoID("acme", "gadgets"), Name: "gadgets", Type: TypeRepository,
		Metadata: map[string]any{"description": "not loaded"}, HasChildren: true,
	}
	org := &TreeNode{
		ID: OrgID("acme"), Name: "acme", Type: TypeOrganization,
		Metadata: map[string]any{"repo_count": float64(2)},
		Children: []*TreeNode{repo, unloaded}, HasChildren: true, IsLoaded: true,
	}
	roots := []*TreeNode{org}

	data, err := json.Marshal(roots)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"children":null`) {
		t.Errorf("unknown children should encode as null: %s", data)
	}

	var got []*TreeNode
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, roots) {
		t.Errorf("round trip mismatch:\n got: %s", data)
	}

	indented, err := json.MarshalIndent(roots, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent: %v", err)
	}
	var again []*TreeNode
	if err := json.Unmarshal(indented, &again); err != nil || !reflect.DeepEqual(again, roots) {
		t.Errorf("indented round trip mismatch (err %v)", err)
	}
}

func TestTreeJSONOmitsEmptyMetadata(t *testing.T) {
	data, err := json.Marshal(&TreeNode{ID: OrgID("a"), Name: "a", Type: TypeOrganization, Metadata: map[string]any{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "metadata") {
		t.Errorf("empty metadata should be omitted: %s", data)
	}
}

func TestRateLimitLow(t *testing.T) {
	if !(RateLimit{Limit: 5000, Remaining: 100}).Low(10) {
		t.Error("100/5000 should be low at 10%")
	}
	if (RateLimit{Limit: 5000, Remaining: 4000}).Low(10) {
		t.Error("4000/5000 should not be low")
	}
	if (RateLimit{}).Low(10) {
		t.Error("unknown limit should not be low")
	}
}

func TestSettingsOrgList(t *testing.T) {
	s := Settings{Organization: " acme, ,globex "}
	got := s.OrgList()
	if len(got) != 2 || got[0] != "acme" || got[1] != "globex" {
		t.Errorf("OrgList() = %v", got)
	}
}
