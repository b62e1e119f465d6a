package model

import (
	"fmt"
	"strings"
)

// NodeType identifies what a TreeNode represents in the resource hierarchy.
type NodeType string

const (
	TypeOrganization NodeType = "organization"
	TypeRepository   NodeType = "repository"
	TypeWorkflows    NodeType = "workflows"
	TypeWorkflow     NodeType = "workflow"
	TypeWorkflowRuns NodeType = "workflow_runs"
	TypeWorkflowRun  NodeType = "workflow_run"
	TypeRunners      NodeType = "runners"
	TypeRunner       NodeType = "runner"
	TypeBranches     NodeType = "branches"
	TypeBranch       NodeType = "branch"
	TypePullRequests NodeType = "pull_requests"
	TypePullRequest  NodeType = "pull_request"
	TypeIssues       NodeType = "issues"
	TypeIssue        NodeType = "issue"
)

// categoryOrder is the order detail categories appear under a repository.
var categoryOrder = []NodeType{
	TypeWorkflows,
	TypeWorkflowRuns,
	TypeRunners,
	TypeBranches,
	TypePullRequests,
	TypeIssues,
}

// Categories returns the detail category types in display order.
func Categories() []NodeType {
	out := make([]NodeType, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// AllTypes returns every known node type, containers first.
func AllTypes() []NodeType {
	return []NodeType{
		TypeOrganization, TypeRepository,
		TypeWorkflows, TypeWorkflow,
		TypeWorkflowRuns, TypeWorkflowRun,
		TypeRunners, TypeRunner,
		TypeBranches, TypeBranch,
		TypePullRequests, TypePullRequest,
		TypeIssues, TypeIssue,
	}
}

// IsValid returns true if the type is one of the known node types.
func (t NodeType) IsValid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// IsCategory returns true for the six detail category containers.
func (t NodeType) IsCategory() bool {
	for _, c := range categoryOrder {
		if t == c {
			return true
		}
	}
	return false
}

// IsContainer returns true for structural node types that never appear as
// rows in the flattened list view.
func (t NodeType) IsContainer() bool {
	return t == TypeOrganization || t == TypeRepository || t.IsCategory()
}

// ItemType returns the concrete item type held by a category container.
// Returns "" for non-category types.
func (t NodeType) ItemType() NodeType {
	switch t {
	case TypeWorkflows:
		return TypeWorkflow
	case TypeWorkflowRuns:
		return TypeWorkflowRun
	case TypeRunners:
		return TypeRunner
	case TypeBranches:
		return TypeBranch
	case TypePullRequests:
		return TypePullRequest
	case TypeIssues:
		return TypeIssue
	default:
		return ""
	}
}

// CategoryLabel is the human label used when naming a category node.
func (t NodeType) CategoryLabel() string {
	switch t {
	case TypeWorkflows:
		return "Workflows"
	case TypeWorkflowRuns:
		return "Recent Runs"
	case TypeRunners:
		return "Runners"
	case TypeBranches:
		return "Branches"
	case TypePullRequests:
		return "Pull Requests"
	case TypeIssues:
		return "Issues"
	default:
		return string(t)
	}
}

// TreeNode is one node of the organization → repository → detail hierarchy.
//
// Children has three meaningful states:
//   - nil: existence of children is unknown (not fetched yet)
//   - empty non-nil slice: checked, there are none
//   - populated: loaded children
//
// Nodes are treated as immutable once they are reachable from a tree snapshot.
// Updates go through pkg/tree, which copies the ancestor chain.
type TreeNode struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        NodeType       `json:"type"`
	Status      string         `json:"status,omitempty"`
	URL         string         `json:"url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Children    []*TreeNode    `json:"children"`
	HasChildren bool           `json:"hasChildren,omitempty"`
	IsLoaded    bool           `json:"isLoaded,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
}

// IsEnabled reports the enabled flag, defaulting to true when unset.
func (n *TreeNode) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// ChildrenKnown reports whether the node's children have been determined.
func (n *TreeNode) ChildrenKnown() bool {
	return n.Children != nil
}

// MayHaveChildren reports whether expanding the node could reveal anything,
// using the loaded children when known and the server hint otherwise.
func (n *TreeNode) MayHaveChildren() bool {
	if n.Children != nil {
		return len(n.Children) > 0
	}
	return n.HasChildren
}

// Clone returns a shallow copy of the node: the struct and metadata map are
// copied, the children slice header is shared.
func (n *TreeNode) Clone() *TreeNode {
	clone := *n
	if n.Metadata != nil {
		clone.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			clone.Metadata[k] = v
		}
	}
	if n.Enabled != nil {
		v := *n.Enabled
		clone.Enabled = &v
	}
	return &clone
}

// WithEnabled returns a clone of the node with its enabled flag set.
func (n *TreeNode) WithEnabled(enabled bool) *TreeNode {
	clone := n.Clone()
	clone.Enabled = Bool(enabled)
	return clone
}

// MetadataString returns the metadata value for key formatted as a string,
// or "" when absent or nil.
func (n *TreeNode) MetadataString(key string) string {
	v, ok := n.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Owner returns the owner recorded in metadata, falling back to the id.
func (n *TreeNode) Owner() string {
	if owner := n.MetadataString("owner"); owner != "" {
		return owner
	}
	owner, _, _ := ParseRepoID(n.ID)
	return owner
}

// Validate checks the node's own invariants (not its descendants').
func (n *TreeNode) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("node %s: invalid type: %s", n.ID, n.Type)
	}
	if n.IsLoaded && n.Children == nil {
		return fmt.Errorf("node %s: loaded but children undefined", n.ID)
	}
	return nil
}

// ValidateTree validates every node and checks ID uniqueness across roots.
func ValidateTree(roots []*TreeNode) error {
	seen := make(map[string]bool)
	var walk func(nodes []*TreeNode) error
	walk = func(nodes []*TreeNode) error {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if err := n.Validate(); err != nil {
				return err
			}
			if seen[n.ID] {
				return fmt.Errorf("duplicate node ID: %s", n.ID)
			}
			seen[n.ID] = true
			if err := walk(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(roots)
}

// Bool returns a pointer to b. Handy for Enabled literals.
func Bool(b bool) *bool {
	return &b
}

// FlatNode is one row of the flattened list view.
type FlatNode struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     NodeType       `json:"type"`
	Status   string         `json:"status,omitempty"`
	URL      string         `json:"url,omitempty"`
	Path     string         `json:"path"`
	RepoID   string         `json:"repo_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RateLimit is the core REST quota as reported by the companion API.
type RateLimit struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
	Used      int   `json:"used"`
}

// Low reports whether fewer than pct percent of requests remain.
func (r RateLimit) Low(pct int) bool {
	if r.Limit <= 0 {
		return false
	}
	return r.Remaining*100 < r.Limit*pct
}

// EnabledRecord is the persisted enabled flag of one organization or
// repository node.
type EnabledRecord struct {
	NodeID  string `json:"node_id" yaml:"node_id"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Settings is the GitHub connection settings exchanged with the config
// collaborator.
type Settings struct {
	Token        string `json:"token,omitempty"`
	APIURL       string `json:"api_url,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// OrgList splits the configured organization filter on commas.
func (s Settings) OrgList() []string {
	var orgs []string
	for _, part := range strings.Split(s.Organization, ",") {
		if p := strings.TrimSpace(part); p != "" {
			orgs = append(orgs, p)
		}
	}
	return orgs
}

// SettingsUpdate changes the named settings; nil fields are left alone and
// an empty string clears a field.
type SettingsUpdate struct {
	Token        *string `json:"token,omitempty"`
	APIURL       *string `json:"api_url,omitempty"`
	Organization *string `json:"organization,omitempty"`
}

// MaskedToken returns the token reduced to its last four characters for
// display, or "" when unset.
func (s Settings) MaskedToken() string {
	if s.Token == "" {
		return ""
	}
	if len(s.Token) <= 4 {
		return "***"
	}
	return "***" + s.Token[len(s.Token)-4:]
}

// ConfigPaths describes where settings live on disk, for the settings UI.
type ConfigPaths struct {
	ConfigFile string `json:"config_file"`
	ConfigDir  string `json:"config_dir"`
	StateDir   string `json:"state_dir"`
}
