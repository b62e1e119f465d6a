package server

import (
	"fmt"
	"strconv"

	"github.com/vanderheijden86/ghtree/internal/github"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// PersonalName labels the node holding the user's own repositories.
const PersonalName = "Personal Repositories"

// Per-category item limits.
const (
	maxWorkflows    = 20
	maxRuns         = 10
	maxBranches     = 20
	maxPullRequests = 20
	maxIssues       = 20
)

func orgNode(id, name string, repos []github.Repository) *model.TreeNode {
	children := make([]*model.TreeNode, 0, len(repos))
	for _, r := range repos {
		children = append(children, repoNode(r))
	}
	return &model.TreeNode{
		ID:          id,
		Name:        name,
		Type:        model.TypeOrganization,
		Metadata:    map[string]any{"repo_count": len(repos)},
		Children:    children,
		HasChildren: len(children) > 0,
		IsLoaded:    true,
	}
}

// repoNode is an unloaded repository; its categories come from the details
// endpoint.
func repoNode(r github.Repository) *model.TreeNode {
	return &model.TreeNode{
		ID:   model.RepoID(r.Owner.Login, r.Name),
		Name: r.Name,
		Type: model.TypeRepository,
		URL:  r.HTMLURL,
		Metadata: map[string]any{
			"owner":       r.Owner.Login,
			"description": r.Description,
			"private":     r.Private,
			"language":    r.Language,
			"stars":       r.StargazersCount,
			"updated_at":  r.UpdatedAt,
		},
		HasChildren: true,
	}
}

// repoDetails is what the six category requests returned.
type repoDetails struct {
	workflows []github.Workflow
	runs      []github.WorkflowRun
	runners   []github.Runner
	branches  []github.Branch
	pulls     []github.PullRequest
	issues    []github.Issue
}

// categoryNodes builds the loaded category nodes in display order. Empty
// categories are left out; a category's name counts every fetched item
// even when fewer are listed.
func (d repoDetails) categoryNodes(owner, repo string) []*model.TreeNode {
	var out []*model.TreeNode
	add := func(cat model.NodeType, total int, items []*model.TreeNode) {
		if total == 0 {
			return
		}
		out = append(out, &model.TreeNode{
			ID:          model.CategoryID(cat, owner, repo),
			Name:        fmt.Sprintf("%s (%d)", cat.CategoryLabel(), total),
			Type:        cat,
			Metadata:    map[string]any{"owner": owner, "repo": repo},
			Children:    items,
			HasChildren: len(items) > 0,
			IsLoaded:    true,
		})
	}
	item := func(typ model.NodeType, key, name, status, url string, meta map[string]any) *model.TreeNode {
		meta["owner"] = owner
		meta["repo"] = repo
		return &model.TreeNode{
			ID:       model.ItemID(typ, owner, repo, key),
			Name:     name,
			Type:     typ,
			Status:   status,
			URL:      url,
			Metadata: meta,
			Children: []*model.TreeNode{},
		}
	}

	var nodes []*model.TreeNode
	for _, w := range head(d.workflows, maxWorkflows) {
		nodes = append(nodes, item(model.TypeWorkflow, formatID(w.ID), w.Name, w.State, w.HTMLURL,
			map[string]any{"path": w.Path}))
	}
	add(model.TypeWorkflows, len(d.workflows), nodes)

	nodes = nil
	for _, run := range head(d.runs, maxRuns) {
		status := run.Conclusion
		if status == "" {
			status = run.Status
		}
		nodes = append(nodes, item(model.TypeWorkflowRun, formatID(run.ID), fmt.Sprintf("%s #%d", run.Name, run.RunNumber), status, run.HTMLURL,
			map[string]any{"created_at": run.CreatedAt, "updated_at": run.UpdatedAt, "branch": run.HeadBranch}))
	}
	add(model.TypeWorkflowRuns, len(d.runs), nodes)

	nodes = nil
	for _, runner := range d.runners {
		nodes = append(nodes, item(model.TypeRunner, formatID(runner.ID), runner.Name, runner.Status, "",
			map[string]any{"os": runner.OS, "busy": runner.Busy}))
	}
	add(model.TypeRunners, len(d.runners), nodes)

	nodes = nil
	for _, b := range head(d.branches, maxBranches) {
		nodes = append(nodes, item(model.TypeBranch, b.Name, b.Name, "", "",
			map[string]any{"protected": b.Protected}))
	}
	add(model.TypeBranches, len(d.branches), nodes)

	nodes = nil
	for _, pr := range head(d.pulls, maxPullRequests) {
		nodes = append(nodes, item(model.TypePullRequest, strconv.Itoa(pr.Number), fmt.Sprintf("#%d %s", pr.Number, pr.Title), pr.State, pr.HTMLURL,
			map[string]any{"created_at": pr.CreatedAt, "updated_at": pr.UpdatedAt, "draft": pr.Draft}))
	}
	add(model.TypePullRequests, len(d.pulls), nodes)

	nodes = nil
	for _, issue := range head(d.issues, maxIssues) {
		nodes = append(nodes, item(model.TypeIssue, strconv.Itoa(issue.Number), fmt.Sprintf("#%d %s", issue.Number, issue.Title), issue.State, issue.HTMLURL,
			map[string]any{"created_at": issue.CreatedAt, "updated_at": issue.UpdatedAt}))
	}
	add(model.TypeIssues, len(d.issues), nodes)

	if out == nil {
		out = []*model.TreeNode{}
	}
	return out
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func formatID(n int64) string { return strconv.FormatInt(n, 10) }
