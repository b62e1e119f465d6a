package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

// Account is the owner of a repository or an organization login.
type Account struct {
	Login string `json:"login"`
}

// Repository is the subset of a repository document the explorer shows.
type Repository struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	FullName        string  `json:"full_name"`
	Owner           Account `json:"owner"`
	Description     string  `json:"description"`
	Private         bool    `json:"private"`
	Language        string  `json:"language"`
	StargazersCount int     `json:"stargazers_count"`
	UpdatedAt       string  `json:"updated_at"`
	HTMLURL         string  `json:"html_url"`
}

type Workflow struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

type WorkflowRun struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RunNumber  int    `json:"run_number"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HeadBranch string `json:"head_branch"`
	HTMLURL    string `json:"html_url"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type Runner struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	OS     string `json:"os"`
	Status string `json:"status"`
	Busy   bool   `json:"busy"`
}

type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

type PullRequest struct {
	ID        int64  `json:"id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	State     string `json:"state"`
	Draft     bool   `json:"draft"`
	HTMLURL   string `json:"html_url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Issue is an issue document. The issues endpoint also returns pull
// requests; those carry a pull_request member.
type Issue struct {
	ID          int64           `json:"id"`
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	State       string          `json:"state"`
	HTMLURL     string          `json:"html_url"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

// IsPullRequest reports whether the issue is really a pull request.
func (issue Issue) IsPullRequest() bool { return len(issue.PullRequest) > 0 }

// RateLimit fetches the core quota from /rate_limit.
func (client *Client) RateLimit(ctx context.Context) (model.RateLimit, error) {
	var response struct {
		Resources struct {
			Core model.RateLimit `json:"core"`
		} `json:"resources"`
	}
	if err := client.get(ctx, "/rate_limit", &response); err != nil {
		return model.RateLimit{}, err
	}
	return response.Resources.Core, nil
}

// ObservedRateLimit returns the quota reported by the most recent response
// headers without a request. ok is false until a response carried them.
func (client *Client) ObservedRateLimit() (model.RateLimit, bool) {
	limit, remaining, used, reset, ok := client.rateLimit.snapshot()
	if !ok {
		return model.RateLimit{}, false
	}
	return model.RateLimit{Limit: limit, Remaining: remaining, Used: used, Reset: reset.Unix()}, true
}

// ListUserOrgs lists the organizations of the authenticated user.
func (client *Client) ListUserOrgs(ctx context.Context) ([]Account, error) {
	return list[Account](client, "/user/orgs?per_page=100").Collect(ctx, 0)
}

// ListOrgRepos lists the repositories of an organization, most recently
// updated first. A login that is a user rather than an organization answers
// 404 on the organization endpoint; the user endpoint is tried then.
// limit <= 0 means every repository.
func (client *Client) ListOrgRepos(ctx context.Context, org string, limit int) ([]Repository, error) {
	query := url.Values{"per_page": {"100"}, "sort": {"updated"}}
	repos, err := list[Repository](client, withQuery("/orgs/"+url.PathEscape(org)+"/repos", query)).Collect(ctx, limit)
	if IsNotFound(err) {
		client.logger.Debug("not an organization, listing user repositories", "owner", org)
		repos, err = list[Repository](client, withQuery("/users/"+url.PathEscape(org)+"/repos", query)).Collect(ctx, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing repositories of %s: %w", org, err)
	}
	return repos, nil
}

// ListUserRepos lists repositories owned by the authenticated user.
func (client *Client) ListUserRepos(ctx context.Context, limit int) ([]Repository, error) {
	query := url.Values{"per_page": {"100"}, "sort": {"updated"}, "affiliation": {"owner"}}
	return list[Repository](client, withQuery("/user/repos", query)).Collect(ctx, limit)
}

func repoPath(owner, repo, suffix string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + suffix
}

func (client *Client) ListWorkflows(ctx context.Context, owner, repo string) ([]Workflow, error) {
	var response struct {
		Workflows []Workflow `json:"workflows"`
	}
	if err := client.get(ctx, repoPath(owner, repo, "/actions/workflows?per_page=100"), &response); err != nil {
		return nil, err
	}
	return response.Workflows, nil
}

// ListWorkflowRuns lists the most recent completed runs.
func (client *Client) ListWorkflowRuns(ctx context.Context, owner, repo string, perPage int) ([]WorkflowRun, error) {
	query := url.Values{"per_page": {strconv.Itoa(perPage)}, "status": {"completed"}}
	var response struct {
		WorkflowRuns []WorkflowRun `json:"workflow_runs"`
	}
	if err := client.get(ctx, withQuery(repoPath(owner, repo, "/actions/runs"), query), &response); err != nil {
		return nil, err
	}
	return response.WorkflowRuns, nil
}

// ListRunners lists self-hosted runners. Listing needs admin rights, so a
// 403 or 404 here is common.
func (client *Client) ListRunners(ctx context.Context, owner, repo string) ([]Runner, error) {
	var response struct {
		Runners []Runner `json:"runners"`
	}
	if err := client.get(ctx, repoPath(owner, repo, "/actions/runners"), &response); err != nil {
		return nil, err
	}
	return response.Runners, nil
}

func (client *Client) ListBranches(ctx context.Context, owner, repo string) ([]Branch, error) {
	var branches []Branch
	err := client.get(ctx, repoPath(owner, repo, "/branches?per_page=100"), &branches)
	return branches, err
}

// ListPullRequests lists open and closed pull requests, most recently
// updated first.
func (client *Client) ListPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	query := url.Values{"state": {"all"}, "per_page": {"50"}, "sort": {"updated"}}
	var pulls []PullRequest
	err := client.get(ctx, withQuery(repoPath(owner, repo, "/pulls"), query), &pulls)
	return pulls, err
}

// ListIssues lists open and closed issues, most recently updated first,
// without the pull requests the endpoint mixes in.
func (client *Client) ListIssues(ctx context.Context, owner, repo string) ([]Issue, error) {
	query := url.Values{"state": {"all"}, "per_page": {"50"}, "sort": {"updated"}}
	var all []Issue
	if err := client.get(ctx, withQuery(repoPath(owner, repo, "/issues"), query), &all); err != nil {
		return nil, err
	}
	issues := all[:0]
	for _, issue := range all {
		if !issue.IsPullRequest() {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}
