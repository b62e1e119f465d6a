package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/ghtree/internal/github"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// orgConcurrency bounds parallel repository listings in /api/tree.
const orgConcurrency = 4

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]string{"message": "GitHub resource explorer API", "status": "running"})
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	gh, err := s.client(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := gh.RateLimit(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, limit)
}

// handleTree lists organizations and their repositories. Owners come from
// the orgs query parameter, else the configured organization, else the
// user's organizations plus a node for the user's own repositories.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	gh, err := s.client(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	owners := splitList(r.URL.Query().Get("orgs"))
	if len(owners) == 0 {
		owners = s.settings.Settings().OrgList()
	}

	var personal *model.TreeNode
	if len(owners) == 0 {
		orgs, err := gh.ListUserOrgs(ctx)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		for _, o := range orgs {
			owners = append(owners, o.Login)
		}
		repos, err := gh.ListUserRepos(ctx, s.maxReposPerOrg)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if len(repos) > 0 {
			personal = orgNode(model.OrgID(repos[0].Owner.Login), PersonalName, repos)
		}
	}

	nodes, err := s.ownerNodes(ctx, gh, owners)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if personal != nil {
		nodes = append([]*model.TreeNode{personal}, nodes...)
	}
	s.respond(w, r, http.StatusOK, nodes)
}

// ownerNodes lists each owner's repositories concurrently, keeping owner
// order. Owners the token may not list (403, 404) are skipped.
func (s *Server) ownerNodes(ctx context.Context, gh GitHub, owners []string) ([]*model.TreeNode, error) {
	nodes := make([]*model.TreeNode, len(owners))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(orgConcurrency)
	for i, owner := range owners {
		g.Go(func() error {
			repos, err := gh.ListOrgRepos(gctx, owner, s.maxReposPerOrg)
			if err != nil {
				if github.IsNotFound(err) || isForbidden(err) {
					s.logger.Warn("skipping owner", "owner", owner, "error", err)
					return nil
				}
				return err
			}
			nodes[i] = orgNode(model.OrgID(owner), owner, repos)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]*model.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// handleRepoDetails fetches the six categories of one repository
// concurrently. A category that fails is treated as empty.
func (s *Server) handleRepoDetails(w http.ResponseWriter, r *http.Request) {
	gh, err := s.client(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	ctx := r.Context()

	var d repoDetails
	var g errgroup.Group
	fetch := func(category model.NodeType, f func() error) {
		g.Go(func() error {
			if err := f(); err != nil {
				s.logger.Warn("category fetch failed",
					"owner", owner, "repo", repo, "category", category, "error", err)
			}
			return nil
		})
	}
	fetch(model.TypeWorkflows, func() (err error) { d.workflows, err = gh.ListWorkflows(ctx, owner, repo); return })
	fetch(model.TypeWorkflowRuns, func() (err error) { d.runs, err = gh.ListWorkflowRuns(ctx, owner, repo, maxRuns); return })
	fetch(model.TypeRunners, func() (err error) { d.runners, err = gh.ListRunners(ctx, owner, repo); return })
	fetch(model.TypeBranches, func() (err error) { d.branches, err = gh.ListBranches(ctx, owner, repo); return })
	fetch(model.TypePullRequests, func() (err error) { d.pulls, err = gh.ListPullRequests(ctx, owner, repo); return })
	fetch(model.TypeIssues, func() (err error) { d.issues, err = gh.ListIssues(ctx, owner, repo); return })
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, d.categoryNodes(owner, repo))
}

type enabledReposBody struct {
	EnabledRepos []model.EnabledRecord `json:"enabled_repos"`
}

func (s *Server) handleGetEnabled(w http.ResponseWriter, r *http.Request) {
	records := s.settings.EnabledRepos()
	if records == nil {
		records = []model.EnabledRecord{}
	}
	s.respond(w, r, http.StatusOK, enabledReposBody{EnabledRepos: records})
}

func (s *Server) handlePutEnabled(w http.ResponseWriter, r *http.Request) {
	var body enabledReposBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, &httpError{status: http.StatusBadRequest, detail: "invalid body: " + err.Error()})
		return
	}
	for _, rec := range body.EnabledRepos {
		if rec.NodeID == "" {
			s.writeError(w, r, &httpError{status: http.StatusBadRequest, detail: "node_id is required"})
			return
		}
	}
	if err := s.settings.SetEnabledRepos(body.EnabledRepos); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetGitHub returns the GitHub settings with the token masked.
func (s *Server) handleGetGitHub(w http.ResponseWriter, r *http.Request) {
	settings := s.settings.Settings()
	settings.Token = settings.MaskedToken()
	s.respond(w, r, http.StatusOK, settings)
}

func (s *Server) handlePutGitHub(w http.ResponseWriter, r *http.Request) {
	var update model.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, r, &httpError{status: http.StatusBadRequest, detail: "invalid body: " + err.Error()})
		return
	}
	if err := s.settings.UpdateSettings(update); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.forgetClients()
	s.handleGetGitHub(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.Reset(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.forgetClients()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.settings.Paths())
}

func (s *Server) forgetClients() {
	s.mu.Lock()
	clear(s.clients)
	s.mu.Unlock()
}

func isForbidden(err error) bool {
	var apiError *github.APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusForbidden && !github.IsRateLimited(err)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
