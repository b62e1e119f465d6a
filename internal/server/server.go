// Package server is the companion HTTP API the explorer talks to. It turns
// GitHub REST responses into resource tree nodes and exposes the settings
// file to clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/ghtree/internal/github"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// Settings is the settings file as the API sees it.
type Settings interface {
	Settings() model.Settings
	UpdateSettings(model.SettingsUpdate) error
	EnabledRepos() []model.EnabledRecord
	SetEnabledRepos([]model.EnabledRecord) error
	Reset() error
	Paths() model.ConfigPaths
}

// GitHub is the part of the REST client the handlers use.
type GitHub interface {
	RateLimit(ctx context.Context) (model.RateLimit, error)
	ListUserOrgs(ctx context.Context) ([]github.Account, error)
	ListOrgRepos(ctx context.Context, org string, limit int) ([]github.Repository, error)
	ListUserRepos(ctx context.Context, limit int) ([]github.Repository, error)
	ListWorkflows(ctx context.Context, owner, repo string) ([]github.Workflow, error)
	ListWorkflowRuns(ctx context.Context, owner, repo string, perPage int) ([]github.WorkflowRun, error)
	ListRunners(ctx context.Context, owner, repo string) ([]github.Runner, error)
	ListBranches(ctx context.Context, owner, repo string) ([]github.Branch, error)
	ListPullRequests(ctx context.Context, owner, repo string) ([]github.PullRequest, error)
	ListIssues(ctx context.Context, owner, repo string) ([]github.Issue, error)
}

// GitHubFactory builds a client for a token and API root.
type GitHubFactory func(token, apiURL string) (GitHub, error)

// Config holds configuration for a Server.
type Config struct {
	// Settings is required.
	Settings Settings

	// NewGitHub defaults to a github.Client factory.
	NewGitHub GitHubFactory

	// MaxReposPerOrg caps repositories listed per owner. <= 0 means all.
	MaxReposPerOrg int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server serves the companion API.
type Server struct {
	settings       Settings
	newGitHub      GitHubFactory
	maxReposPerOrg int
	logger         *slog.Logger

	mu      sync.Mutex
	clients map[clientKey]GitHub
}

type clientKey struct{ token, apiURL string }

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Settings == nil {
		return nil, errors.New("server: settings are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	factory := cfg.NewGitHub
	if factory == nil {
		factory = func(token, apiURL string) (GitHub, error) {
			return github.NewClient(github.Config{BaseURL: apiURL, Token: token, Logger: logger})
		}
	}
	return &Server{
		settings:       cfg.Settings,
		newGitHub:      factory,
		maxReposPerOrg: cfg.MaxReposPerOrg,
		logger:         logger,
		clients:        make(map[clientKey]GitHub),
	}, nil
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.requestLogger,
	)

	r.Get("/", s.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Get("/tree", s.handleTree)
		r.Get("/repo-details/{owner}/{repo}", s.handleRepoDetails)
		r.Get("/rate-limit", s.handleRateLimit)

		r.Route("/config", func(r chi.Router) {
			r.Get("/enabled-repos", s.handleGetEnabled)
			r.Put("/enabled-repos", s.handlePutEnabled)
			r.Get("/github", s.handleGetGitHub)
			r.Put("/github", s.handlePutGitHub)
			r.Post("/reset", s.handleReset)
			r.Get("/paths", s.handlePaths)
		})
	})
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled. It closes ln.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("companion API listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Debug("shutting down companion API")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// client resolves the GitHub client for a request. The X-GitHub-Token and
// X-GitHub-API-URL headers override the settings file. Clients are reused
// per token and root so their rate-limit tracking carries across requests.
func (s *Server) client(r *http.Request) (GitHub, error) {
	settings := s.settings.Settings()
	token := r.Header.Get("X-GitHub-Token")
	if token == "" {
		token = settings.Token
	}
	if token == "" {
		return nil, errTokenRequired
	}
	apiURL := r.Header.Get("X-GitHub-API-URL")
	if apiURL == "" {
		apiURL = settings.APIURL
	}

	key := clientKey{token, apiURL}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	c, err := s.newGitHub(token, apiURL)
	if err != nil {
		return nil, &httpError{status: http.StatusBadRequest, detail: err.Error()}
	}
	s.clients[key] = c
	return c, nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
