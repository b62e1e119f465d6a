// Package client talks to the companion API: the resource tree, repository
// details, the rate limit and the settings file. It is the Fetcher behind
// the detail cache and the primary Persister of enabled state.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/ghtree/pkg/metrics"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// DefaultBaseURL is where `ghtree serve` listens by default.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Config holds configuration for a Client.
type Config struct {
	// BaseURL is the companion API root. Defaults to DefaultBaseURL.
	BaseURL string

	// Token and APIURL are forwarded as X-GitHub-Token and
	// X-GitHub-API-URL when set; otherwise the server uses its settings.
	Token  string
	APIURL string

	// HTTPClient defaults to a client with a 60 second timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a companion API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is a non-2xx companion API response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("companion API: HTTP %d: %s", e.StatusCode, e.Detail)
}

// IsUnauthorized reports whether err means no usable GitHub token.
func IsUnauthorized(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusUnauthorized
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		apiURL:     cfg.APIURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// FetchTree returns organizations with their unloaded repositories. A nil
// or empty orgs lets the server decide which owners to list.
func (c *Client) FetchTree(ctx context.Context, orgs []string) ([]*model.TreeNode, error) {
	defer metrics.Timer(metrics.TreeFetch)()
	path := "/api/tree"
	if len(orgs) > 0 {
		path += "?" + url.Values{"orgs": {strings.Join(orgs, ",")}}.Encode()
	}
	var roots []*model.TreeNode
	if err := c.do(ctx, http.MethodGet, path, nil, &roots); err != nil {
		return nil, fmt.Errorf("fetching tree: %w", err)
	}
	if err := model.ValidateTree(roots); err != nil {
		return nil, fmt.Errorf("fetching tree: %w", err)
	}
	return roots, nil
}

// FetchRepoDetails returns the loaded category nodes of one repository.
func (c *Client) FetchRepoDetails(ctx context.Context, owner, repo string) ([]*model.TreeNode, error) {
	defer metrics.Timer(metrics.UpstreamCall)()
	path := "/api/repo-details/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
	var categories []*model.TreeNode
	if err := c.do(ctx, http.MethodGet, path, nil, &categories); err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", owner, repo, err)
	}
	if err := model.ValidateTree(categories); err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", owner, repo, err)
	}
	if categories == nil {
		categories = []*model.TreeNode{}
	}
	return categories, nil
}

func (c *Client) FetchRateLimit(ctx context.Context) (model.RateLimit, error) {
	var limit model.RateLimit
	err := c.do(ctx, http.MethodGet, "/api/rate-limit", nil, &limit)
	return limit, err
}

type enabledReposBody struct {
	EnabledRepos []model.EnabledRecord `json:"enabled_repos"`
}

// LoadEnabled reads the persisted enabled records.
func (c *Client) LoadEnabled(ctx context.Context) ([]model.EnabledRecord, error) {
	var body enabledReposBody
	if err := c.do(ctx, http.MethodGet, "/api/config/enabled-repos", nil, &body); err != nil {
		return nil, err
	}
	return body.EnabledRepos, nil
}

// SaveEnabled replaces the persisted enabled records.
func (c *Client) SaveEnabled(ctx context.Context, records []model.EnabledRecord) error {
	if records == nil {
		records = []model.EnabledRecord{}
	}
	return c.do(ctx, http.MethodPut, "/api/config/enabled-repos", enabledReposBody{EnabledRepos: records}, nil)
}

// GetSettings returns the GitHub settings; the token comes back masked.
func (c *Client) GetSettings(ctx context.Context) (model.Settings, error) {
	var s model.Settings
	err := c.do(ctx, http.MethodGet, "/api/config/github", nil, &s)
	return s, err
}

func (c *Client) UpdateSettings(ctx context.Context, update model.SettingsUpdate) (model.Settings, error) {
	var s model.Settings
	err := c.do(ctx, http.MethodPut, "/api/config/github", update, &s)
	return s, err
}

func (c *Client) ResetSettings(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/config/reset", nil, nil)
}

func (c *Client) ConfigPaths(ctx context.Context) (model.ConfigPaths, error) {
	var p model.ConfigPaths
	err := c.do(ctx, http.MethodGet, "/api/config/paths", nil, &p)
	return p, err
}

// do sends a request with an optional JSON body and decodes a JSON
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-GitHub-Token", c.token)
	}
	if c.apiURL != "" {
		req.Header.Set("X-GitHub-API-URL", c.apiURL)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("companion request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiError := &APIError{StatusCode: resp.StatusCode}
		var wire struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &wire) == nil && wire.Detail != "" {
			apiError.Detail = wire.Detail
		} else {
			apiError.Detail = strings.TrimSpace(string(raw))
		}
		return apiError
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
