package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// apiVersion pins the REST API version so responses keep their shape.
const apiVersion = "2022-11-28"

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// Config holds configuration for a Client.
type Config struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL. Must use HTTPS;
	// GitHub Enterprise roots such as https://ghe.example.com/api/v3 work.
	BaseURL string

	// Token is a personal access token. Required.
	Token string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now is the clock used for rate-limit waits. Defaults to time.Now.
	Now func() time.Time
}

// Client is a GitHub REST API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	rateLimit  *rateLimitTracker
	logger     *slog.Logger
}

// NewClient validates config and creates a Client.
func NewClient(config Config) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}
	if config.Token == "" {
		return nil, fmt.Errorf("github: no token configured")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		httpClient: httpClient,
		rateLimit:  newRateLimitTracker(now),
		logger:     logger,
	}, nil
}

// BaseURL returns the API root the client talks to.
func (client *Client) BaseURL() string { return client.baseURL }

// do executes a GET against path (relative to the base URL, query
// included) and returns the body of a 2xx response.
func (client *Client) do(ctx context.Context, path string) ([]byte, http.Header, error) {
	return client.doWithRetry(ctx, client.baseURL+path, false)
}

func (client *Client) doWithRetry(ctx context.Context, target string, isRetry bool) ([]byte, http.Header, error) {
	response, err := client.doRaw(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("github: reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		if !isRetry && isRateLimitStatus(response.StatusCode, string(body)) {
			if backoff := client.rateLimit.retryAfter(response.Header); backoff > 0 {
				client.logger.Info("rate limited, backing off",
					"duration", backoff,
					"url", target,
				)
				if err := sleep(ctx, backoff); err != nil {
					return nil, nil, err
				}
				return client.doWithRetry(ctx, target, true)
			}
		}
		return nil, nil, parseAPIError(response.StatusCode, body)
	}
	return body, response.Header, nil
}

// doRaw sends an authenticated GET after the preemptive rate-limit wait.
// The caller closes the response body.
func (client *Client) doRaw(ctx context.Context, target string) (*http.Response, error) {
	if err := client.rateLimit.wait(ctx); err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	request.Header.Set("Authorization", "token "+client.token)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", apiVersion)

	start := time.Now()
	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("github: GET %s: %w", target, err)
	}
	client.logger.Debug("github request",
		"url", target,
		"status", response.StatusCode,
		"duration", time.Since(start),
	)
	client.rateLimit.update(response.Header)
	return response, nil
}

// get decodes a single JSON document from path into result.
func (client *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := client.do(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("github: decoding %s: %w", path, err)
	}
	return nil
}

// list creates a PageIterator for a paginated endpoint.
func list[T any](client *Client, path string) *PageIterator[T] {
	return &PageIterator[T]{client: client, nextURL: client.baseURL + path}
}

// withQuery appends query parameters to path.
func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
