package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    server.URL,
		Token:      "test-token",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientHTTPSEnforcement(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://api.github.com", Token: "x"})
	if err == nil {
		t.Fatal("expected error for HTTP URL")
	}
	if got := err.Error(); got != `github: API client requires HTTPS (got "http://api.github.com")` {
		t.Errorf("unexpected error: %s", got)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{Token: "x", BaseURL: "https://ghe.example.com/api/v3/"})
	if err != nil {
		t.Fatal(err)
	}
	if client.BaseURL() != "https://ghe.example.com/api/v3" {
		t.Errorf("base URL = %q", client.BaseURL())
	}
}

func TestRequestHeaders(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept = %q", got)
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got != apiVersion {
			t.Errorf("X-GitHub-Api-Version = %q", got)
		}
		fmt.Fprint(w, `[{"name":"main","protected":true}]`)
	}))
	defer server.Close()

	branches, err := newTestClient(t, server).ListBranches(context.Background(), "acme", "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if len(branches) != 1 || branches[0].Name != "main" || !branches[0].Protected {
		t.Errorf("branches = %+v", branches)
	}
}

func TestPaginationFollowsLink(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}
		if page < 3 {
			w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=%d>; rel="next", <%s%s?page=3>; rel="last"`,
				server.URL, r.URL.Path, page+1, server.URL, r.URL.Path))
		}
		fmt.Fprintf(w, `[{"name":"r%d-a"},{"name":"r%d-b"}]`, page, page)
	}))
	defer server.Close()
	client := newTestClient(t, server)

	repos, err := client.ListOrgRepos(context.Background(), "acme", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 6 || repos[5].Name != "r3-b" {
		t.Errorf("got %d repos: %+v", len(repos), repos)
	}

	limited, err := client.ListOrgRepos(context.Background(), "acme", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 3 || limited[2].Name != "r2-a" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestListOrgReposFallsBackToUser(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orgs/octocat/repos":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
		case "/users/octocat/repos":
			if r.URL.Query().Get("sort") != "updated" {
				t.Errorf("sort = %q", r.URL.Query().Get("sort"))
			}
			fmt.Fprint(w, `[{"name":"hello-world","owner":{"login":"octocat"},"stargazers_count":7}]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	repos, err := newTestClient(t, server).ListOrgRepos(context.Background(), "octocat", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 1 || repos[0].Owner.Login != "octocat" || repos[0].StargazersCount != 7 {
		t.Errorf("repos = %+v", repos)
	}
}

func TestListIssuesExcludesPullRequests(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != "all" {
			t.Errorf("state = %q", r.URL.Query().Get("state"))
		}
		fmt.Fprint(w, `[
			{"id":1,"number":1,"title":"Crash bug","state":"open"},
			{"id":2,"number":2,"title":"Fix crash","state":"open","pull_request":{"url":"x"}},
			{"id":3,"number":3,"title":"Docs","state":"closed"}
		]`)
	}))
	defer server.Close()

	issues, err := newTestClient(t, server).ListIssues(context.Background(), "acme", "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 2 || issues[0].Number != 1 || issues[1].Number != 3 {
		t.Errorf("issues = %+v", issues)
	}
}

func TestWrappedListEndpoints(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widgets/actions/workflows":
			fmt.Fprint(w, `{"total_count":1,"workflows":[{"id":9,"name":"CI","path":".github/workflows/ci.yml","state":"active"}]}`)
		case "/repos/acme/widgets/actions/runs":
			if r.URL.Query().Get("status") != "completed" || r.URL.Query().Get("per_page") != "10" {
				t.Errorf("runs query = %s", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"total_count":1,"workflow_runs":[{"id":5,"name":"CI","run_number":42,"status":"completed","conclusion":"success"}]}`)
		case "/repos/acme/widgets/actions/runners":
			fmt.Fprint(w, `{"total_count":1,"runners":[{"id":3,"name":"builder","os":"linux","status":"online","busy":true}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()
	client := newTestClient(t, server)
	ctx := context.Background()

	workflows, err := client.ListWorkflows(ctx, "acme", "widgets")
	if err != nil || len(workflows) != 1 || workflows[0].Path != ".github/workflows/ci.yml" {
		t.Errorf("workflows = %+v, %v", workflows, err)
	}
	runs, err := client.ListWorkflowRuns(ctx, "acme", "widgets", 10)
	if err != nil || len(runs) != 1 || runs[0].RunNumber != 42 || runs[0].Conclusion != "success" {
		t.Errorf("runs = %+v, %v", runs, err)
	}
	runners, err := client.ListRunners(ctx, "acme", "widgets")
	if err != nil || len(runners) != 1 || !runners[0].Busy {
		t.Errorf("runners = %+v, %v", runners, err)
	}
}

func TestRateLimitEndpointAndHeaders(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4990")
		w.Header().Set("X-RateLimit-Used", "10")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		fmt.Fprint(w, `{"resources":{"core":{"limit":5000,"remaining":4999,"reset":1700000000,"used":1}}}`)
	}))
	defer server.Close()
	client := newTestClient(t, server)

	if _, ok := client.ObservedRateLimit(); ok {
		t.Error("no response seen yet")
	}
	limit, err := client.RateLimit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if limit.Limit != 5000 || limit.Remaining != 4999 || limit.Reset != 1700000000 || limit.Used != 1 {
		t.Errorf("core = %+v", limit)
	}
	observed, ok := client.ObservedRateLimit()
	if !ok || observed.Remaining != 4990 || observed.Used != 10 {
		t.Errorf("observed = %+v, %v", observed, ok)
	}
}

func TestRetriesOnceWhenRateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"message":"You have exceeded a secondary rate limit"}`)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	if _, err := newTestClient(t, server).ListBranches(context.Background(), "a", "b"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestRateLimitedTwiceReturnsError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded for user"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).ListBranches(context.Background(), "a", "b")
	if !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want exactly one retry", calls.Load())
	}
}

func TestPermissionForbiddenIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Must have admin rights to Repository.","documentation_url":"https://docs.github.com"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).ListRunners(context.Background(), "a", "b")
	var apiError *APIError
	if !errors.As(err, &apiError) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiError.StatusCode != 403 || apiError.DocumentationURL != "https://docs.github.com" || IsRateLimited(err) {
		t.Errorf("apiError = %+v", apiError)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPreemptiveWaitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	reset := time.Now().Add(time.Hour)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()
	client := newTestClient(t, server)

	if _, err := client.ListBranches(context.Background(), "a", "b"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.ListBranches(ctx, "a", "b"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if calls.Load() != 1 {
		t.Errorf("exhausted quota should block the second request, calls = %d", calls.Load())
	}
}

func TestParseLinkNext(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{`<https://api.github.com/x?page=2>; rel="next", <https://api.github.com/x?page=5>; rel="last"`, "https://api.github.com/x?page=2"},
		{`<https://api.github.com/x?page=1>; rel="prev", <https://api.github.com/x?page=3>; rel="next"`, "https://api.github.com/x?page=3"},
		{`<https://api.github.com/x?page=5>; rel="last"`, ""},
		{`garbage`, ""},
	}
	for _, tt := range tests {
		if got := parseLinkNext(tt.header); got != tt.want {
			t.Errorf("parseLinkNext(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestParseAPIErrorPlainBody(t *testing.T) {
	err := parseAPIError(502, []byte("bad gateway\n"))
	if err.Message != "bad gateway" || err.Error() != "github: HTTP 502: bad gateway" {
		t.Errorf("err = %v", err)
	}
	if IsNotFound(err) || !IsNotFound(fmt.Errorf("wrapped: %w", parseAPIError(404, nil))) {
		t.Error("IsNotFound mismatch")
	}
	if !IsUnauthorized(parseAPIError(401, []byte(`{"message":"Bad credentials"}`))) {
		t.Error("IsUnauthorized mismatch")
	}
}
