// Package github is a small typed client for the parts of the GitHub REST
// API the explorer reads: the user's organizations, repositories and the
// per-repository workflows, runs, runners, branches, pull requests and
// issues.
//
// The client tracks the primary rate limit from X-RateLimit-* response
// headers, waits before sending a request when the limit is known to be
// exhausted, and retries once when GitHub answers 429 or a rate-limit 403.
// Non-2xx responses are returned as *APIError.
package github
