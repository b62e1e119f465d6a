package github

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 404
}

// IsUnauthorized reports whether err is a 401 response (bad or expired token).
func IsUnauthorized(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 401
}

// IsRateLimited reports whether err is a primary (403) or secondary (429)
// rate-limit response.
func IsRateLimited(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && isRateLimitStatus(apiError.StatusCode, apiError.Message)
}

// isRateLimitStatus tells a rate-limit 403 from a permission 403 by its
// message.
func isRateLimitStatus(status int, message string) bool {
	if status == 429 {
		return true
	}
	if status != 403 {
		return false
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "abuse detection")
}

func parseAPIError(status int, body []byte) *APIError {
	apiError := &APIError{StatusCode: status}
	var wire struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiError.Message = wire.Message
		apiError.DocumentationURL = wire.DocumentationURL
	} else {
		apiError.Message = strings.TrimSpace(string(body))
	}
	return apiError
}
