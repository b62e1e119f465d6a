package server

import (
	"errors"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/ghtree/internal/github"
)

// httpError carries a status and a client-facing detail message.
type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string { return e.detail }

var errTokenRequired = &httpError{status: http.StatusUnauthorized, detail: "GitHub token is required"}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON encodes v before touching the response, so an encoding failure
// still answers 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "{\"detail\":%q}\n", "encoding response: "+err.Error())
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(data, '\n'))
	return err
}

// respond writes v as the response body and logs an encoding failure.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.logger.Error("writing response", "path", r.URL.Path, "error", err)
	}
}

// writeError maps err to a response. Errors without a status are upstream
// or internal failures and answer 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var he *httpError
	switch {
	case errors.As(err, &he):
	case github.IsUnauthorized(err):
		he = &httpError{status: http.StatusUnauthorized, detail: err.Error()}
	default:
		he = &httpError{status: http.StatusInternalServerError, detail: err.Error()}
	}
	if he.status >= 500 {
		s.logger.Warn("request failed", "path", r.URL.Path, "error", err)
	}
	s.respond(w, r, he.status, errorBody{Detail: he.detail})
}
