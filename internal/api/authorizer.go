package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"polling-client/internal/metrics"
)

// CredentialReader is the narrow view of the credential store the
// authorizer needs. Load returns the empty string when no credential is
// available; read failures are handled inside the store.
type CredentialReader interface {
	Load() string
}

// Authorizer shapes every outbound request: it attaches the standard
// headers and the bearer credential to every call except the two that
// establish one, and records error responses for diagnostics. It never
// retries, never touches the credential store beyond reading, and never
// produces an error of its own.
type Authorizer struct {
	base  http.RoundTripper
	creds CredentialReader
	log   *slog.Logger
}

func NewAuthorizer(base http.RoundTripper, creds CredentialReader, log *slog.Logger) *Authorizer {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = slog.Default()
	}
	return &Authorizer{base: base, creds: creds, log: log}
}

func (a *Authorizer) RoundTrip(req *http.Request) (*http.Response, error) {
	// Login and registration must succeed before any credential exists;
	// they pass through unmodified.
	if issuesCredential(req.URL.Path) {
		resp, err := a.base.RoundTrip(req)
		if err != nil {
			metrics.IncRequest(req.Method, endpointOf(req.URL.Path), 0)
			return nil, err
		}
		metrics.IncRequest(req.Method, endpointOf(req.URL.Path), resp.StatusCode)
		return resp, nil
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Accept", "application/problem+json, application/json")
	clone.Header.Set("Content-Type", "application/json")

	requestID := uuid.NewString()
	clone.Header.Set("X-Request-ID", requestID)

	// Whether an anonymous call is permitted is the server's decision, so
	// an absent credential is not an error here.
	if token := a.creds.Load(); token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.base.RoundTrip(clone)
	if err != nil {
		metrics.IncRequest(req.Method, endpointOf(req.URL.Path), 0)
		return nil, err
	}
	metrics.IncRequest(req.Method, endpointOf(req.URL.Path), resp.StatusCode)

	if resp.StatusCode >= 400 {
		a.logErrorBody(resp, requestID)
	}
	return resp, nil
}

// logErrorBody captures the error response body for diagnostics and puts
// it back so the caller can still read it.
func (a *Authorizer) logErrorBody(resp *http.Response, requestID string) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	a.log.Warn("api error response",
		"method", resp.Request.Method,
		"endpoint", endpointOf(resp.Request.URL.Path),
		"status", resp.StatusCode,
		"request_id", requestID,
		"body", string(body),
	)
}

func issuesCredential(path string) bool {
	return strings.HasSuffix(path, "/login") || strings.HasSuffix(path, "/register")
}

// endpointOf normalizes a request path to its endpoint pattern so poll ids
// do not explode metric cardinality.
func endpointOf(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		if s != "polls" {
			continue
		}
		rest := segs[i+1:]
		switch {
		case len(rest) == 0:
			return "/polls"
		case len(rest) == 1:
			return "/polls/{id}"
		case len(rest) >= 2 && rest[1] == "vote":
			return "/polls/{id}/vote/{option_id}"
		}
	}
	if len(segs) == 0 || segs[len(segs)-1] == "" {
		return "/"
	}
	return "/" + segs[len(segs)-1]
}
