// Package api is the REST client for the polls backend. Failures come back
// as apperr values carrying the HTTP status and raw body; transport
// failures map to the generic no-connection error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"polling-client/internal/platform/apperr"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New builds a client whose every request passes through the Authorizer.
func New(baseURL string, creds CredentialReader, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: NewAuthorizer(nil, creds, log),
		},
		log: log,
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password}, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, email, name, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/register", registerRequest{Email: email, Name: name, Password: password}, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, "/profile", nil, &out)
	return out, err
}

func (c *Client) ListPolls(ctx context.Context) ([]Poll, error) {
	var out []Poll
	err := c.do(ctx, http.MethodGet, "/polls", nil, &out)
	return out, err
}

func (c *Client) GetPoll(ctx context.Context, id string) (Poll, error) {
	var out Poll
	err := c.do(ctx, http.MethodGet, "/polls/"+url.PathEscape(id), nil, &out)
	return out, err
}

// CreatePoll returns the created poll, or nil when the server responds
// with an empty body.
func (c *Client) CreatePoll(ctx context.Context, title string, options []string) (*Poll, error) {
	out := &Poll{}
	err := c.do(ctx, http.MethodPost, "/polls", createPollRequest{Title: title, Options: options}, out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return out, nil
}

// UpdatePoll submits a poll edit. A nil options slice omits the options
// field entirely, which is how a closed-state-only edit of a locked poll
// goes out on the wire.
func (c *Client) UpdatePoll(ctx context.Context, id, title string, isOpen bool, options []string) (*Poll, error) {
	out := &Poll{}
	err := c.do(ctx, http.MethodPut, "/polls/"+url.PathEscape(id),
		updatePollRequest{Title: title, IsOpen: isOpen, Options: options}, out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return out, nil
}

func (c *Client) DeletePoll(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/polls/"+url.PathEscape(id), nil, nil)
}

func (c *Client) CastVote(ctx context.Context, pollID, optionID string) error {
	path := "/polls/" + url.PathEscape(pollID) + "/vote/" + url.PathEscape(optionID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		// The authorizer skips login/register, so the content type is set
		// here for every request that carries a body.
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "error", err)
		return apperr.NoConnection(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.NoConnection(err)
	}

	if resp.StatusCode >= 400 {
		return apperr.FromResponse(resp.StatusCode, data)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
