// Package client talks to a running agentbar server over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jaakkos/agentbar/internal/app"
)

const defaultTimeout = 3 * time.Second

// Client is a thin REST client.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the server at baseURL (e.g. http://127.0.0.1:31415).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Response is the outcome body returned by mutating endpoints.
type Response struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StateUpdate is the body of update_state_by_path. Nil fields are omitted.
type StateUpdate struct {
	ProjectPath       string  `json:"project_path"`
	IDE               string  `json:"ide,omitempty"`
	Source            string  `json:"source,omitempty"`
	Status            *string `json:"status,omitempty"`
	Progress          *int    `json:"progress,omitempty"`
	EstimatedDuration *int64  `json:"estimated_duration,omitempty"`
	CurrentStage      *string `json:"current_stage,omitempty"`
}

// Status fetches the merged task view.
func (c *Client) Status(ctx context.Context) (*app.Snapshot, error) {
	var snap app.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// UpdateStateByPath applies a state change to the task matching the project path.
func (c *Client) UpdateStateByPath(ctx context.Context, u StateUpdate) (*Response, error) {
	var resp Response
	if err := c.do(ctx, http.MethodPost, "/api/task/update_state_by_path", u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var r Response
		_ = json.NewDecoder(resp.Body).Decode(&r)
		return &APIError{StatusCode: resp.StatusCode, Message: r.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
