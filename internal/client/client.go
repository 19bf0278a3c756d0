// Package client is a typed client for the projecthubd HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpapi "github.com/fyrsmithlabs/projecthub/internal/http"
	"github.com/fyrsmithlabs/projecthub/internal/panels"
	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to a projecthubd server.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// BaseURL returns the server URL the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (httpapi.HealthResponse, error) {
	var resp httpapi.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

// Projects lists the catalog and the active project id.
func (c *Client) Projects(ctx context.Context) (httpapi.ProjectsResponse, error) {
	var resp httpapi.ProjectsResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &resp)
	return resp, err
}

// CreateProject registers a directory as a project.
func (c *Client) CreateProject(ctx context.Context, name, path string) (*project.Project, error) {
	var p project.Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", httpapi.CreateProjectRequest{Name: name, Path: path}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProjectState returns the persisted state of a project.
func (c *Client) ProjectState(ctx context.Context, id string) (*state.ProjectState, error) {
	var st state.ProjectState
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(id)+"/state", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Active returns the active project, which is nil before the first switch.
func (c *Client) Active(ctx context.Context) (httpapi.ActiveResponse, error) {
	var resp httpapi.ActiveResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/active", nil, &resp)
	return resp, err
}

// Switch makes id the active project.
func (c *Client) Switch(ctx context.Context, id string) (httpapi.SwitchResponse, error) {
	var resp httpapi.SwitchResponse
	err := c.do(ctx, http.MethodPut, "/api/v1/active", httpapi.SwitchRequest{ProjectID: id}, &resp)
	return resp, err
}

// Reload re-runs the handlers for the active project.
func (c *Client) Reload(ctx context.Context) (httpapi.SwitchResponse, error) {
	var resp httpapi.SwitchResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/active/reload", nil, &resp)
	return resp, err
}

// Panels returns the panel view of the active project.
func (c *Client) Panels(ctx context.Context) (panels.Snapshot, error) {
	var snap panels.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/v1/active/panels", nil, &snap)
	return snap, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", c.baseURL+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError reads the echo error body ({"message": ...}) of a failed call.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiErr
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
