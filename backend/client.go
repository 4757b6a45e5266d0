// Package backend is the HTTP client for the builder service: run triggers,
// remediation requests, and artifact queries. The backend itself is an
// external collaborator; everything here resolves to a value, never a
// panic.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pkt.systems/forgeview/schema"
	"pkt.systems/pslog"
)

// Config configures the backend client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     pslog.Logger
}

// Client talks to the builder backend. It implements core.BackendClient.
type Client struct {
	baseURL string
	http    *http.Client
	logger  pslog.Logger
}

// NewClient constructs a backend client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, schema.ErrBackendUnavailable
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", cfg.BaseURL, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Client{baseURL: base, http: httpClient, logger: logger}, nil
}

// Run triggers generation and deployment of a project.
func (c *Client) Run(ctx context.Context, req schema.RunRequest) (schema.RunResponse, error) {
	var resp schema.RunResponse
	if err := c.postJSON(ctx, "run", c.baseURL+"/api/run", req, &resp); err != nil {
		return schema.RunResponse{}, err
	}
	return resp, nil
}

// Remediate asks the backend to fix a captured failure.
func (c *Client) Remediate(ctx context.Context, req schema.RemediationRequest) (schema.RemediationResponse, error) {
	var resp schema.RemediationResponse
	if err := c.postJSON(ctx, "remediate", c.baseURL+"/api/remediate", req, &resp); err != nil {
		return schema.RemediationResponse{}, err
	}
	return resp, nil
}

// FileTree fetches the project artifact tree.
func (c *Client) FileTree(ctx context.Context, project schema.ProjectID) ([]schema.FileTreeNode, error) {
	endpoint := fmt.Sprintf("%s/api/projects/%s/files", c.baseURL, url.PathEscape(string(project)))
	var resp schema.FileTreeResponse
	if err := c.getJSON(ctx, "file_tree", endpoint, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Kind: ErrorRejected, Op: "file_tree", Message: resp.Error}
	}
	return resp.FileTree, nil
}

// FileContent fetches the content of one artifact.
func (c *Client) FileContent(ctx context.Context, project schema.ProjectID, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/projects/%s/file?path=%s",
		c.baseURL, url.PathEscape(string(project)), url.QueryEscape(path))
	var resp schema.FileContentResponse
	if err := c.getJSON(ctx, "file_content", endpoint, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &Error{Kind: ErrorRejected, Op: "file_content", Message: resp.Error}
	}
	return resp.Content, nil
}

func (c *Client) postJSON(ctx context.Context, op, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return NewError(ErrorUnknown, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return NewError(ErrorUnknown, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return NewError(ErrorUnknown, op, err)
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "op", op, "err", err)
		return NewError(ErrorUnavailable, op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return NewError(ErrorUnavailable, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("backend status", "op", op, "status", resp.StatusCode)
		return &Error{Kind: ErrorStatus, Op: op, Message: fmt.Sprintf("backend %s returned status %d", op, resp.StatusCode)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewError(ErrorDecode, op, err)
	}
	c.logger.Trace("backend request ok", "op", op, "bytes", len(body))
	return nil
}
