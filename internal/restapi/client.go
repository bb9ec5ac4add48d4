// Package restapi implements the import pipeline's external services over
// the collaborator backend's HTTP JSON API.
package restapi

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

	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/google/uuid"
)

// API paths relative to the base URL.
const (
	PathCompanies   = "/companies"
	PathDepartments = "/departments"
	PathPositions   = "/positions"
	PathBulkCreate  = "/collaborators/bulk"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// Client talks to the collaborator backend. It implements both
// core.ReferenceLookup and core.RecordSubmitter.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

var (
	_ core.ReferenceLookup = (*Client)(nil)
	_ core.RecordSubmitter = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends "Authorization: Bearer <token>" with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL: %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// statusError is a non-2xx answer from the API.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// doJSON sends reqBody (if any) as JSON and decodes a 2xx response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("json marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("http read: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(respBody)), 200)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("json unmarshal response: %w", err)
	}
	return nil
}

// Companies lists the companies known to the backend.
func (c *Client) Companies(ctx context.Context) ([]core.ReferenceEntity, error) {
	return c.listReferences(ctx, PathCompanies)
}

// Departments lists the departments known to the backend.
func (c *Client) Departments(ctx context.Context) ([]core.ReferenceEntity, error) {
	return c.listReferences(ctx, PathDepartments)
}

// Positions lists the positions known to the backend.
func (c *Client) Positions(ctx context.Context) ([]core.ReferenceEntity, error) {
	return c.listReferences(ctx, PathPositions)
}

// referenceList accepts both a bare JSON array and {"data": [...]}.
type referenceList []core.ReferenceEntity

func (l *referenceList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Data []core.ReferenceEntity `json:"data"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		*l = wrapped.Data
		return nil
	}
	var items []core.ReferenceEntity
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

func (c *Client) listReferences(ctx context.Context, path string) ([]core.ReferenceEntity, error) {
	var list referenceList
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if list == nil {
		return []core.ReferenceEntity{}, nil
	}
	return list, nil
}

type bulkRequest struct {
	Collaborators []core.ResolvedPayload `json:"collaborators"`
}

type bulkResponse struct {
	Results []core.SubmissionResult `json:"results"`
}

// SubmitBatch posts every record in one request.
//
// Any transport failure or non-2xx status fails the whole batch with a
// *core.SubmissionError. A 2xx answer returns the per-record results as sent.
func (c *Client) SubmitBatch(ctx context.Context, records []core.ResolvedPayload) ([]core.SubmissionResult, error) {
	var resp bulkResponse
	err := c.doJSON(ctx, http.MethodPost, PathBulkCreate, bulkRequest{Collaborators: records}, &resp)
	if err != nil {
		subErr := &core.SubmissionError{Err: err}
		var se *statusError
		if errors.As(err, &se) {
			subErr.StatusCode = se.StatusCode
		}
		return nil, subErr
	}
	if resp.Results == nil {
		resp.Results = []core.SubmissionResult{}
	}
	return resp.Results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
