// Package collab is the client for the collaborator API that stores the
// catalog and learner progress.
package collab

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

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

const defaultTimeout = 15 * time.Second

// StatusError is returned when the collaborator answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collaborator %s failed (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the collaborator API. It implements catalog.Source and
// progress.Store.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a collaborator client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("collaborator base URL is required (LEARN_COLLAB_URL)")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchCatalog returns the flat catalog records visible to a learner.
func (c *Client) FetchCatalog(ctx context.Context, learnerID string) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	if err := c.get(ctx, "fetch catalog", "/api/intern-courses/"+url.PathEscape(learnerID), &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	return entries, nil
}

// ProgressResponse is the body of the fetch-progress call.
type ProgressResponse struct {
	CourseStatus progress.Record `json:"course_status"`
}

// ProgressUpdate is the body of the persist-progress call.
type ProgressUpdate struct {
	InternID string          `json:"internID"`
	Progress progress.Record `json:"progress"`
}

// FetchProgress returns the learner's progress record; a missing or null
// course_status is an empty record.
func (c *Client) FetchProgress(ctx context.Context, learnerID string) (progress.Record, error) {
	var resp ProgressResponse
	if err := c.get(ctx, "fetch progress", "/api/intern-progress/"+url.PathEscape(learnerID), &resp); err != nil {
		return nil, err
	}
	if resp.CourseStatus == nil {
		return progress.Record{}, nil
	}
	return resp.CourseStatus, nil
}

// SaveProgress persists the learner's full progress record.
func (c *Client) SaveProgress(ctx context.Context, learnerID string, r progress.Record) error {
	if r == nil {
		r = progress.Record{}
	}
	body, err := json.Marshal(ProgressUpdate{InternID: learnerID, Progress: r})
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/update-progress", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, "save progress")
	return err
}

// HealthCheck verifies the collaborator is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", op, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ContentURL joins the content host with a material's stored locator.
// Absolute locators are returned unchanged.
func ContentURL(base, locator string) string {
	if locator == "" {
		return ""
	}
	if u, err := url.Parse(locator); err == nil && u.IsAbs() {
		return locator
	}
	if base == "" {
		return locator
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(locator, "/")
}
