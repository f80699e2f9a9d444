// Package client provides an HTTP client for the PrivateGPT API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/privategpt-go/internal/metrics"
	"github.com/raphaelgruber/privategpt-go/internal/service"
	"github.com/raphaelgruber/privategpt-go/internal/tasks"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Detail)
}

// Is makes errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the PrivateGPT API server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses PRIVATEGPT_URL env var or defaults to localhost:8000.
// PRIVATEGPT_TOKEN is sent as a bearer token when set.
// Timeout can be configured via PRIVATEGPT_CLIENT_TIMEOUT env var (default 10m for slow models).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PRIVATEGPT_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("PRIVATEGPT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   os.Getenv("PRIVATEGPT_TOKEN"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &detail) == nil {
			apiErr.Detail = detail.Detail
		} else {
			apiErr.Detail = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, result)
}

// =============================================================================
// QUERY OPERATIONS
// =============================================================================

// Health returns the server's health message.
func (c *Client) Health(ctx context.Context) (string, error) {
	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.getJSON(ctx, "/health", &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// Query asks a question against the ingested documents.
func (c *Client) Query(ctx context.Context, query string) (*service.Answer, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var result service.Answer
	if err := c.do(ctx, http.MethodPost, "/query", "application/json", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// DOCUMENT OPERATIONS
// =============================================================================

// UploadResult is the server's response to an upload.
type UploadResult struct {
	Message   string   `json:"message"`
	Filenames []string `json:"filenames"`
	TaskID    string   `json:"task_id"`
}

// Upload sends files for background ingestion. The body is streamed so
// large files are never held in memory.
func (c *Client) Upload(ctx context.Context, paths []string) (*UploadResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to upload")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeFiles(mw, paths))
	}()

	var result UploadResult
	err := c.do(ctx, http.MethodPost, "/upload_and_ingest", mw.FormDataContentType(), pr, &result)
	pr.Close()
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func writeFiles(mw *multipart.Writer, paths []string) error {
	for _, p := range paths {
		if err := writeFile(mw, p); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

// DeleteResult is the server's response to a delete.
type DeleteResult struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// DeleteDocument removes a document by its original filename and triggers
// re-ingestion.
func (c *Client) DeleteDocument(ctx context.Context, filename string) (*DeleteResult, error) {
	var result DeleteResult
	if err := c.do(ctx, http.MethodDelete, "/delete_document/"+url.PathEscape(filename), "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListDocuments returns the original names of the documents on the server.
func (c *Client) ListDocuments(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.getJSON(ctx, "/list_documents", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// TASK OPERATIONS
// =============================================================================

// GetTask retrieves an ingestion task by ID.
func (c *Client) GetTask(ctx context.Context, id string) (*tasks.Task, error) {
	var result tasks.Task
	if err := c.getJSON(ctx, "/ingestion_status/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTasks returns all ingestion tasks, newest first.
func (c *Client) ListTasks(ctx context.Context) ([]tasks.Task, error) {
	var result []tasks.Task
	if err := c.getJSON(ctx, "/ingestion_status", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// WaitForTask polls a task until it reaches a terminal status. onUpdate, if
// non-nil, sees every poll result.
func (c *Client) WaitForTask(ctx context.Context, id string, interval time.Duration, onUpdate func(*tasks.Task)) (*tasks.Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := c.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(task)
		}
		if task.Status.Terminal() {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// =============================================================================
// STATS OPERATIONS
// =============================================================================

// GetServerStats returns in-memory runtime statistics (reset on server restart).
func (c *Client) GetServerStats(ctx context.Context) (*metrics.Snapshot, error) {
	var result metrics.Snapshot
	if err := c.getJSON(ctx, "/stats", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
