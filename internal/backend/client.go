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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/researchgpt/orchestrator/internal/models"
)

// Client talks to the research backend over HTTP JSON. All methods take a
// context; per-request timeouts come from the underlying http.Client.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a Client for the given backend root. summaryRPS paces
// summarize-url calls only; <= 0 disables pacing.
func NewClient(baseURL string, timeout time.Duration, summaryRPS float64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if summaryRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(summaryRPS), 1)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

type submitRequest struct {
	Query     string `json:"query"`
	RequestID string `json:"request_id"`
}

// Submit starts a new research task and returns the server's task id
// together with any immediate results.
func (c *Client) Submit(ctx context.Context, query, requestID string) (*SubmitResponse, error) {
	body, err := json.Marshal(submitRequest{Query: query, RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/research", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit research task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("submit research task: backend returned status %d", resp.StatusCode)
	}
	var out SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	if out.TaskID == "" {
		return nil, fmt.Errorf("submit response has no task_id: %w", models.ErrProtocol)
	}
	return &out, nil
}

// TaskStatus fetches the current status payload for a task. Validation of
// the status field itself belongs to the poller.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*StatusResponse, error) {
	u := fmt.Sprintf("%s/api/research/%s", c.baseURL, url.PathEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll task status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("poll task status: backend returned status %d", resp.StatusCode)
	}
	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &out, nil
}

// WebResources fetches the raw resource payload for a task. A non-2xx
// response or an error-status body is a failed fetch.
func (c *Client) WebResources(ctx context.Context, taskID string) (*ResourcesResponse, error) {
	u := fmt.Sprintf("%s/api/research/%s/web-resources", c.baseURL, url.PathEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create web resources request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: backend returned status %d", models.ErrFetchFailed, resp.StatusCode)
	}
	var out ResourcesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", models.ErrFetchFailed, err)
	}
	if out.Status == "error" {
		return nil, fmt.Errorf("%w: %s", models.ErrFetchFailed, out.Message)
	}
	return &out, nil
}

// SummarizeURL fetches the content summary for one URL. The target URL
// travels query-encoded, matching the backend's GET variant.
func (c *Client) SummarizeURL(ctx context.Context, target string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrSummaryFetchFailed, err)
		}
	}
	u := fmt.Sprintf("%s/api/summarize-url?url=%s", c.baseURL, url.QueryEscape(target))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSummaryFetchFailed, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSummaryFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: backend returned status %d", models.ErrSummaryFetchFailed, resp.StatusCode)
	}
	var out SummarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", models.ErrSummaryFetchFailed, err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "summarization failed"
		}
		return "", fmt.Errorf("%w: %s", models.ErrSummaryFetchFailed, msg)
	}
	return out.Summary, nil
}

// SearchQueries asks the backend to expand a topic into search queries.
func (c *Client) SearchQueries(ctx context.Context, query string) ([]string, error) {
	u := fmt.Sprintf("%s/api/search-queries?query=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create search queries request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch search queries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch search queries: backend returned status %d", resp.StatusCode)
	}
	var out SearchQueriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search queries response: %w", err)
	}
	return out.SearchQueries, nil
}

// ClearCache asks the backend to drop task-scoped caches. Fire-and-forget:
// failures are logged, never propagated.
func (c *Client) ClearCache(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/clear-cache", nil)
	if err != nil {
		c.logger.Warn("Failed to create clear-cache request", zap.Error(err))
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Clear-cache request failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Clear-cache returned non-success status", zap.Int("status", resp.StatusCode))
	}
}

// Download retrieves a server-side artifact by its opaque path reference.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/download?path=%s", c.baseURL, url.QueryEscape(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download artifact: backend returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact body: %w", err)
	}
	return data, nil
}
