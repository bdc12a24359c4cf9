// Package n8n provides an authenticated HTTP client for the n8n REST API and
// pure helpers that read schemas and trigger metadata out of workflow
// definitions.
package n8n

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flowgate/flowgate/pkg/models"
)

const (
	defaultTimeout   = 30 * time.Second
	maxRetries       = 3
	retryBaseDelay   = 1 * time.Second
	apiKeyHeaderName = "X-N8N-API-KEY"
)

// Client talks to one n8n instance. All calls go through a single retrying
// request primitive: transient network errors and 5xx responses are retried
// with exponential backoff and jitter, 401 and 404 fail immediately.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// NewClient validates the instance URL and API key and returns a client. A
// pasted browser deep-link (".../workflow/<id>" or ".../home/...") is
// normalized back to the instance base URL before use.
func NewClient(instanceURL, apiKey string, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(instanceURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid instance URL %q", ErrInvalidConfiguration, instanceURL)
	}

	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", ErrInvalidConfiguration)
	}

	if strings.Contains(instanceURL, "/workflow/") || strings.Contains(instanceURL, "/home/") {
		sanitized := parsed.Scheme + "://" + parsed.Host + "/"
		logger.Warn("Sanitized instance URL to base domain", "path", parsed.Path, "base_url", sanitized)
		instanceURL = sanitized
	}

	if !strings.HasSuffix(instanceURL, "/") {
		instanceURL += "/"
	}

	return &Client{
		baseURL:    instanceURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.With("module", "n8n_client", "instance_url", instanceURL),
		sleep:      time.Sleep,
	}, nil
}

// BaseURL returns the normalized instance base URL, with a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request performs one API call with retry. It returns the response body on
// any 2xx status.
func (c *Client) request(ctx context.Context, method, endpoint string) ([]byte, error) {
	requestURL := c.baseURL + strings.TrimPrefix(endpoint, "/")

	var lastErr error

	for attempt := range maxRetries {
		body, retryable, err := c.attempt(ctx, method, requestURL)
		if err == nil {
			return body, nil
		}

		if !retryable {
			return nil, err
		}

		lastErr = err

		if attempt == maxRetries-1 {
			break
		}

		delay := time.Duration(float64(retryBaseDelay)*math.Pow(2, float64(attempt))) +
			time.Duration(rand.Float64()*float64(time.Second))
		c.logger.Warn("Request failed, retrying",
			"attempt", attempt+1, "max_retries", maxRetries, "delay", delay, "error", err)
		c.sleep(delay)
	}

	return nil, &ConnectionError{
		URL: c.baseURL,
		Err: fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr),
	}
}

// attempt performs a single HTTP exchange and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, requestURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set(apiKeyHeaderName, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, &ConnectionError{URL: c.baseURL, Err: ErrUnauthorized}
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", ErrWorkflowNotFound, requestURL)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("server error: status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, requestURL)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, false, nil
}

// ListWorkflows fetches the workflow listing. Both response shapes the API is
// known to produce are normalized: a wrapper object with a data array, or a
// bare array.
func (c *Client) ListWorkflows(ctx context.Context) ([]models.WorkflowSummary, error) {
	body, err := c.request(ctx, http.MethodGet, "api/v1/workflows")
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Data []json.RawMessage `json:"data"`
	}

	entries := make([]json.RawMessage, 0)

	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Data != nil {
		entries = wrapper.Data
	} else if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &ConnectionError{
			URL: c.baseURL,
			Err: fmt.Errorf("invalid workflows response: %w", err),
		}
	}

	workflows := make([]models.WorkflowSummary, 0, len(entries))

	for _, entry := range entries {
		var summary models.WorkflowSummary

		// Unknown or missing fields keep their zero values.
		if err := json.Unmarshal(entry, &summary); err != nil {
			continue
		}

		workflows = append(workflows, summary)
	}

	return workflows, nil
}

// WorkflowByID fetches a full workflow definition.
func (c *Client) WorkflowByID(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	body, err := c.request(ctx, http.MethodGet, "api/v1/workflows/"+url.PathEscape(workflowID))
	if err != nil {
		return nil, err
	}

	definition := &models.WorkflowDefinition{}
	if err := json.Unmarshal(body, definition); err != nil {
		return nil, &ConnectionError{
			URL: c.baseURL,
			Err: fmt.Errorf("invalid workflow response: %w", err),
		}
	}

	return definition, nil
}

// ValidateCredentials reports whether a lightweight listing call succeeds.
// Any connection or auth failure yields false; it never returns an error.
func (c *Client) ValidateCredentials(ctx context.Context) bool {
	_, err := c.request(ctx, http.MethodGet, "api/v1/workflows?limit=1")

	return err == nil
}
