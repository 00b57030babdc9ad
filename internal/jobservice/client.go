// Package jobservice provides a client for the external document-analysis backend.
package jobservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the analysis backend.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// Client is an analysis backend client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new analysis backend client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error response from the analysis backend.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("job service error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// IsNotFound reports whether the backend does not know the session.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type submitRequest struct {
	DocumentRef string `json:"document_ref"`
}

type submitResponse struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// Submit starts an analysis job for the referenced document.
// Non-2xx and transport failures are terminal for this attempt; the caller
// surfaces them and must not start polling.
func (c *Client) Submit(ctx context.Context, documentRef string) (string, error) {
	if documentRef == "" {
		return "", fmt.Errorf("document reference is required")
	}

	var resp submitResponse
	if err := c.post(ctx, "/analyze-document", submitRequest{DocumentRef: documentRef}, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", &APIError{
			StatusCode: http.StatusBadGateway,
			Message:    "backend accepted submission but returned no session id",
			Endpoint:   "/analyze-document",
		}
	}

	if c.logger != nil {
		c.logger.Info().
			Str("session_id", resp.SessionID).
			Str("document_ref", documentRef).
			Msg("Analysis job submitted")
	}
	return resp.SessionID, nil
}

// Status fetches the current job projection for a session.
func (c *Client) Status(ctx context.Context, sessionID string) (models.Job, error) {
	var job models.Job
	endpoint := "/job-status/" + url.PathEscape(sessionID)
	if err := c.get(ctx, endpoint, &job); err != nil {
		return models.Job{}, err
	}
	if job.SessionID == "" {
		job.SessionID = sessionID
	}
	return job, nil
}

// get performs a GET request to the backend.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	return c.do(req, path, result)
}

// post performs a POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, result)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", common.NewRequestID())
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

func (c *Client) do(req *http.Request, endpoint string, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := extractErrorMessage(data)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Endpoint:   endpoint,
		}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func extractErrorMessage(data []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	if len(data) > 0 {
		const maxLen = 200
		msg := string(data)
		if len(msg) > maxLen {
			msg = msg[:maxLen]
		}
		return msg
	}
	return "no error detail provided"
}
