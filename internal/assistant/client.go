// Package assistant provides a client for the remote assistant endpoint that
// turns a user's message into a generated reply.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eldtechnologies/carebot/internal/metrics"
)

// DefaultProbePath is requested by Check. Any non-5xx answer counts as reachable.
const DefaultProbePath = "/api/alerts"

// ErrMalformedResponse is returned when the endpoint answers 2xx with a body
// that does not carry a reply.
var ErrMalformedResponse = errors.New("assistant: malformed response")

// APIError is returned for non-2xx replies.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("assistant error %d", e.StatusCode)
	}
	return fmt.Sprintf("assistant error %d: %s", e.StatusCode, e.Message)
}

// Client is a remote assistant API client.
type Client struct {
	BaseURL    string
	ProbePath  string
	HTTPClient *http.Client
}

// NewClient creates a new assistant client. The timeout bounds every request,
// including a reply that never arrives.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ProbePath:  DefaultProbePath,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// doRequest performs an HTTP request and returns the body of a 2xx reply.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	return respBody, nil
}

// ChatRequest is the request body for the chat endpoint.
type ChatRequest struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Language string `json:"language"`
}

// ChatResponse is the reply from the chat endpoint.
type ChatResponse struct {
	Response         string   `json:"response"`
	Timestamp        string   `json:"timestamp"`
	DetectedLanguage string   `json:"detected_language"`
	Confidence       *float64 `json:"confidence,omitempty"`
}

// Chat sends a message and returns the generated reply.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/chat", body)
	metrics.AssistantLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	return &resp, nil
}

// Check reports whether the endpoint host is reachable.
func (c *Client) Check(ctx context.Context) error {
	path := c.ProbePath
	if path == "" {
		path = DefaultProbePath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}
