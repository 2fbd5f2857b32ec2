// Package carebot provides a client for the carebot daemon's local API.
package carebot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultURL is where the daemon listens by default.
const DefaultURL = "http://localhost:8765"

// Client is a carebot local API client.
type Client struct {
	BaseURL    string
	Token      string // bearer token, when the daemon requires one
	HTTPClient *http.Client
}

// NewClient creates a new client. Sends may wait for the remote assistant,
// so the timeout is generous.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// APIError is returned for error responses from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("carebot error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// doRequest performs an HTTP request and decodes a JSON response into out.
func (c *Client) doRequest(method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	req, err := c.newRequest(context.Background(), method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Message is one entry of the conversation.
type Message struct {
	ID              string    `json:"id"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	Language        string    `json:"language"`
	Status          string    `json:"status"`
	Confidence      *float64  `json:"confidence,omitempty"`
	ServerTimestamp string    `json:"server_timestamp,omitempty"`
}

// Conversation is the history response.
type Conversation struct {
	UserID    string    `json:"user_id"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
	HasMore   bool      `json:"has_more"`
}

// SendResult reports what a send recorded.
type SendResult struct {
	User   Message  `json:"user"`
	Reply  *Message `json:"reply,omitempty"`
	Queued bool     `json:"queued"`
}

// QueuedSend is a message waiting for connectivity.
type QueuedSend struct {
	MessageID string    `json:"message_id"`
	NoticeID  string    `json:"notice_id"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	QueuedAt  time.Time `json:"queued_at"`
}

// Queue is the offline queue response.
type Queue struct {
	Length  int          `json:"length"`
	Pending []QueuedSend `json:"pending"`
}

// Connectivity is the connectivity response.
type Connectivity struct {
	Online     bool `json:"online"`
	Changed    bool `json:"changed"`
	QueueDepth int  `json:"queue_depth"`
}

// VoiceSettings mirrors the daemon's voice preferences.
type VoiceSettings struct {
	SpeechToText bool `json:"speechToText"`
	TextToSpeech bool `json:"textToSpeech"`
	AutoSpeak    bool `json:"autoSpeak"`
}

// NotificationSettings mirrors the daemon's notification preferences.
type NotificationSettings struct {
	HealthAlerts         bool `json:"healthAlerts"`
	VaccinationReminders bool `json:"vaccinationReminders"`
	SMS                  bool `json:"sms"`
}

// Preferences is the combined preferences response.
type Preferences struct {
	Voice         VoiceSettings        `json:"voice"`
	Language      string               `json:"language"`
	Notifications NotificationSettings `json:"notifications"`
}

// PreferencesUpdate replaces the non-nil fields.
type PreferencesUpdate struct {
	Voice         *VoiceSettings        `json:"voice,omitempty"`
	Language      *string               `json:"language,omitempty"`
	Notifications *NotificationSettings `json:"notifications,omitempty"`
}

// Check is one health check result.
type Check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Health is the health response.
type Health struct {
	Status     string           `json:"status"`
	Version    string           `json:"version"`
	Online     bool             `json:"online"`
	QueueDepth int              `json:"queue_depth"`
	Checks     map[string]Check `json:"checks"`
	Timestamp  string           `json:"timestamp"`
}

// MessagePreview is a shortened message in the stats response.
type MessagePreview struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// Stats is the stats response.
type Stats struct {
	TotalMessages  int              `json:"total_messages"`
	ByRole         map[string]int   `json:"by_role"`
	ByStatus       map[string]int   `json:"by_status"`
	QueueDepth     int              `json:"queue_depth"`
	Online         bool             `json:"online"`
	LastActivity   string           `json:"last_activity"`
	RecentMessages []MessagePreview `json:"recent_messages"`
}

// ListenResult is the response of a voice capture.
type ListenResult struct {
	Transcript string      `json:"transcript"`
	Result     *SendResult `json:"result"`
}

// Health checks daemon health. A degraded daemon still returns its report
// alongside the error.
func (c *Client) Health() (*Health, error) {
	req, err := c.newRequest(context.Background(), http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return &h, &APIError{StatusCode: resp.StatusCode, Message: h.Status}
	}
	return &h, nil
}

// Conversation retrieves the history. limit 0 returns everything; before
// pages back from a message id.
func (c *Client) Conversation(limit int, before string) (*Conversation, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if before != "" {
		q.Set("before", before)
	}
	path := "/conversation"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp Conversation
	if err := c.doRequest(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset clears the conversation back to the welcome message.
func (c *Client) Reset() (*Conversation, error) {
	var resp Conversation
	if err := c.doRequest(http.MethodDelete, "/conversation", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Send sends a user message.
func (c *Client) Send(text string) (*SendResult, error) {
	var resp SendResult
	if err := c.doRequest(http.MethodPost, "/messages", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Queue lists sends waiting for connectivity.
func (c *Client) Queue() (*Queue, error) {
	var resp Queue
	if err := c.doRequest(http.MethodGet, "/queue", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Connectivity reports whether the daemon can reach the assistant.
func (c *Client) Connectivity() (*Connectivity, error) {
	var resp Connectivity
	if err := c.doRequest(http.MethodGet, "/connectivity", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetConnectivity signals an online or offline state.
func (c *Client) SetConnectivity(online bool) (*Connectivity, error) {
	var resp Connectivity
	if err := c.doRequest(http.MethodPut, "/connectivity", map[string]bool{"online": online}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Preferences retrieves preferences.
func (c *Client) Preferences() (*Preferences, error) {
	var resp Preferences
	if err := c.doRequest(http.MethodGet, "/preferences", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdatePreferences replaces the given preference fields.
func (c *Client) UpdatePreferences(u PreferencesUpdate) (*Preferences, error) {
	var resp Preferences
	if err := c.doRequest(http.MethodPut, "/preferences", u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats retrieves conversation statistics.
func (c *Client) Stats() (*Stats, error) {
	var resp Stats
	if err := c.doRequest(http.MethodGet, "/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Listen captures one utterance on the daemon's microphone and sends it.
func (c *Client) Listen(language string) (*ListenResult, error) {
	var in any
	if language != "" {
		in = map[string]string{"language": language}
	}
	var resp ListenResult
	if err := c.doRequest(http.MethodPost, "/voice/listen", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Event is one server-sent event.
type Event struct {
	Name string
	Data json.RawMessage
}

// Watch streams daemon events to fn until ctx is done or the stream ends.
// Returning an error from fn stops the stream.
func (c *Client) Watch(ctx context.Context, fn func(Event) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long lived; only ctx bounds it.
	hc := *c.HTTPClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var ev Event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Name != "" {
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev = Event{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = append(ev.Data, strings.TrimPrefix(line, "data: ")...)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
