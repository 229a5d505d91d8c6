// Package remote calls the hosted planning and intent endpoints used by
// subscription models.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/planner"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.StatusCode, strings.TrimSpace(e.Body))
}

// Client talks to a remote server. Output is used as returned; nothing is
// validated or retried here.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client with the given request timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type planResponse struct {
	Tasks []models.Task `json:"tasks"`
}

type intentRequest struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	Message        string           `json:"message"`
	History        []models.Message `json:"history,omitempty"`
}

// Plan implements planner.RemotePlanner
func (c *Client) Plan(ctx context.Context, req planner.RemoteRequest) ([]models.Task, error) {
	var resp planResponse
	if err := c.post(ctx, "/api/plan", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// DetectIntent implements intent.RemoteDetector
func (c *Client) DetectIntent(ctx context.Context, conversationID, message string, history []models.Message) (models.IntentResult, error) {
	var resp models.IntentResult
	err := c.post(ctx, "/api/intent", intentRequest{
		ConversationID: conversationID,
		Message:        message,
		History:        history,
	}, &resp)
	return resp, err
}

func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
