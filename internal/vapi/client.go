// Package vapi integrates with the Vapi.ai voice-agent API.
package vapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nexahq/nexa-backend/internal/httputil"
)

// TranscriptNotAvailable marks calls delivered without a transcript.
const TranscriptNotAvailable = "Not Available"

// CallRecord is the subset of a Vapi call object the backend consumes.
type CallRecord struct {
	ID         string
	Phone      string
	Transcript string
}

// Client talks to the Vapi.ai REST API.
type Client struct {
	http        *httputil.Client
	assistantID string
}

// Config configures the client.
type Config struct {
	BaseURL     string
	APIKey      string
	AssistantID string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// NewClient builds a Vapi client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("vapi base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("vapi API key is required")
	}

	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL:    cfg.BaseURL,
			Token:      cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: 2,
			HTTPClient: cfg.HTTPClient,
		}),
		assistantID: strings.TrimSpace(cfg.AssistantID),
	}, nil
}

// ListCalls fetches recorded calls for the configured assistant.
func (c *Client) ListCalls(ctx context.Context) ([]CallRecord, error) {
	path := "/call"
	if c.assistantID != "" {
		path += "?assistantId=" + url.QueryEscape(c.assistantID)
	}

	resp, err := c.http.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch call logs: %w", err)
	}
	defer resp.Body.Close()

	body, truncated, err := httputil.ReadBody(resp.Body, 16<<20)
	if err != nil {
		return nil, fmt.Errorf("read call logs: %w", err)
	}
	if truncated {
		return nil, fmt.Errorf("call log response exceeds limit")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch call logs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("unexpected call log payload")
	}

	var records []CallRecord
	parsed.ForEach(func(_, call gjson.Result) bool {
		records = append(records, CallRecord{
			ID:         call.Get("id").String(),
			Phone:      stringOr(call.Get("customer.number"), "Unknown"),
			Transcript: extractTranscript(call),
		})
		return true
	})
	return records, nil
}

// extractTranscript pulls the transcript from the last message artifact of a
// call object, tolerating absent fields.
func extractTranscript(call gjson.Result) string {
	messages := call.Get("messages")
	if !messages.IsArray() {
		return TranscriptNotAvailable
	}
	items := messages.Array()
	if len(items) == 0 {
		return TranscriptNotAvailable
	}
	return stringOr(items[len(items)-1].Get("artifact.transcript"), TranscriptNotAvailable)
}

// WebhookEvent is the payload delivered to the webhook endpoint.
type WebhookEvent struct {
	Phone      string
	Transcript string
}

// ParseWebhook extracts the caller number and transcript from a webhook body.
// Missing fields come back empty; the caller decides how to respond.
func ParseWebhook(body []byte) WebhookEvent {
	parsed := gjson.ParseBytes(body)
	return WebhookEvent{
		Phone:      parsed.Get("message.customer.number").String(),
		Transcript: parsed.Get("message.artifact.transcript").String(),
	}
}

func stringOr(r gjson.Result, fallback string) string {
	if s := strings.TrimSpace(r.String()); s != "" {
		return s
	}
	return fallback
}
