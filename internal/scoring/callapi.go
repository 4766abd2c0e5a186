package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zennyMe17/interview-gateway/internal/observability"
)

// CallMessage is one entry of the call-data API's messages array
type CallMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

// CallRecord is the call-data API response for a completed call
type CallRecord struct {
	ID       string        `json:"id"`
	Messages []CallMessage `json:"messages"`
}

// CallClient fetches call metadata from the Vapi call-data API using the
// server-held secret credential
type CallClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewCallClient creates a call-data API client
func NewCallClient(baseURL, secretKey string) *CallClient {
	return &CallClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{},
	}
}

// GetCall fetches one call record by session id. Non-success responses
// surface as *UpstreamFetchError with the upstream status and message.
func (c *CallClient) GetCall(ctx context.Context, sessionID string) (*CallRecord, error) {
	url := fmt.Sprintf("%s/call/%s", c.baseURL, sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create call request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call API request failed: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveCallFetch(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read call response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamFetchError{
			Status:  resp.StatusCode,
			Message: upstreamMessage(body),
		}
	}

	var record CallRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to parse call response: %w", err)
	}

	return &record, nil
}

// upstreamMessage extracts a human-readable message from an upstream error
// body, falling back to the raw payload
func upstreamMessage(body []byte) string {
	var decoded struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Message != "" {
			return decoded.Message
		}
		if decoded.Error != "" {
			return decoded.Error
		}
	}
	return strings.TrimSpace(string(body))
}
