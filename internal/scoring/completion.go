package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zennyMe17/interview-gateway/internal/observability"
)

// CompletionClient submits chat-completion requests to the model provider.
// One non-streaming request per scoring operation; no retries.
type CompletionClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewCompletionClient creates a completion API client
func NewCompletionClient(baseURL, apiKey, model string, temperature float64) *CompletionClient {
	return &CompletionClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{},
	}
}

// chatRequest is the chat-completions request format
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete submits a system and user message and returns the model's text
// response verbatim. Errors and empty responses surface as
// *UpstreamModelError.
func (c *CompletionClient) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamModelError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()
	observability.ObserveCompletion(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamModelError{Message: "failed to read response", Err: err}
	}

	var decoded chatResponse
	if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil && resp.StatusCode < 400 {
		return "", &UpstreamModelError{Message: "failed to parse response", Err: jsonErr}
	}

	if resp.StatusCode >= 400 {
		message := fmt.Sprintf("status %d", resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			message = fmt.Sprintf("status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return "", &UpstreamModelError{Message: message}
	}

	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", &UpstreamModelError{Message: "response contained no content"}
	}

	return decoded.Choices[0].Message.Content, nil
}
