package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ProxyScorer submits completed sessions to the scoring proxy endpoint
// (POST /api/score-interview) and returns the score text.
type ProxyScorer struct {
	URL        string
	HTTPClient *http.Client
}

type proxyRequest struct {
	SessionID  *string `json:"sessionId,omitempty"`
	Transcript *string `json:"transcript,omitempty"`
}

type proxyResponse struct {
	Score string `json:"score"`
	Error string `json:"error"`
}

// Score implements Scorer
func (p *ProxyScorer) Score(ctx context.Context, req ScoreRequest) (string, error) {
	body := proxyRequest{}
	if req.SessionID != "" {
		body.SessionID = &req.SessionID
	} else {
		body.Transcript = &req.Transcript
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal scoring request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create scoring request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("scoring request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read scoring response: %w", err)
	}

	var decoded proxyResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("failed to parse scoring response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if decoded.Error != "" {
			return "", fmt.Errorf("scoring proxy returned status %d: %s", resp.StatusCode, decoded.Error)
		}
		return "", fmt.Errorf("scoring proxy returned status %d", resp.StatusCode)
	}

	return decoded.Score, nil
}
