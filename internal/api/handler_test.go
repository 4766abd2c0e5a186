package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zennyMe17/interview-gateway/internal/scoring"
)

// newHandler wires the score endpoint against fake upstreams
func newHandler(t *testing.T, callStatus int, callBody string, completionReply string) http.HandlerFunc {
	t.Helper()

	callAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(callStatus)
		w.Write([]byte(callBody))
	}))
	t.Cleanup(callAPI.Close)

	completion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": completionReply}},
			},
		})
	}))
	t.Cleanup(completion.Close)

	svc := scoring.NewWithClients(
		scoring.NewCallClient(callAPI.URL, "secret"),
		scoring.NewCompletionClient(completion.URL, "key", "gpt-4o", 0.2),
		zerolog.Nop(),
	)
	return ScoreInterviewHandler(svc)
}

func doRequest(handler http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/score-interview", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestScoreInterview_Success(t *testing.T) {
	handler := newHandler(t, http.StatusOK, "{}", "strong hire")

	rec := doRequest(handler, http.MethodPost, `{"transcript": "Candidate: I wrote the scheduler."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var resp struct {
		Score string `json:"score"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Score != "strong hire" {
		t.Errorf("Expected verbatim score, got %q", resp.Score)
	}
}

func TestScoreInterview_EmptyTranscriptIsSuccess(t *testing.T) {
	handler := newHandler(t, http.StatusOK, "{}", "unused")

	rec := doRequest(handler, http.MethodPost, `{"transcript": ""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for empty transcript, got %d", rec.Code)
	}
	var resp struct {
		Score string `json:"score"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Score != scoring.NoTranscriptScore {
		t.Errorf("Expected defined no-transcript score, got %q", resp.Score)
	}
}

func TestScoreInterview_InvalidRequests(t *testing.T) {
	handler := newHandler(t, http.StatusOK, "{}", "unused")

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"neither field", `{}`},
		{"both fields", `{"sessionId": "a", "transcript": "b"}`},
		{"blank session id", `{"sessionId": "  "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(handler, http.MethodPost, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rec.Code)
			}
			var resp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to parse error response: %v", err)
			}
			if resp.Error == "" {
				t.Error("Expected error message in response")
			}
		})
	}
}

func TestScoreInterview_UpstreamFetchFailure(t *testing.T) {
	handler := newHandler(t, http.StatusNotFound, `{"message": "call not found"}`, "unused")

	rec := doRequest(handler, http.MethodPost, `{"sessionId": "missing-call"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "call not found") {
		t.Errorf("Expected upstream message in error, got %q", resp.Error)
	}
}

func TestScoreInterview_UpstreamModelFailure(t *testing.T) {
	completion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model overloaded"},
		})
	}))
	defer completion.Close()

	svc := scoring.NewWithClients(
		scoring.NewCallClient("http://unused", "secret"),
		scoring.NewCompletionClient(completion.URL, "key", "gpt-4o", 0.2),
		zerolog.Nop(),
	)
	handler := ScoreInterviewHandler(svc)

	rec := doRequest(handler, http.MethodPost, `{"transcript": "Candidate: answer"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "model overloaded") {
		t.Errorf("Expected model error message, got %q", resp.Error)
	}
}

func TestScoreInterview_MethodNotAllowed(t *testing.T) {
	handler := newHandler(t, http.StatusOK, "{}", "unused")

	rec := doRequest(handler, http.MethodGet, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}
