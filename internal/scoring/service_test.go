package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func strPtr(s string) *string { return &s }

// completionCapture records the chat requests a fake completion server saw
type completionCapture struct {
	mu       sync.Mutex
	requests []chatRequest
}

func (c *completionCapture) last(t *testing.T) chatRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatal("Expected a completion request, got none")
	}
	return c.requests[len(c.requests)-1]
}

func (c *completionCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func newCompletionServer(t *testing.T, reply string) (*httptest.Server, *completionCapture) {
	t.Helper()
	capture := &completionCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer model-key" {
			t.Errorf("Expected Bearer model-key, got %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode completion request: %v", err)
		}
		capture.mu.Lock()
		capture.requests = append(capture.requests, req)
		capture.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, capture
}

func newService(callURL, completionURL string) *Service {
	return NewWithClients(
		NewCallClient(callURL, "secret-key"),
		NewCompletionClient(completionURL, "model-key", "gpt-4o", 0.2),
		zerolog.Nop(),
	)
}

func TestScore_InvalidRequests(t *testing.T) {
	svc := newService("http://unused", "http://unused")

	cases := []struct {
		name string
		req  Request
	}{
		{"neither field", Request{}},
		{"both fields", Request{SessionID: strPtr("abc"), Transcript: strPtr("text")}},
		{"blank session id", Request{SessionID: strPtr("   ")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Score(context.Background(), tc.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestScore_EmptyTranscriptIsDefinedResult(t *testing.T) {
	// An empty transcript field is a valid request with a defined outcome;
	// no upstream is contacted
	completion, capture := newCompletionServer(t, "unused")
	svc := newService("http://unused", completion.URL)

	for _, transcript := range []string{"", "   ", "\n\t"} {
		result, err := svc.Score(context.Background(), Request{Transcript: strPtr(transcript)})
		if err != nil {
			t.Fatalf("Expected no error for empty transcript %q, got %v", transcript, err)
		}
		if !result.NoTranscript {
			t.Error("Expected NoTranscript result")
		}
		if result.Score != NoTranscriptScore {
			t.Errorf("Expected defined no-transcript score, got %q", result.Score)
		}
	}
	if capture.count() != 0 {
		t.Errorf("Expected no completion calls, got %d", capture.count())
	}
}

func TestScore_TranscriptPromptAndVerbatimReply(t *testing.T) {
	completion, capture := newCompletionServer(t, "  Factual Accuracy: 9/10. Overall: hire.  ")
	svc := newService("http://unused", completion.URL)

	transcript := "Interviewer: What is a mutex?\nCandidate: A lock guarding shared state."
	result, err := svc.Score(context.Background(), Request{Transcript: strPtr(transcript)})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	// The model's reply passes through untouched
	if result.Score != "  Factual Accuracy: 9/10. Overall: hire.  " {
		t.Errorf("Expected verbatim model reply, got %q", result.Score)
	}

	req := capture.last(t)
	if req.Model != "gpt-4o" {
		t.Errorf("Expected model gpt-4o, got %q", req.Model)
	}
	if req.Temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", req.Temperature)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("Expected system and user messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != systemPrompt {
		t.Errorf("Expected fixed system prompt, got %q", req.Messages[0].Content)
	}
	user := req.Messages[1].Content
	if !strings.Contains(user, transcript) {
		t.Errorf("Expected transcript embedded verbatim, got %q", user)
	}
	if !strings.Contains(user, "Factual Accuracy") || !strings.Contains(user, "Confidentiality Discipline") {
		t.Errorf("Expected both scoring dimensions in prompt, got %q", user)
	}
}

func TestScore_SessionFetchNormalizesMessages(t *testing.T) {
	callAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call/call-42" {
			t.Errorf("Expected path /call/call-42, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-key" {
			t.Errorf("Expected Bearer secret-key, got %q", got)
		}
		json.NewEncoder(w).Encode(CallRecord{
			ID: "call-42",
			Messages: []CallMessage{
				{Type: "system", Content: "You are an interviewer.", Sender: "system"},
				{Type: "transcript", Content: "Walk me through a deadlock.", Sender: "bot"},
				{Type: "transcript", Content: "", Sender: "user"},
				{Type: "transcript", Content: "Two locks acquired in opposite order.", Sender: "user"},
			},
		})
	}))
	defer callAPI.Close()

	completion, capture := newCompletionServer(t, "lean hire")
	svc := newService(callAPI.URL, completion.URL)

	result, err := svc.Score(context.Background(), Request{SessionID: strPtr("call-42")})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if result.Score != "lean hire" {
		t.Errorf("Expected verbatim score, got %q", result.Score)
	}

	user := capture.last(t).Messages[1].Content
	want := "Interviewer: Walk me through a deadlock.\nCandidate: Two locks acquired in opposite order."
	if !strings.Contains(user, want) {
		t.Errorf("Expected normalized two-line transcript in order, got %q", user)
	}
	if strings.Contains(user, "You are an interviewer.") {
		t.Errorf("Expected system message excluded from transcript, got %q", user)
	}
}

func TestScore_SessionWithNoUsableMessages(t *testing.T) {
	callAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CallRecord{ID: "call-7", Messages: []CallMessage{
			{Type: "system", Content: "prompt", Sender: "system"},
		}})
	}))
	defer callAPI.Close()

	completion, capture := newCompletionServer(t, "unused")
	svc := newService(callAPI.URL, completion.URL)

	result, err := svc.Score(context.Background(), Request{SessionID: strPtr("call-7")})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if !result.NoTranscript || result.Score != NoTranscriptScore {
		t.Errorf("Expected no-transcript result, got %+v", result)
	}
	if capture.count() != 0 {
		t.Errorf("Expected no completion calls, got %d", capture.count())
	}
}

func TestScore_FetchFailurePassesUpstreamMessage(t *testing.T) {
	callAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "call not found"})
	}))
	defer callAPI.Close()

	svc := newService(callAPI.URL, "http://unused")

	_, err := svc.Score(context.Background(), Request{SessionID: strPtr("missing")})
	var fetchErr *UpstreamFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected UpstreamFetchError, got %v", err)
	}
	if fetchErr.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", fetchErr.Status)
	}
	if fetchErr.Message != "call not found" {
		t.Errorf("Expected upstream message passed through, got %q", fetchErr.Message)
	}
	if !strings.Contains(err.Error(), "call not found") {
		t.Errorf("Expected error text to carry upstream message, got %q", err.Error())
	}
}

func TestScore_CompletionErrorSurfaces(t *testing.T) {
	completion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limit exceeded", "type": "rate_limit"},
		})
	}))
	defer completion.Close()

	svc := newService("http://unused", completion.URL)

	_, err := svc.Score(context.Background(), Request{Transcript: strPtr("Candidate: answer")})
	var modelErr *UpstreamModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("Expected UpstreamModelError, got %v", err)
	}
	if !strings.Contains(modelErr.Message, "rate limit exceeded") {
		t.Errorf("Expected upstream error message, got %q", modelErr.Message)
	}
}

func TestScore_CompletionEmptyContent(t *testing.T) {
	completion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "   "}},
			},
		})
	}))
	defer completion.Close()

	svc := newService("http://unused", completion.URL)

	_, err := svc.Score(context.Background(), Request{Transcript: strPtr("Candidate: answer")})
	var modelErr *UpstreamModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("Expected UpstreamModelError for empty content, got %v", err)
	}
}

func TestNormalizeMessages(t *testing.T) {
	cases := []struct {
		name     string
		messages []CallMessage
		want     string
	}{
		{"empty", nil, ""},
		{
			"mixed senders",
			[]CallMessage{
				{Content: "hello", Sender: "assistant"},
				{Content: "hi there", Sender: "user"},
				{Content: "tool output", Sender: "tool"},
			},
			"Interviewer: hello\nCandidate: hi there",
		},
		{
			"sender casing and aliases",
			[]CallMessage{
				{Content: "question", Sender: "Bot"},
				{Content: "answer", Sender: "CANDIDATE"},
			},
			"Interviewer: question\nCandidate: answer",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeMessages(tc.messages); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}
