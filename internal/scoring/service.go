package scoring

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zennyMe17/interview-gateway/internal/config"
	"github.com/zennyMe17/interview-gateway/internal/observability"
)

// NoTranscriptScore is the defined result when a call produced nothing to
// score. It is a valid outcome, not an error.
const NoTranscriptScore = "No transcript was available for this interview, so it cannot be scored."

// Request identifies what to score. Exactly one of SessionID or Transcript
// must be supplied; nil means the field was absent from the request.
type Request struct {
	SessionID  *string `json:"sessionId,omitempty"`
	Transcript *string `json:"transcript,omitempty"`
}

// Result is the outcome of a scoring request
type Result struct {
	Score        string
	NoTranscript bool
}

// Service is the scoring proxy: it resolves a transcript, builds the fixed
// evaluation prompt, and forwards it to the completion API. Stateless and
// safe for concurrent use; no upstream call is ever retried.
type Service struct {
	calls  *CallClient
	model  *CompletionClient
	logger zerolog.Logger
}

// New creates a scoring service from configuration
func New(cfg *config.Config) *Service {
	return &Service{
		calls:  NewCallClient(cfg.VapiAPIURL, cfg.VapiSecretKey),
		model:  NewCompletionClient(cfg.OpenAIAPIURL, cfg.OpenAIAPIKey, cfg.ScoringModel, cfg.ScoringTemperature),
		logger: observability.GetLogger().With().Str("component", "scoring").Logger(),
	}
}

// NewWithClients creates a scoring service with explicit upstream clients
func NewWithClients(calls *CallClient, model *CompletionClient, logger zerolog.Logger) *Service {
	return &Service{calls: calls, model: model, logger: logger}
}

// Score produces an evaluation for one interview. The transcript comes
// either from the request body or from the call-data API by session id.
func (s *Service) Score(ctx context.Context, req Request) (Result, error) {
	if (req.SessionID == nil) == (req.Transcript == nil) {
		return Result{}, ErrInvalidRequest
	}

	var transcript string
	switch {
	case req.SessionID != nil:
		id := strings.TrimSpace(*req.SessionID)
		if id == "" {
			return Result{}, ErrInvalidRequest
		}
		record, err := s.calls.GetCall(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("Call transcript fetch failed")
			return Result{}, err
		}
		transcript = normalizeMessages(record.Messages)

	default:
		transcript = strings.TrimSpace(*req.Transcript)
	}

	// An empty transcript is an expected outcome, not a failure
	if transcript == "" {
		return Result{Score: NoTranscriptScore, NoTranscript: true}, nil
	}

	score, err := s.model.Complete(ctx, systemPrompt, buildPrompt(transcript))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Completion request failed")
		return Result{}, err
	}

	// The model's text is returned verbatim
	return Result{Score: score}, nil
}
