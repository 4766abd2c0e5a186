package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/zennyMe17/interview-gateway/internal/observability"
	"github.com/zennyMe17/interview-gateway/internal/scoring"
)

type scoreResponse struct {
	Score string `json:"score"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ScoreInterviewHandler handles POST /api/score-interview. The body carries
// either {"sessionId": "..."} or {"transcript": "..."}; exactly one.
func ScoreInterviewHandler(svc *scoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		logger := observability.WithCorrelationID(r.Header.Get("X-Correlation-ID"))
		start := time.Now()

		var req scoring.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn().Err(err).Msg("Invalid scoring request body")
			observability.ObserveScoring("invalid", start)
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.Score(r.Context(), req)
		if err != nil {
			status, label := statusFor(err)
			logger.Warn().Err(err).Int("status", status).Msg("Scoring request failed")
			observability.ObserveScoring(label, start)
			observability.RecordError(label, "api")
			writeError(w, status, err.Error())
			return
		}

		logger.Info().
			Bool("no_transcript", result.NoTranscript).
			Dur("elapsed", time.Since(start)).
			Msg("Scoring request completed")
		observability.ObserveScoring("success", start)

		writeJSON(w, http.StatusOK, scoreResponse{Score: result.Score})
	}
}

// statusFor maps the scoring error taxonomy onto HTTP statuses 1:1
func statusFor(err error) (int, string) {
	var fetchErr *scoring.UpstreamFetchError
	var modelErr *scoring.UpstreamModelError

	switch {
	case errors.Is(err, scoring.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &fetchErr):
		return http.StatusInternalServerError, "upstream_fetch_error"
	case errors.As(err, &modelErr):
		return http.StatusInternalServerError, "upstream_model_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
