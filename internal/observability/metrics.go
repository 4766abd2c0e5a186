package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_gateway_active_sessions",
		Help: "Number of active interview voice sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_gateway_sessions_total",
		Help: "Total number of interview sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_gateway_session_duration_seconds",
		Help:    "Duration of interview sessions in seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	})

	// Scoring metrics
	scoringRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_scoring_requests_total",
		Help: "Total number of scoring requests",
	}, []string{"status"})

	scoringLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_gateway_scoring_latency_seconds",
		Help:    "End-to-end scoring request latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Upstream metrics
	callFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_gateway_call_fetch_latency_seconds",
		Help:    "Vapi call-data fetch latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	completionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_gateway_completion_latency_seconds",
		Help:    "Completion API latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// SessionMetrics tracks metrics for a single voice session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
	mu        sync.Mutex
	ended     bool
}

// NewSessionMetrics creates a metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session; safe to call more than once
func (m *SessionMetrics) RecordSessionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true

	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// ObserveScoring records the outcome and latency of one scoring request
func ObserveScoring(status string, start time.Time) {
	scoringRequests.WithLabelValues(status).Inc()
	scoringLatency.Observe(time.Since(start).Seconds())
}

// ObserveCallFetch records the latency of one call-data fetch
func ObserveCallFetch(start time.Time) {
	callFetchLatency.Observe(time.Since(start).Seconds())
}

// ObserveCompletion records the latency of one completion API call
func ObserveCompletion(start time.Time) {
	completionLatency.Observe(time.Since(start).Seconds())
}

// RecordError records an error outside of a session scope
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
