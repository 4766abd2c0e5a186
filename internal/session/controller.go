package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zennyMe17/interview-gateway/internal/observability"
	"github.com/zennyMe17/interview-gateway/internal/voice"
)

// Phase is the lifecycle phase of the controller's current session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseActive
	PhaseEnding
	PhaseEnded
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhaseEnding:
		return "ending"
	case PhaseEnded:
		return "ended"
	case PhaseErrored:
		return "errored"
	}
	return "unknown"
}

// ScoreState tracks the scoring outcome of the current session
type ScoreState int

const (
	ScoreIdle ScoreState = iota
	ScorePending
	ScoreReady
	ScoreFailed
)

// Derived status text, one value per observed event
const (
	StatusInitiating          = "Initiating…"
	StatusStarted             = "Started"
	StatusInterviewerSpeaking = "Interviewer Speaking"
	StatusListening           = "Listening to Candidate…"
	StatusCandidateSpeaking   = "Candidate Speaking…"
	StatusEnding              = "Ending…"
	StatusEnded               = "Ended"
	StatusError               = "Error During Interview"
)

var (
	ErrSessionInProgress = errors.New("a session is already active or starting")
	ErrSessionNotActive  = errors.New("no active session")
	ErrStartDisabled     = errors.New("voice public key is not configured; start is disabled")
	ErrControllerClosed  = errors.New("controller is closed")
)

// PermissionDeniedError reports a refused microphone permission probe
type PermissionDeniedError struct {
	Err error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("microphone permission denied: %v", e.Err)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// TranscriptSource selects how the completed transcript reaches the
// scoring proxy
type TranscriptSource int

const (
	// SourceClient sends the transcript buffered during the session
	SourceClient TranscriptSource = iota
	// SourceServer sends the session id; the proxy refetches the transcript
	SourceServer
)

// ScoreRequest is what the controller hands to its scorer when a session ends
type ScoreRequest struct {
	SessionID  string
	Transcript string
}

// Scorer produces an evaluation for a completed session
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (string, error)
}

// Connector opens a voice session with the given events listener bound
type Connector func(ctx context.Context, req voice.StartRequest, events voice.Events) (voice.Handle, error)

// PermissionFunc probes for microphone access before an inline session starts
type PermissionFunc func(ctx context.Context) error

// Config configures a Controller
type Config struct {
	// PublicKey initializes sessions; empty disables the start action
	PublicKey string

	// AssistantID selects a preregistered assistant; Assistant supplies an
	// inline configuration instead (requires a microphone permission probe)
	AssistantID string
	Assistant   *voice.AssistantConfig

	Source            TranscriptSource
	Connect           Connector
	RequestMicrophone PermissionFunc
	Scorer            Scorer
	Logger            zerolog.Logger
}

// DialerConnector adapts a voice.Dialer into a Connector
func DialerConnector(d *voice.Dialer) Connector {
	return func(ctx context.Context, req voice.StartRequest, events voice.Events) (voice.Handle, error) {
		return d.Dial(ctx, req, events)
	}
}

// Controller owns at most one voice session at a time. It reacts to the
// session's asynchronous events, derives status text, buffers the transcript,
// and invokes scoring exactly once per completed session.
type Controller struct {
	cfg    Config
	logger zerolog.Logger

	mu         sync.Mutex
	phase      Phase
	status     string
	volume     float64
	errText    string
	scoreState ScoreState
	scoreText  string
	handle     voice.Handle
	cur        *sessionCtx
	metrics    *observability.SessionMetrics
	closed     bool
}

// sessionCtx is the per-session context captured by the event handlers at
// start time. Rebuilding it for every session keeps late events and late
// scoring results from one session out of the next one's state.
type sessionCtx struct {
	c             *Controller
	id            string
	transcript    *TranscriptBuffer
	scored        bool
	stopRequested bool
}

// New creates a Controller
func New(cfg Config) *Controller {
	return &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		phase:  PhaseIdle,
	}
}

// Snapshot is a point-in-time view of the controller state for display
type Snapshot struct {
	Phase      Phase
	Status     string
	SessionID  string
	Muted      bool
	Volume     float64
	ScoreState ScoreState
	Score      string
	Err        string
}

// Snapshot returns the current controller state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Phase:      c.phase,
		Status:     c.status,
		Volume:     c.volume,
		ScoreState: c.scoreState,
		Score:      c.scoreText,
		Err:        c.errText,
	}
	if c.cur != nil {
		s.SessionID = c.cur.id
	}
	if c.handle != nil {
		s.Muted = c.handle.IsMuted()
	}
	return s
}

// Start opens a new voice session. It is a no-op error while a session is
// already starting, active, or ending; the in-progress session is untouched.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	switch c.phase {
	case PhaseStarting, PhaseActive, PhaseEnding:
		c.mu.Unlock()
		return ErrSessionInProgress
	}
	if c.cfg.PublicKey == "" {
		c.mu.Unlock()
		return ErrStartDisabled
	}

	// Fresh per-session context: previous session's identifier, transcript
	// and score never leak into this one
	sctx := &sessionCtx{c: c, transcript: NewTranscriptBuffer()}
	c.cur = sctx
	c.handle = nil
	c.phase = PhaseStarting
	c.status = StatusInitiating
	c.volume = 0
	c.errText = ""
	c.scoreState = ScoreIdle
	c.scoreText = ""
	c.mu.Unlock()

	// Inline configurations capture audio directly, so probe for microphone
	// access before opening anything
	if c.cfg.Assistant != nil && c.cfg.RequestMicrophone != nil {
		if err := c.cfg.RequestMicrophone(ctx); err != nil {
			permErr := &PermissionDeniedError{Err: err}
			c.failStart(sctx, permErr)
			return permErr
		}
	}

	req := voice.StartRequest{
		AssistantID: c.cfg.AssistantID,
		Assistant:   c.cfg.Assistant,
	}
	handle, err := c.cfg.Connect(ctx, req, sctx)
	if err != nil {
		c.failStart(sctx, err)
		return err
	}

	c.mu.Lock()
	if c.closed || c.cur != sctx {
		c.mu.Unlock()
		handle.Close()
		return ErrControllerClosed
	}
	c.handle = handle
	if sctx.id == "" {
		sctx.id = handle.SessionID()
	}
	c.mu.Unlock()

	return nil
}

func (c *Controller) failStart(sctx *sessionCtx, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != sctx {
		return
	}
	c.phase = PhaseErrored
	c.status = StatusError
	c.errText = err.Error()
	observability.RecordError("start_failed", "session")
	c.logger.Warn().Err(err).Msg("Failed to start interview session")
}

// Stop requests a graceful end of the current session. The session ended
// event completes the transition.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.phase != PhaseActive && c.phase != PhaseStarting {
		c.mu.Unlock()
		return ErrSessionNotActive
	}
	if c.handle == nil {
		c.mu.Unlock()
		return ErrSessionNotActive
	}
	c.phase = PhaseEnding
	c.status = StatusEnding
	c.cur.stopRequested = true
	h := c.handle
	c.mu.Unlock()

	if err := h.Stop(); err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	return nil
}

// ToggleMute flips the mute state, reading the current value from the
// external handle rather than local state
func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	if c.phase != PhaseActive || c.handle == nil {
		c.mu.Unlock()
		return ErrSessionNotActive
	}
	h := c.handle
	c.mu.Unlock()

	return h.SetMuted(!h.IsMuted())
}

// SendSteeringPrompt injects a system message into the live conversation.
// Inactive sessions surface a local error; nothing is sent.
func (c *Controller) SendSteeringPrompt(content string) error {
	h, err := c.activeHandle()
	if err != nil {
		return err
	}
	return h.AddMessage("system", content)
}

// ForceClosingRemark makes the interviewer speak a final message and end the
// call after delivery. Inactive sessions surface a local error.
func (c *Controller) ForceClosingRemark(text string) error {
	h, err := c.activeHandle()
	if err != nil {
		return err
	}
	return h.Say(text, true)
}

func (c *Controller) activeHandle() (voice.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseActive || c.handle == nil {
		return nil, ErrSessionNotActive
	}
	return c.handle, nil
}

// Close tears down the controller. An active call is stopped exactly once
// and the session handle is closed, detaching all listeners.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	h := c.handle
	sctx := c.cur
	active := c.phase == PhaseStarting || c.phase == PhaseActive || c.phase == PhaseEnding
	stopRequested := sctx != nil && sctx.stopRequested
	c.handle = nil
	c.cur = nil
	if c.metrics != nil {
		c.metrics.RecordSessionEnd()
		c.metrics = nil
	}
	c.phase = PhaseIdle
	c.mu.Unlock()

	if h != nil {
		if active && !stopRequested {
			if err := h.Stop(); err != nil {
				c.logger.Warn().Err(err).Msg("Error stopping session during teardown")
			}
		}
		return h.Close()
	}
	return nil
}

// stale reports whether events for s belong to a replaced session.
// Caller must hold c.mu.
func (s *sessionCtx) stale() bool {
	return s.c.cur != s
}

// OnStarted implements voice.Events
func (s *sessionCtx) OnStarted(sessionID string) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.stale() {
		return
	}

	s.id = sessionID
	c.phase = PhaseActive
	c.status = StatusStarted
	c.scoreState = ScoreIdle
	c.scoreText = ""
	c.metrics = observability.NewSessionMetrics(sessionID)
	c.metrics.RecordSessionStart()
	c.logger.Info().Str("session_id", sessionID).Msg("Interview session active")
}

// OnSpeechStart implements voice.Events
func (s *sessionCtx) OnSpeechStart(role voice.Role) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.stale() || c.phase != PhaseActive {
		return
	}

	if role == voice.RoleInterviewer {
		c.status = StatusInterviewerSpeaking
	} else {
		c.status = StatusCandidateSpeaking
	}
}

// OnSpeechEnd implements voice.Events
func (s *sessionCtx) OnSpeechEnd(role voice.Role) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.stale() || c.phase != PhaseActive {
		return
	}

	if role == voice.RoleInterviewer {
		c.status = StatusListening
	}
}

// OnVolume implements voice.Events
func (s *sessionCtx) OnVolume(level float64) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.stale() {
		return
	}
	c.volume = level
}

// OnTranscript implements voice.Events
func (s *sessionCtx) OnTranscript(role voice.Role, text string, final bool) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.stale() {
		return
	}

	if role == voice.RoleCandidate && c.phase == PhaseActive {
		c.status = StatusCandidateSpeaking
	}
	if final {
		speaker := SpeakerInterviewer
		if role == voice.RoleCandidate {
			speaker = SpeakerCandidate
		}
		s.transcript.Append(speaker, text)
	}
}

// OnEnded implements voice.Events. Entering ended freezes the transcript and
// triggers at most one scoring invocation, using the identifier and
// transcript captured here rather than whatever a later session holds.
func (s *sessionCtx) OnEnded(reason string) {
	c := s.c
	c.mu.Lock()
	if s.stale() {
		c.mu.Unlock()
		return
	}

	c.phase = PhaseEnded
	c.status = StatusEnded
	if c.metrics != nil {
		c.metrics.RecordSessionEnd()
	}

	s.transcript.Freeze()
	id := s.id
	transcript := s.transcript.String()

	shouldScore := !s.scored && transcript != "" && c.cfg.Scorer != nil
	if shouldScore {
		s.scored = true
		c.scoreState = ScorePending
	}
	c.mu.Unlock()

	c.logger.Info().Str("session_id", id).Str("reason", reason).Msg("Interview session ended")

	if shouldScore {
		go c.runScoring(s, id, transcript)
	}
}

// OnError implements voice.Events
func (s *sessionCtx) OnError(err error) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.stale() {
		return
	}

	// No loading state survives an error: the phase leaves starting/ending
	// and the user can start over
	c.phase = PhaseErrored
	c.status = StatusError
	c.errText = err.Error()
	if c.metrics != nil {
		c.metrics.RecordSessionEnd()
		c.metrics.RecordError("session_error", "voice")
	}
	c.logger.Warn().Err(err).Str("session_id", s.id).Msg("Interview session error")
}

func (c *Controller) runScoring(s *sessionCtx, id, transcript string) {
	req := ScoreRequest{}
	switch c.cfg.Source {
	case SourceServer:
		req.SessionID = id
	default:
		req.Transcript = transcript
	}

	text, err := c.cfg.Scorer.Score(context.Background(), req)

	c.mu.Lock()
	defer c.mu.Unlock()
	// A newer session owns the score display now; this result is discarded
	if c.cur != s {
		return
	}
	if err != nil {
		c.scoreState = ScoreFailed
		c.scoreText = err.Error()
		observability.RecordError("scoring_failed", "session")
		c.logger.Warn().Err(err).Str("session_id", id).Msg("Scoring failed")
		return
	}
	c.scoreState = ScoreReady
	c.scoreText = text
	c.logger.Info().Str("session_id", id).Msg("Interview scored")
}
