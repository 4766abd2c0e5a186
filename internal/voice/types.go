package voice

// Role identifies who is speaking on a session event
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Events receives asynchronous callbacks from a live voice session.
// A listener is bound exactly once, at dial time, and is detached when the
// session handle is closed.
type Events interface {
	// OnStarted fires when the service confirms the session is live
	OnStarted(sessionID string)

	// OnSpeechStart fires when a participant begins speaking
	OnSpeechStart(role Role)

	// OnSpeechEnd fires when a participant stops speaking
	OnSpeechEnd(role Role)

	// OnVolume reports the latest audio amplitude (0.0 to 1.0)
	OnVolume(level float64)

	// OnTranscript delivers a transcript fragment; final marks a committed
	// utterance, otherwise the fragment is interim
	OnTranscript(role Role, text string, final bool)

	// OnEnded fires once when the session terminates, locally or remotely
	OnEnded(reason string)

	// OnError reports a runtime error from the service
	OnError(err error)
}

// AssistantConfig is an inline assistant definition for sessions that are
// not preregistered with the voice service
type AssistantConfig struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	SystemPrompt string `json:"systemPrompt"`
	FirstMessage string `json:"firstMessage,omitempty"`
}

// StartRequest configures a new voice session. Exactly one of AssistantID
// (preregistered) or Assistant (inline) should be set.
type StartRequest struct {
	AssistantID string
	Assistant   *AssistantConfig
}

// Handle is one live voice session. It is exclusively owned by a session
// controller and must be closed on every exit path.
type Handle interface {
	// SessionID returns the identifier assigned by the service at start
	SessionID() string

	// IsMuted reports the service-side mute state, not local bookkeeping
	IsMuted() bool

	// SetMuted requests a mute state change
	SetMuted(muted bool) error

	// Say speaks a message through the session, optionally ending the call
	// after delivery
	Say(text string, endCallAfter bool) error

	// AddMessage injects a steering message into the live conversation
	AddMessage(role, content string) error

	// Stop requests a graceful session shutdown; the ended event confirms it
	Stop() error

	// Close tears down the connection and detaches the event listener
	Close() error
}

func roleFromWire(role string) Role {
	switch role {
	case "user", "candidate":
		return RoleCandidate
	default:
		// The service reports the agent as "assistant" or "bot"
		return RoleInterviewer
	}
}
