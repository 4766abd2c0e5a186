package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zennyMe17/interview-gateway/internal/config"
	"github.com/zennyMe17/interview-gateway/internal/observability"
	"github.com/zennyMe17/interview-gateway/internal/resilience"
)

const startAckTimeout = 15 * time.Second

// clientFrame is an outbound control frame
type clientFrame struct {
	Type         string           `json:"type"`
	PublicKey    string           `json:"publicKey,omitempty"`
	AssistantID  string           `json:"assistantId,omitempty"`
	Assistant    *AssistantConfig `json:"assistant,omitempty"`
	Muted        *bool            `json:"muted,omitempty"`
	Text         string           `json:"text,omitempty"`
	EndCallAfter bool             `json:"endCallAfter,omitempty"`
	Role         string           `json:"role,omitempty"`
	Content      string           `json:"content,omitempty"`
}

// serverFrame is an inbound session event frame
type serverFrame struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId,omitempty"`
	Role      string  `json:"role,omitempty"`
	Level     float64 `json:"level,omitempty"`
	Text      string  `json:"text,omitempty"`
	Final     bool    `json:"final,omitempty"`
	Muted     bool    `json:"muted,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// Dialer opens voice sessions against the realtime endpoint
type Dialer struct {
	URL       string
	PublicKey string
	Retry     *resilience.RetryConfig
	Logger    zerolog.Logger
}

// NewDialer builds a Dialer from service configuration
func NewDialer(cfg *config.Config) *Dialer {
	retry := resilience.DefaultRetryConfig()
	if cfg.DialMaxAttempts > 0 {
		retry.MaxAttempts = cfg.DialMaxAttempts
	}
	if cfg.DialInitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(cfg.DialInitialBackoff) * time.Millisecond
	}
	return &Dialer{
		URL:       cfg.VapiRealtimeURL,
		PublicKey: cfg.VapiPublicKey,
		Retry:     retry,
		Logger:    observability.GetLogger().With().Str("component", "voice").Logger(),
	}
}

// Client is a live voice session over a websocket connection.
// It implements Handle.
type Client struct {
	conn   *websocket.Conn
	events Events
	logger zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	stopped   atomic.Bool
	done      chan struct{}

	mu        sync.RWMutex
	sessionID string
	muted     bool
	ended     bool
}

// Dial connects to the realtime endpoint, sends the start frame, and waits
// for the service to confirm the session. The events listener is bound here
// and receives OnStarted before Dial returns.
func (d *Dialer) Dial(ctx context.Context, req StartRequest, events Events) (*Client, error) {
	if d.PublicKey == "" {
		return nil, fmt.Errorf("voice public key is required to start a session")
	}
	if events == nil {
		return nil, fmt.Errorf("events listener is required")
	}
	if req.AssistantID == "" && req.Assistant == nil {
		return nil, fmt.Errorf("either an assistant ID or an inline assistant config is required")
	}

	var conn *websocket.Conn
	dial := func() error {
		var resp *http.Response
		var err error
		conn, resp, err = websocket.DefaultDialer.DialContext(ctx, d.URL, nil)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
			}
			return fmt.Errorf("websocket dial failed: %w", err)
		}
		return nil
	}
	if err := resilience.Retry(ctx, dial, d.Retry, resilience.IsRetryableNetworkError); err != nil {
		return nil, err
	}

	start := clientFrame{
		Type:        "start",
		PublicKey:   d.PublicKey,
		AssistantID: req.AssistantID,
		Assistant:   req.Assistant,
	}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send start frame: %w", err)
	}

	// The first frame must confirm the session and carry its identifier
	conn.SetReadDeadline(time.Now().Add(startAckTimeout))
	var first serverFrame
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read start confirmation: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	switch first.Type {
	case "started":
		if first.SessionID == "" {
			conn.Close()
			return nil, fmt.Errorf("start confirmation missing session id")
		}
	case "error":
		conn.Close()
		return nil, fmt.Errorf("voice service rejected session: %s", first.Message)
	default:
		conn.Close()
		return nil, fmt.Errorf("unexpected first frame type %q", first.Type)
	}

	c := &Client{
		conn:      conn,
		events:    events,
		logger:    d.Logger.With().Str("session_id", first.SessionID).Logger(),
		done:      make(chan struct{}),
		sessionID: first.SessionID,
	}

	c.logger.Info().Msg("Voice session started")
	events.OnStarted(first.SessionID)
	go c.readLoop()

	return c, nil
}

// SessionID returns the identifier assigned by the service
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// IsMuted reports the mute state last confirmed by the service
func (c *Client) IsMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// SetMuted requests a mute state change; the mute-ack frame updates IsMuted
func (c *Client) SetMuted(muted bool) error {
	return c.sendJSON(clientFrame{Type: "mute", Muted: &muted})
}

// Say speaks a message through the session
func (c *Client) Say(text string, endCallAfter bool) error {
	return c.sendJSON(clientFrame{Type: "say", Text: text, EndCallAfter: endCallAfter})
}

// AddMessage injects a steering message into the live conversation
func (c *Client) AddMessage(role, content string) error {
	return c.sendJSON(clientFrame{Type: "add-message", Role: role, Content: content})
}

// Stop requests a graceful shutdown; the service answers with an ended frame.
// Repeated calls send a single stop frame.
func (c *Client) Stop() error {
	if c.stopped.Swap(true) {
		return nil
	}
	return c.sendJSON(clientFrame{Type: "stop"})
}

// Close tears down the connection and waits for the read loop to exit.
// Safe to call on every exit path.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

func (c *Client) sendJSON(frame clientFrame) error {
	if c.closed.Load() {
		return fmt.Errorf("voice session is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(frame)
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emitEnded("connection-closed")
				return
			}
			c.logger.Warn().Err(err).Msg("WebSocket read error")
			c.events.OnError(err)
			c.emitEnded("connection-error")
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Error().Err(err).Msg("Failed to parse session frame")
			continue
		}

		switch frame.Type {
		case "speech-start":
			c.events.OnSpeechStart(roleFromWire(frame.Role))

		case "speech-end":
			c.events.OnSpeechEnd(roleFromWire(frame.Role))

		case "volume":
			c.events.OnVolume(frame.Level)

		case "transcript":
			c.events.OnTranscript(roleFromWire(frame.Role), frame.Text, frame.Final)

		case "mute-ack":
			c.mu.Lock()
			c.muted = frame.Muted
			c.mu.Unlock()

		case "ended":
			reason := frame.Reason
			if reason == "" {
				reason = "remote"
			}
			c.emitEnded(reason)

		case "error":
			c.logger.Warn().Str("message", frame.Message).Msg("Voice service error")
			c.events.OnError(fmt.Errorf("voice session error: %s", frame.Message))

		default:
			c.logger.Debug().Str("type", frame.Type).Msg("Unknown session frame")
		}
	}
}

// emitEnded delivers OnEnded at most once per session
func (c *Client) emitEnded(reason string) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.mu.Unlock()

	c.logger.Info().Str("reason", reason).Msg("Voice session ended")
	c.events.OnEnded(reason)
}
