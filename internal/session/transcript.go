package session

import (
	"strings"
	"sync"
)

// Speaker tags a transcript utterance
type Speaker string

const (
	SpeakerInterviewer Speaker = "Interviewer"
	SpeakerCandidate   Speaker = "Candidate"
)

// Utterance is a single speaker-tagged line of the interview
type Utterance struct {
	Speaker Speaker
	Text    string
}

// TranscriptBuffer accumulates the utterances of one session in order.
// It is append-only while the session is active and frozen once the session
// ends, before being handed to scoring.
type TranscriptBuffer struct {
	mu      sync.Mutex
	entries []Utterance
	frozen  bool
}

// NewTranscriptBuffer returns an empty buffer for a new session
func NewTranscriptBuffer() *TranscriptBuffer {
	return &TranscriptBuffer{}
}

// Append records an utterance. Empty text and appends after Freeze are ignored.
func (b *TranscriptBuffer) Append(speaker Speaker, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return
	}
	b.entries = append(b.entries, Utterance{Speaker: speaker, Text: text})
}

// Freeze makes the buffer read-only
func (b *TranscriptBuffer) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}

// Len returns the number of buffered utterances
func (b *TranscriptBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Entries returns a copy of the buffered utterances
func (b *TranscriptBuffer) Entries() []Utterance {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Utterance, len(b.entries))
	copy(out, b.entries)
	return out
}

// String renders the transcript one line per utterance, "<Role>: <text>"
func (b *TranscriptBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	for i, u := range b.entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(u.Speaker))
		sb.WriteString(": ")
		sb.WriteString(u.Text)
	}
	return sb.String()
}
