package session

import (
	"sync"
	"time"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// Entry is one utterance in the conversation, in arrival order.
type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Transcript accumulates the conversation for the end-of-call summary.
// Safe for concurrent appends; the event loop and the speech path both
// write to it.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append records an utterance. Empty text is ignored.
func (t *Transcript) Append(role Role, text string) {
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Role: role, Text: text, At: time.Now()})
}

// Entries returns a copy of the transcript so far.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of recorded utterances.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
