// Package memory holds the facts a caller supplies during one call so
// the conversation never re-requests them. Each session owns exactly
// one Memory; nothing is persisted here. At termination the collected
// fields and notes go into the call summary and the Memory is
// discarded.
package memory

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrFieldTaken is returned when a recorded field would be overwritten
// without an explicit correction.
var ErrFieldTaken = errors.New("field already recorded")

// Memory is the conversational fact store for a single call.
//
// Fields are set-once: an automatic extraction never silently replaces
// a value the assistant already confirmed. Only Correct replaces a
// value, and every replacement leaves a superseded-value note behind.
//
// Turn handling is serialized, but the closing summary may be read
// while a final turn is still in flight, so access is mutex-guarded.
type Memory struct {
	mu     sync.Mutex
	fields map[string]string
	notes  []string
}

// New creates an empty memory.
func New() *Memory {
	return &Memory{
		fields: make(map[string]string),
	}
}

// Record sets a field if it is currently empty. Recording the value a
// field already holds is an idempotent no-op. Recording a different
// value fails with ErrFieldTaken; use Correct for genuine corrections.
// Empty field names and empty values are ignored.
func (m *Memory) Record(field, value string) error {
	field = strings.TrimSpace(field)
	value = strings.TrimSpace(value)
	if field == "" || value == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.fields[field]; ok {
		if existing == value {
			return nil
		}
		return fmt.Errorf("%w: %s is %q", ErrFieldTaken, field, existing)
	}

	m.fields[field] = value
	return nil
}

// Correct replaces a field value. When a different non-empty value is
// superseded, it is first recorded in the notes, so a correction is
// always a visible event. Correcting an empty field is a plain set.
func (m *Memory) Correct(field, value string) {
	field = strings.TrimSpace(field)
	value = strings.TrimSpace(value)
	if field == "" || value == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.fields[field]; ok && existing != value {
		m.notes = append(m.notes, fmt.Sprintf("%s corrected from %q to %q", field, existing, value))
	}
	m.fields[field] = value
}

// Query returns the recorded value for a field, if any. The turn
// handler uses this to skip questions the caller already answered.
func (m *Memory) Query(field string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.fields[strings.TrimSpace(field)]
	return value, ok
}

// Annotate appends a free-text note for information that has no
// structured field (summary remarks, urgency assessment).
func (m *Memory) Annotate(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, note)
}

// Fields returns a copy of the recorded fields.
func (m *Memory) Fields() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// Notes returns a copy of the notes in append order.
func (m *Memory) Notes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.notes...)
}

// Len returns the number of recorded fields.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fields)
}
