// Package events provides call lifecycle event definitions and publishing
// infrastructure. Transport-agnostic: sinks range from a debug logger to the
// webhook publisher that delivers end-of-call summaries.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the type of call event
type EventType string

const (
	// CallStarted fires when a session reaches the active phase
	CallStarted EventType = "call.started"
	// CallEnded fires when a session terminates (any reason); carries the summary
	CallEnded EventType = "call.ended"
)

// Subject naming conventions.
//
// Hierarchy:
//   attendant.calls.<call_id>.<event_suffix>  - Per-call events
//
// Wildcard subscriptions:
//   attendant.calls.>                         - All call events
//   attendant.calls.*.ended                   - All call.ended events
const (
	// SubjectPrefix is the root of all attendant subjects
	SubjectPrefix = "attendant"

	SubjectCalls       = SubjectPrefix + ".calls"
	SubjectCallStarted = "started"
	SubjectCallEnded   = "ended"
)

// Subject patterns for common consumer configurations
var (
	// PatternAllCalls matches all call events
	PatternAllCalls = SubjectCalls + ".>"

	// PatternCallEnded matches all call.ended events (for summary consumers)
	PatternCallEnded = SubjectCalls + ".*.ended"
)

// CallSubject builds a subject for a specific call event.
// Example: CallSubject("abc-123", "ended") => "attendant.calls.abc-123.ended"
func CallSubject(callID string, eventSuffix string) string {
	return SubjectCalls + "." + callID + "." + eventSuffix
}

// Event is the base interface for all call events
type Event interface {
	// Type returns the event type for routing/filtering
	Type() EventType
	// Subject returns the subject this event should publish to
	Subject() string
	// Timestamp returns when the event occurred
	Timestamp() time.Time
	// CallID returns the primary correlation ID
	CallID() string
}

// BaseEvent contains fields common to all events
type BaseEvent struct {
	// EventID is a unique identifier for this event instance (for deduplication)
	EventID string `json:"event_id"`
	// EventType identifies the event
	EventType EventType `json:"event_type"`
	// EventTime is when the event occurred (RFC3339Nano)
	EventTime time.Time `json:"event_time"`
	// CallUUID is the session's unique call identifier
	CallUUID string `json:"call_id"`
	// RoomID is the room the session was attached to
	RoomID string `json:"room_id"`
	// NodeID identifies the attendant instance (for fleet-wide consumers)
	NodeID string `json:"node_id,omitempty"`
}

func (e *BaseEvent) Type() EventType      { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTime }
func (e *BaseEvent) CallID() string       { return e.CallUUID }

// Subject returns the routing subject.
// Format: attendant.calls.<call_id>.<event_type_suffix>
func (e *BaseEvent) Subject() string {
	suffix := string(e.EventType)[5:] // strip "call." prefix
	return CallSubject(e.CallUUID, suffix)
}

// CallStartedEvent fires when the session goes active
type CallStartedEvent struct {
	BaseEvent
	Direction string `json:"direction"`
	Persona   string `json:"persona"`
	// TargetNumber is set for outbound calls
	TargetNumber string `json:"target_number,omitempty"`
}

// TranscriptEntry is one utterance in the summary transcript
type TranscriptEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// CallEndedEvent fires when the session terminates. It carries the
// full conversation summary for downstream consumers.
type CallEndedEvent struct {
	BaseEvent
	Direction         string            `json:"direction"`
	StartedAt         time.Time         `json:"started_at"`
	EndedAt           time.Time         `json:"ended_at"`
	DurationSeconds   float64           `json:"duration_seconds"`
	TerminationReason string            `json:"termination_reason"`
	Fields            map[string]string `json:"fields,omitempty"`
	Notes             []string          `json:"notes,omitempty"`
	Transcript        []TranscriptEntry `json:"transcript,omitempty"`
}

// MarshalEvent serializes an event for transport.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
