package events

import (
	"time"

	"github.com/google/uuid"
)

// Builder provides fluent construction of call events with consistent defaults.
type Builder struct {
	nodeID string
}

// NewBuilder creates an event builder with global defaults.
func NewBuilder(nodeID string) *Builder {
	return &Builder{nodeID: nodeID}
}

// newBase creates a BaseEvent with common fields populated.
func (b *Builder) newBase(eventType EventType, callID, roomID string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		EventTime: time.Now().UTC(),
		CallUUID:  callID,
		RoomID:    roomID,
		NodeID:    b.nodeID,
	}
}

// CallStartedBuilder constructs CallStartedEvent.
type CallStartedBuilder struct {
	event *CallStartedEvent
}

// CallStarted starts building a CallStartedEvent.
func (b *Builder) CallStarted(callID, roomID string) *CallStartedBuilder {
	return &CallStartedBuilder{
		event: &CallStartedEvent{
			BaseEvent: b.newBase(CallStarted, callID, roomID),
		},
	}
}

func (cb *CallStartedBuilder) Direction(d string) *CallStartedBuilder {
	cb.event.Direction = d
	return cb
}

func (cb *CallStartedBuilder) Persona(name string) *CallStartedBuilder {
	cb.event.Persona = name
	return cb
}

func (cb *CallStartedBuilder) Target(number string) *CallStartedBuilder {
	cb.event.TargetNumber = number
	return cb
}

func (cb *CallStartedBuilder) Build() *CallStartedEvent {
	return cb.event
}

// CallEndedBuilder constructs CallEndedEvent.
type CallEndedBuilder struct {
	event *CallEndedEvent
}

// CallEnded starts building a CallEndedEvent.
func (b *Builder) CallEnded(callID, roomID string) *CallEndedBuilder {
	return &CallEndedBuilder{
		event: &CallEndedEvent{
			BaseEvent: b.newBase(CallEnded, callID, roomID),
		},
	}
}

func (cb *CallEndedBuilder) Direction(d string) *CallEndedBuilder {
	cb.event.Direction = d
	return cb
}

// Window records the session's start and end times and derives the duration.
func (cb *CallEndedBuilder) Window(startedAt, endedAt time.Time) *CallEndedBuilder {
	cb.event.StartedAt = startedAt
	cb.event.EndedAt = endedAt
	cb.event.DurationSeconds = endedAt.Sub(startedAt).Seconds()
	return cb
}

func (cb *CallEndedBuilder) Reason(reason string) *CallEndedBuilder {
	cb.event.TerminationReason = reason
	return cb
}

func (cb *CallEndedBuilder) Fields(fields map[string]string) *CallEndedBuilder {
	cb.event.Fields = fields
	return cb
}

func (cb *CallEndedBuilder) Notes(notes []string) *CallEndedBuilder {
	cb.event.Notes = notes
	return cb
}

func (cb *CallEndedBuilder) Transcript(entries []TranscriptEntry) *CallEndedBuilder {
	cb.event.Transcript = entries
	return cb
}

func (cb *CallEndedBuilder) Build() *CallEndedEvent {
	return cb.event
}
