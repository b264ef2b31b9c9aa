// Package room abstracts the telephony platform: the media room a
// call lives in, the outbound dial, remark playback, and the event
// feed of participant activity. All signaling and audio mechanics stay
// behind these interfaces.
package room

import (
	"context"
	"fmt"
	"time"
)

// DefaultRingTimeout bounds how long an outbound dial may ring.
const DefaultRingTimeout = 30 * time.Second

// SpeakRequest contains remark delivery parameters
type SpeakRequest struct {
	RoomID   string
	Text     string
	VoiceID  string
	Language string
}

// SpeakState represents the state of remark playback
type SpeakState int

const (
	SpeakStateStarted SpeakState = iota
	SpeakStateProgress
	SpeakStateCompleted
	SpeakStateStopped
	SpeakStateError
)

// String returns the string representation of the state
func (s SpeakState) String() string {
	switch s {
	case SpeakStateStarted:
		return "Started"
	case SpeakStateProgress:
		return "Progress"
	case SpeakStateCompleted:
		return "Completed"
	case SpeakStateStopped:
		return "Stopped"
	case SpeakStateError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// SpeakStatus reports playback progress
type SpeakStatus struct {
	RoomID string
	State  SpeakState
	Error  error
}

// SpeechDelivery abstracts remark synthesis and playback into a room.
// Implementations: LocalService (in-process), Client (remote control plane)
type SpeechDelivery interface {
	// Speak plays a remark, returning a channel for status updates.
	// SpeakStateCompleted is reported only when playback has fully
	// finished, never when the remark is merely queued.
	Speak(ctx context.Context, req SpeakRequest) (<-chan SpeakStatus, error)
}

// EventKind identifies a room event
type EventKind int

const (
	// EventParticipantJoined fires when a caller or callee enters the room
	EventParticipantJoined EventKind = iota
	// EventParticipantLeft fires when the remote party hangs up or drops
	EventParticipantLeft
	// EventUtterance carries one transcribed caller utterance
	EventUtterance
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventParticipantJoined:
		return "participant_joined"
	case EventParticipantLeft:
		return "participant_left"
	case EventUtterance:
		return "utterance"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Event is one observation from a room's feed
type Event struct {
	Kind        EventKind
	RoomID      string
	Participant string
	Text        string // transcribed utterance, EventUtterance only
	At          time.Time
}

// DialRequest contains outbound call parameters
type DialRequest struct {
	RoomID      string
	Number      string
	CallerID    string
	RingTimeout time.Duration
}

// Service is the telephony control surface for rooms.
// Implementations: LocalService (in-process simulation), Client (remote)
type Service interface {
	// Dial places the outbound leg and blocks until the callee answers
	// or the ring timeout elapses.
	Dial(ctx context.Context, req DialRequest) error

	// Release ends the call and tears the room down. Idempotent.
	Release(ctx context.Context, roomID string) error

	// Events returns the room's event stream. The channel closes when
	// the room is released or the underlying feed ends.
	Events(roomID string) <-chan Event
}
