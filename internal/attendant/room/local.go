package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LocalService simulates the telephony platform in-process. Dials
// answer after a configurable delay, playback takes time proportional
// to remark length, and test or demo code injects caller activity
// through the CallerJoins/CallerSays/CallerLeaves helpers.
type LocalService struct {
	// AnswerDelay simulates ringing before an outbound callee answers
	AnswerDelay time.Duration
	// SpeakRate is the simulated playback speed in characters per second
	SpeakRate int

	logger *slog.Logger
	mu     sync.Mutex
	rooms  map[string]*localRoom
}

type localRoom struct {
	events   chan Event
	released bool
}

// NewLocalService creates a simulated room service.
func NewLocalService(logger *slog.Logger) *LocalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalService{
		SpeakRate: 50,
		logger:    logger,
		rooms:     make(map[string]*localRoom),
	}
}

// room returns the record for roomID, creating it on first use.
func (s *LocalService) room(roomID string) *localRoom {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		r = &localRoom{events: make(chan Event, 16)}
		s.rooms[roomID] = r
	}
	return r
}

// emit delivers an event to the room's feed. Events for released or
// unknown rooms are dropped, as are events that would overflow the
// buffer; a simulated feed never blocks the caller.
func (s *LocalService) emit(roomID string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok || r.released {
		return
	}
	select {
	case r.events <- ev:
	default:
		s.logger.Warn("[Rooms] Event dropped, feed buffer full",
			"room", roomID,
			"kind", ev.Kind.String(),
		)
	}
}

// Dial simulates the outbound leg: ring for AnswerDelay, then the
// callee joins. Rings longer than the timeout fail like an unanswered
// call would.
func (s *LocalService) Dial(ctx context.Context, req DialRequest) error {
	timeout := req.RingTimeout
	if timeout <= 0 {
		timeout = DefaultRingTimeout
	}

	if s.AnswerDelay > timeout {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(timeout):
			return fmt.Errorf("dial %s: no answer within %s", req.Number, timeout)
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.AnswerDelay):
	}

	s.logger.Debug("[Rooms] Simulated callee answered",
		"room", req.RoomID,
		"number", req.Number,
	)
	s.emit(req.RoomID, Event{
		Kind:        EventParticipantJoined,
		RoomID:      req.RoomID,
		Participant: req.Number,
		At:          time.Now(),
	})
	return nil
}

// Release tears the room down and closes its event feed. Idempotent;
// releasing an unknown room is a no-op.
func (s *LocalService) Release(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok || r.released {
		return nil
	}
	r.released = true
	close(r.events)

	s.logger.Debug("[Rooms] Released room", "room", roomID)
	return nil
}

// Events returns the room's event feed.
func (s *LocalService) Events(roomID string) <-chan Event {
	return s.room(roomID).events
}

// Speak simulates playback: duration is remark length divided by
// SpeakRate. Context cancellation stops playback mid-remark.
func (s *LocalService) Speak(ctx context.Context, req SpeakRequest) (<-chan SpeakStatus, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("speak in %s: empty remark", req.RoomID)
	}

	s.mu.Lock()
	r, ok := s.rooms[req.RoomID]
	released := ok && r.released
	s.mu.Unlock()
	if released {
		return nil, fmt.Errorf("speak in %s: room released", req.RoomID)
	}

	rate := s.SpeakRate
	if rate <= 0 {
		rate = 50
	}
	playback := time.Duration(len(req.Text)) * time.Second / time.Duration(rate)

	statusCh := make(chan SpeakStatus, 4)
	go func() {
		defer close(statusCh)

		statusCh <- SpeakStatus{RoomID: req.RoomID, State: SpeakStateStarted}

		select {
		case <-ctx.Done():
			statusCh <- SpeakStatus{RoomID: req.RoomID, State: SpeakStateStopped}
			return
		case <-time.After(playback):
		}

		statusCh <- SpeakStatus{RoomID: req.RoomID, State: SpeakStateCompleted}
	}()

	return statusCh, nil
}

// CallerJoins simulates a participant entering the room.
func (s *LocalService) CallerJoins(roomID, participant string) {
	s.emit(roomID, Event{
		Kind:        EventParticipantJoined,
		RoomID:      roomID,
		Participant: participant,
		At:          time.Now(),
	})
}

// CallerSays simulates one transcribed caller utterance.
func (s *LocalService) CallerSays(roomID, participant, text string) {
	s.emit(roomID, Event{
		Kind:        EventUtterance,
		RoomID:      roomID,
		Participant: participant,
		Text:        text,
		At:          time.Now(),
	})
}

// CallerLeaves simulates the remote party hanging up.
func (s *LocalService) CallerLeaves(roomID, participant string) {
	s.emit(roomID, Event{
		Kind:        EventParticipantLeft,
		RoomID:      roomID,
		Participant: participant,
		At:          time.Now(),
	})
}
