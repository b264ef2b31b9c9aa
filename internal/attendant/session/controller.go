// Package session implements the call lifecycle: one controller per call,
// driving it from Initializing through Active to Terminated. Every path,
// including every failure path, ends in Terminated with the room released
// and a summary event published.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nordvoice/attendant/internal/attendant/call"
	"github.com/nordvoice/attendant/internal/attendant/engine"
	"github.com/nordvoice/attendant/internal/attendant/events"
	"github.com/nordvoice/attendant/internal/attendant/memory"
	"github.com/nordvoice/attendant/internal/attendant/profile"
	"github.com/nordvoice/attendant/internal/attendant/room"
	"github.com/nordvoice/attendant/internal/attendant/watchdog"
)

const (
	// DefaultFarewellGrace bounds the wait for closing-remark playback.
	DefaultFarewellGrace = 10 * time.Second
	// DefaultDialTimeout bounds outbound ringing.
	DefaultDialTimeout = 30 * time.Second

	releaseTimeout = 10 * time.Second
	publishTimeout = 30 * time.Second
)

// Dependencies carries everything a session controller needs. RoomID,
// Resolver, Binder, Rooms, Speech and Engine are required; the rest
// default sensibly.
type Dependencies struct {
	RoomID   string
	Metadata string // raw job metadata JSON, may be empty or malformed

	Resolver  *call.Resolver
	Binder    *profile.Binder
	Rooms     room.Service
	Speech    room.SpeechDelivery
	Engine    engine.TurnEngine
	Publisher events.Publisher
	Builder   *events.Builder
	Logger    *slog.Logger

	// CallerID is presented to the callee on outbound dials.
	CallerID string

	DialTimeout   time.Duration
	FarewellGrace time.Duration
}

// Controller owns one call session. Watchdog goroutines and the engine's
// end_call tool synchronize with it solely through Terminate, the
// phase-guarded entry; the wind-down sequence itself runs on the Run
// goroutine and is never cancelled.
type Controller struct {
	id     string
	deps   Dependencies
	logger *slog.Logger

	mem        *memory.Memory
	transcript *Transcript

	mu        sync.Mutex
	phase     Phase
	reason    Reason
	hasReason bool
	startedAt time.Time
	endedAt   time.Time
	cctx      call.Context
	prof      *profile.BehaviorProfile
	dog       *watchdog.Watchdog
	cancelRun context.CancelFunc

	done chan struct{}
}

// New creates a controller in the Initializing phase.
func New(deps Dependencies) (*Controller, error) {
	if deps.RoomID == "" {
		return nil, fmt.Errorf("session: room id is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("session: resolver is required")
	}
	if deps.Binder == nil {
		return nil, fmt.Errorf("session: binder is required")
	}
	if deps.Rooms == nil {
		return nil, fmt.Errorf("session: room service is required")
	}
	if deps.Speech == nil {
		return nil, fmt.Errorf("session: speech delivery is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("session: turn engine is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewNoopPublisher()
	}
	if deps.Builder == nil {
		deps.Builder = events.NewBuilder("")
	}
	if deps.DialTimeout <= 0 {
		deps.DialTimeout = DefaultDialTimeout
	}
	if deps.FarewellGrace <= 0 {
		deps.FarewellGrace = DefaultFarewellGrace
	}

	return &Controller{
		id:         uuid.New().String(),
		deps:       deps,
		logger:     deps.Logger,
		mem:        memory.New(),
		transcript: NewTranscript(),
		phase:      PhaseInitializing,
		done:       make(chan struct{}),
	}, nil
}

func (c *Controller) ID() string     { return c.id }
func (c *Controller) RoomID() string { return c.deps.RoomID }

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// TerminationReason returns the recorded reason, once one has been set.
func (c *Controller) TerminationReason() (Reason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.hasReason
}

// Done closes when the session reaches Terminated.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Memory exposes the session's conversation memory.
func (c *Controller) Memory() *memory.Memory { return c.mem }

// Transcript exposes the session's conversation transcript.
func (c *Controller) Transcript() *Transcript { return c.transcript }

// Info is a point-in-time snapshot for the ops API.
type Info struct {
	ID        string    `json:"call_id"`
	RoomID    string    `json:"room_id"`
	Direction string    `json:"direction"`
	Persona   string    `json:"persona,omitempty"`
	Phase     string    `json:"phase"`
	Reason    string    `json:"termination_reason,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Info snapshots the session for listing and stats.
func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := Info{
		ID:        c.id,
		RoomID:    c.deps.RoomID,
		Direction: c.cctx.Direction.String(),
		Phase:     c.phase.String(),
		StartedAt: c.startedAt,
	}
	if c.prof != nil {
		info.Persona = c.prof.PersonaName
	}
	if c.hasReason {
		info.Reason = c.reason.String()
	}
	return info
}

// transition moves to next if the phase machine allows it. Callers hold mu.
func (c *Controller) transition(next Phase) bool {
	if !c.phase.CanTransitionTo(next) {
		c.logger.Warn("[Session] Invalid phase transition",
			"call_id", c.id,
			"from", c.phase.String(),
			"to", next.String(),
		)
		return false
	}
	c.phase = next
	return true
}

// Run drives the full lifecycle and returns once the session is
// Terminated. The context covers the conversation; cancelling it winds
// the session down, it does not abort the teardown.
func (c *Controller) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancelRun = cancel
	c.startedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("[Session] Starting",
		"call_id", c.id,
		"room", c.deps.RoomID,
	)

	// Resolution never fails; ambiguity defaults to inbound.
	cctx := c.deps.Resolver.Resolve(c.deps.RoomID, c.deps.Metadata)
	c.mu.Lock()
	c.cctx = cctx
	c.mu.Unlock()

	prof, err := c.deps.Binder.Bind(cctx)
	if err != nil {
		return c.failSetup(fmt.Errorf("bind profile: %w", err))
	}
	c.mu.Lock()
	c.prof = prof
	c.mu.Unlock()

	// The counterpart's number is known up front; the engine should
	// never have to ask for it.
	number := cctx.TargetNumber
	if number == "" {
		number = cctx.Metadata["caller_number"]
	}
	if number != "" {
		_ = c.mem.Record("phone", number)
	}

	// Subscribe before dialing so the join event is not missed.
	feed := c.deps.Rooms.Events(c.deps.RoomID)

	if cctx.Direction == call.DirectionOutbound {
		c.logger.Info("[Session] Dialing",
			"call_id", c.id,
			"number", cctx.TargetNumber,
			"timeout", c.deps.DialTimeout,
		)
		dialReq := room.DialRequest{
			RoomID:      c.deps.RoomID,
			Number:      cctx.TargetNumber,
			CallerID:    c.deps.CallerID,
			RingTimeout: c.deps.DialTimeout,
		}
		if err := c.deps.Rooms.Dial(runCtx, dialReq); err != nil {
			return c.failSetup(fmt.Errorf("dial out: %w", err))
		}
	}

	tools := c.buildTools(prof)
	if err := c.deps.Engine.Start(runCtx, prof, tools); err != nil {
		return c.failSetup(fmt.Errorf("start engine: %w", err))
	}
	defer func() { _ = c.deps.Engine.Close() }()

	dog := watchdog.New(prof.Safety.MaxCallDuration, prof.Safety.InactivityTimeout, c.onWatchdogExpire, c.logger)

	c.mu.Lock()
	c.dog = dog
	c.transition(PhaseActive)
	c.mu.Unlock()

	dog.Start(runCtx)

	c.logger.Info("[Session] Active",
		"call_id", c.id,
		"direction", cctx.Direction.String(),
		"persona", prof.PersonaName,
	)
	go c.publishStarted(cctx, prof)

	// Greeting, exactly once. The inactivity window starts counting
	// when it finishes playing.
	if prof.FirstMessage != "" {
		c.speak(runCtx, prof.FirstMessage)
		dog.Touch()
	}

	c.eventLoop(runCtx, feed)

	c.closedown()
	return nil
}

// buildTools wires the standard tool set to this session's memory and
// terminate entry, restricted to the profile's tool list.
func (c *Controller) buildTools(prof *profile.BehaviorProfile) *engine.Registry {
	reg := engine.SessionTools(c.mem, func() { c.Terminate(ReasonNatural) })
	if len(prof.ToolNames) == 0 {
		return reg
	}
	tools, missing := reg.Subset(prof.ToolNames)
	if len(missing) > 0 {
		c.logger.Warn("[Session] Profile names unknown tools",
			"call_id", c.id,
			"missing", missing,
		)
	}
	return tools
}

// failSetup handles failures before the session went active: the room is
// released and the session jumps straight to Terminated with reason error.
// No closing remark is attempted; speech never started.
func (c *Controller) failSetup(err error) error {
	c.logger.Error("[Session] Setup failed",
		"call_id", c.id,
		"room", c.deps.RoomID,
		"error", err,
	)

	c.releaseRoom()

	c.mu.Lock()
	c.transition(PhaseTerminated)
	c.reason = ReasonError
	c.hasReason = true
	c.endedAt = time.Now()
	c.mu.Unlock()

	c.publishEnded()
	close(c.done)
	return err
}

// eventLoop routes room events until the run context dies.
func (c *Controller) eventLoop(ctx context.Context, feed <-chan room.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-feed:
			if !ok {
				// Stream ended without a leave event: the room is gone.
				c.Terminate(ReasonExternalDisconnect)
				feed = nil
				continue
			}
			switch ev.Kind {
			case room.EventParticipantLeft:
				c.logger.Info("[Session] Participant left",
					"call_id", c.id,
					"participant", ev.Participant,
				)
				c.Terminate(ReasonExternalDisconnect)
			case room.EventUtterance:
				c.handleUtterance(ctx, ev.Text)
			case room.EventParticipantJoined:
				c.logger.Debug("[Session] Participant joined",
					"call_id", c.id,
					"participant", ev.Participant,
				)
			}
		}
	}
}

// handleUtterance runs one caller turn: reset the inactivity window,
// transcribe, get the reply, speak it. Turns are strictly serialized.
func (c *Controller) handleUtterance(ctx context.Context, text string) {
	if text == "" {
		return
	}

	c.dog.Touch()
	c.transcript.Append(RoleCaller, text)

	reply, err := c.deps.Engine.HandleTurn(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("[Session] Turn failed",
			"call_id", c.id,
			"error", err,
		)
		return
	}

	if reply == "" || c.Phase() != PhaseActive {
		// end_call fired mid-turn; the wind-down speaks the farewell.
		return
	}

	c.speak(ctx, reply)
	// Silence is measured from the end of our own playback.
	c.dog.Touch()
}

// speak delivers text and blocks until playback finishes, keeping turns
// from overlapping. Delivery problems are logged, not fatal.
func (c *Controller) speak(ctx context.Context, text string) {
	statusCh, err := c.deps.Speech.Speak(ctx, room.SpeakRequest{
		RoomID:   c.deps.RoomID,
		Text:     text,
		VoiceID:  c.prof.VoiceID,
		Language: c.prof.Language,
	})
	if err != nil {
		c.logger.Warn("[Session] Speech delivery failed",
			"call_id", c.id,
			"error", err,
		)
		return
	}
	c.transcript.Append(RoleAssistant, text)

	for {
		select {
		case status, ok := <-statusCh:
			if !ok {
				return
			}
			switch status.State {
			case room.SpeakStateCompleted:
				return
			case room.SpeakStateError:
				c.logger.Warn("[Session] Playback error",
					"call_id", c.id,
					"error", status.Error,
				)
				return
			case room.SpeakStateStopped:
				return
			}
		case <-ctx.Done():
			// Do not trust the collaborator to unblock us on cancel.
			return
		}
	}
}

// onWatchdogExpire maps timer expiry to the terminate entry. Both timers
// may fire around the same instant; the phase guard keeps one winner.
func (c *Controller) onWatchdogExpire(cause watchdog.Cause) {
	switch cause {
	case watchdog.CauseMaxDuration:
		c.Terminate(ReasonMaxDuration)
	case watchdog.CauseInactivity:
		c.Terminate(ReasonInactivity)
	}
}

// Terminate requests the wind-down with the given reason. The first call
// wins: it records the reason, moves the phase to Closing and stops the
// timers; later calls and calls outside the Active phase are no-ops. The
// wind-down sequence itself runs on the session's Run goroutine.
func (c *Controller) Terminate(reason Reason) {
	c.mu.Lock()
	if c.phase != PhaseActive {
		phase := c.phase
		c.mu.Unlock()
		c.logger.Debug("[Session] Terminate ignored",
			"call_id", c.id,
			"reason", reason.String(),
			"phase", phase.String(),
		)
		return
	}
	c.transition(PhaseClosing)
	c.reason = reason
	c.hasReason = true
	dog := c.dog
	cancel := c.cancelRun
	c.mu.Unlock()

	c.logger.Info("[Session] Closing",
		"call_id", c.id,
		"reason", reason.String(),
	)

	// Both safety timers die here, synchronously.
	if dog != nil {
		dog.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// closedown is the wind-down sequence: farewell, release, Terminated,
// summary. It runs exactly once, after the event loop exits, and is
// never cancelled; the farewell wait is bounded by the grace period.
func (c *Controller) closedown() {
	c.mu.Lock()
	if c.phase == PhaseActive {
		// The run context died without a recorded trigger (service
		// shutdown). Close as an error, without a farewell.
		c.transition(PhaseClosing)
		c.reason = ReasonError
		c.hasReason = true
	}
	reason := c.reason
	dog := c.dog
	c.mu.Unlock()

	if dog != nil {
		dog.Stop()
	}

	if remark := c.closingRemark(reason); remark != "" {
		c.deliverFarewell(remark)
	}

	c.releaseRoom()

	c.mu.Lock()
	c.transition(PhaseTerminated)
	c.endedAt = time.Now()
	duration := c.endedAt.Sub(c.startedAt)
	c.mu.Unlock()

	c.logger.Info("[Session] Terminated",
		"call_id", c.id,
		"reason", reason.String(),
		"duration", duration.Round(time.Millisecond),
	)

	c.publishEnded()
	close(c.done)
}

// closingRemark picks the farewell for the reason. Disconnects and errors
// get none; there is nobody left to hear it.
func (c *Controller) closingRemark(reason Reason) string {
	if c.prof == nil {
		return ""
	}
	switch reason {
	case ReasonNatural:
		return c.prof.Closing.Natural
	case ReasonMaxDuration:
		return c.prof.Closing.Timeout
	case ReasonInactivity:
		return c.prof.Closing.Inactivity
	default:
		return ""
	}
}

// deliverFarewell speaks the closing remark and waits for playback so the
// goodbye is never cut off, bounded by the grace period. It runs on its
// own clock; the session context is already gone.
func (c *Controller) deliverFarewell(remark string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.deps.FarewellGrace)
	defer cancel()

	statusCh, err := c.deps.Speech.Speak(ctx, room.SpeakRequest{
		RoomID:   c.deps.RoomID,
		Text:     remark,
		VoiceID:  c.prof.VoiceID,
		Language: c.prof.Language,
	})
	if err != nil {
		c.logger.Warn("[Session] Farewell delivery failed",
			"call_id", c.id,
			"error", err,
		)
		return
	}
	c.transcript.Append(RoleAssistant, remark)

	for {
		select {
		case status, ok := <-statusCh:
			if !ok {
				return
			}
			switch status.State {
			case room.SpeakStateCompleted:
				c.logger.Debug("[Session] Farewell played", "call_id", c.id)
				return
			case room.SpeakStateError:
				c.logger.Warn("[Session] Farewell playback error",
					"call_id", c.id,
					"error", status.Error,
				)
				return
			case room.SpeakStateStopped:
				return
			}
		case <-ctx.Done():
			c.logger.Warn("[Session] Farewell playback stalled, proceeding with teardown",
				"call_id", c.id,
				"grace", c.deps.FarewellGrace,
			)
			return
		}
	}
}

// releaseRoom hangs up the telephony side. Idempotent at the service.
func (c *Controller) releaseRoom() {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := c.deps.Rooms.Release(ctx, c.deps.RoomID); err != nil {
		c.logger.Warn("[Session] Room release failed",
			"call_id", c.id,
			"error", err,
		)
	}
}

func (c *Controller) publishStarted(cctx call.Context, prof *profile.BehaviorProfile) {
	ev := c.deps.Builder.CallStarted(c.id, c.deps.RoomID).
		Direction(cctx.Direction.String()).
		Persona(prof.PersonaName).
		Target(cctx.TargetNumber).
		Build()
	c.publish(ev)
}

// publishEnded emits the summary: reason, duration, memory fields and
// notes, full transcript.
func (c *Controller) publishEnded() {
	c.mu.Lock()
	cctx := c.cctx
	reason := c.reason
	startedAt, endedAt := c.startedAt, c.endedAt
	c.mu.Unlock()

	entries := c.transcript.Entries()
	wire := make([]events.TranscriptEntry, 0, len(entries))
	for _, e := range entries {
		wire = append(wire, events.TranscriptEntry{Role: string(e.Role), Text: e.Text, At: e.At})
	}

	ev := c.deps.Builder.CallEnded(c.id, c.deps.RoomID).
		Direction(cctx.Direction.String()).
		Window(startedAt, endedAt).
		Reason(reason.String()).
		Fields(c.mem.Fields()).
		Notes(c.mem.Notes()).
		Transcript(wire).
		Build()
	c.publish(ev)
}

// publish delivers one event to the sink. Failures are logged and
// swallowed; events never influence the lifecycle.
func (c *Controller) publish(ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.deps.Publisher.Publish(ctx, ev); err != nil {
		c.logger.Warn("[Session] Event publish failed",
			"call_id", c.id,
			"type", ev.Type(),
			"error", err,
		)
	}
}
