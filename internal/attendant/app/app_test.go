package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nordvoice/attendant/internal/attendant/call"
	"github.com/nordvoice/attendant/internal/attendant/config"
	"github.com/nordvoice/attendant/internal/attendant/engine"
	"github.com/nordvoice/attendant/internal/attendant/profile"
	"github.com/nordvoice/attendant/internal/attendant/room"
	"github.com/nordvoice/attendant/internal/attendant/session"
)

// idleEngine satisfies engine.TurnEngine without a model behind it.
type idleEngine struct{}

func (idleEngine) Start(context.Context, *profile.BehaviorProfile, *engine.Registry) error {
	return nil
}

func (idleEngine) HandleTurn(context.Context, string) (string, error) { return "Okay.", nil }

func (idleEngine) Close() error { return nil }

func newTestController(t *testing.T, local *room.LocalService, roomID string) *session.Controller {
	t.Helper()
	inbound, outbound := profile.DefaultRecords()
	ctrl, err := session.New(session.Dependencies{
		RoomID:   roomID,
		Resolver: call.NewResolver("outbound-", nil, nil),
		Binder:   profile.NewBinder(profile.NewStaticStore(inbound, outbound), nil),
		Rooms:    local,
		Speech:   local,
		Engine:   idleEngine{},
	})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	return ctrl
}

func waitPhase(t *testing.T, ctrl *session.Controller, want session.Phase) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.Phase() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase = %s, want %s", ctrl.Phase(), want)
}

func TestTrackerCounts(t *testing.T) {
	local := room.NewLocalService(nil)
	tr := NewTracker()

	a := newTestController(t, local, "room-a")
	b := newTestController(t, local, "room-b")
	tr.Add(a)
	tr.Add(b)

	if got := tr.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	if got := tr.TotalStarted(); got != 2 {
		t.Errorf("TotalStarted() = %d, want 2", got)
	}
	if got := len(tr.Active()); got != 2 {
		t.Errorf("len(Active()) = %d, want 2", got)
	}

	tr.Remove(a)

	if got := tr.Count(); got != 1 {
		t.Errorf("Count() after remove = %d, want 1", got)
	}
	// Lifetime counter never decreases.
	if got := tr.TotalStarted(); got != 2 {
		t.Errorf("TotalStarted() after remove = %d, want 2", got)
	}
	// The session never ran, so there is no reason to tally.
	if got := len(tr.TerminationCounts()); got != 0 {
		t.Errorf("TerminationCounts() = %v, want empty", tr.TerminationCounts())
	}
}

func TestTrackerRemoveTwiceIsNoop(t *testing.T) {
	local := room.NewLocalService(nil)
	tr := NewTracker()
	ctrl := newTestController(t, local, "room-x")

	tr.Add(ctrl)
	tr.Remove(ctrl)
	tr.Remove(ctrl)

	if got := tr.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if !tr.Wait(time.Second) {
		t.Error("Wait() = false after the only session was removed")
	}
}

func TestTrackerWaitTimesOutWhileSessionsRun(t *testing.T) {
	local := room.NewLocalService(nil)
	tr := NewTracker()
	ctrl := newTestController(t, local, "room-wait")
	tr.Add(ctrl)

	if tr.Wait(30 * time.Millisecond) {
		t.Error("Wait() = true with a session still registered")
	}

	tr.Remove(ctrl)

	if !tr.Wait(time.Second) {
		t.Error("Wait() = false after all sessions removed")
	}
}

func TestTrackerTalliesTerminationReason(t *testing.T) {
	local := room.NewLocalService(nil)
	local.SpeakRate = 1_000_000
	tr := NewTracker()
	ctrl := newTestController(t, local, "room-tally")
	tr.Add(ctrl)

	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(context.Background()) }()

	waitPhase(t, ctrl, session.PhaseActive)
	local.CallerLeaves("room-tally", "caller")

	select {
	case <-ctrl.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session never terminated, phase %s", ctrl.Phase())
	}
	tr.Remove(ctrl)

	if got := tr.TerminationCounts()["external_disconnect"]; got != 1 {
		t.Errorf("TerminationCounts()[external_disconnect] = %d, want 1", got)
	}
	if err := <-runDone; err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestTrackerTerminateAllWindsDownSessions(t *testing.T) {
	local := room.NewLocalService(nil)
	local.SpeakRate = 1_000_000
	tr := NewTracker()
	ctrl := newTestController(t, local, "room-drain")
	tr.Add(ctrl)

	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(context.Background()) }()
	waitPhase(t, ctrl, session.PhaseActive)

	tr.TerminateAll(session.ReasonError)

	select {
	case <-ctrl.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session survived TerminateAll, phase %s", ctrl.Phase())
	}
	tr.Remove(ctrl)

	if reason, ok := ctrl.TerminationReason(); !ok || reason != session.ReasonError {
		t.Errorf("TerminationReason() = %v, %v, want error", reason, ok)
	}
	if err := <-runDone; err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func testConfig(dispatchURL string) *config.Config {
	return &config.Config{
		AgentName:      "attendant-test",
		NodeID:         "node-test",
		DispatchURL:    dispatchURL,
		ProfilesPath:   "missing-profiles.yaml",
		DialTimeout:    time.Second,
		FarewellGrace:  time.Second,
		WebhookTimeout: time.Second,
	}
}

func TestNewRequiresDispatchURL(t *testing.T) {
	if _, err := New(testConfig(""), "test"); err == nil {
		t.Error("New(no dispatch url) error = nil, want error")
	}
}

func TestNewFallsBackToLocalSimulator(t *testing.T) {
	a, err := New(testConfig("ws://hub.invalid/agents"), "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Local() == nil {
		t.Error("Local() = nil, want in-process simulator when no room service is configured")
	}
}

func TestNewUsesRemoteRoomsWhenConfigured(t *testing.T) {
	cfg := testConfig("ws://hub.invalid/agents")
	cfg.RoomServiceURL = "http://rooms.invalid"

	a, err := New(cfg, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Local() != nil {
		t.Error("Local() != nil, want nil when a remote room service is configured")
	}
}

// appHub runs a fake dispatch hub and signals once a register frame
// arrives.
func appHub(t *testing.T, registered chan<- struct{}) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var reg map[string]any
		if err := conn.ReadJSON(&reg); err != nil {
			return
		}
		select {
		case registered <- struct{}{}:
		default:
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRunStopsOnShutdown(t *testing.T) {
	registered := make(chan struct{}, 1)
	hubURL := appHub(t, registered)

	a, err := New(testConfig(hubURL), "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(context.Background()) }()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never registered with the hub")
	}

	a.Shutdown()
	a.Shutdown() // second call must be harmless

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after Shutdown")
	}
}
