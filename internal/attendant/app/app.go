// Package app wires configuration, the room service, the profile store,
// the event sinks, the dispatch worker, and the management API into a
// running attendant node.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nordvoice/attendant/internal/attendant/api"
	"github.com/nordvoice/attendant/internal/attendant/call"
	"github.com/nordvoice/attendant/internal/attendant/config"
	"github.com/nordvoice/attendant/internal/attendant/dispatch"
	"github.com/nordvoice/attendant/internal/attendant/engine"
	"github.com/nordvoice/attendant/internal/attendant/events"
	"github.com/nordvoice/attendant/internal/attendant/profile"
	"github.com/nordvoice/attendant/internal/attendant/room"
	"github.com/nordvoice/attendant/internal/attendant/session"
)

// drainTimeout bounds the shutdown wait for in-flight calls. Canceled
// sessions skip the farewell, so this only needs to cover room release
// and the final event publish.
const drainTimeout = 60 * time.Second

// Attendant is one agent node: it takes jobs from the dispatch hub and
// runs a session controller per call.
type Attendant struct {
	cfg     *config.Config
	version string

	rooms     room.Service
	speech    room.SpeechDelivery
	local     *room.LocalService
	resolver  *call.Resolver
	binder    *profile.Binder
	publisher events.Publisher
	builder   *events.Builder
	tracker   *Tracker
	worker    *dispatch.Worker
	apiServer *api.Server

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds an attendant node from configuration. Components created
// before a failing step are released before the error returns.
func New(cfg *config.Config, version string) (*Attendant, error) {
	a := &Attendant{
		cfg:     cfg,
		version: version,
		tracker: NewTracker(),
		stopCh:  make(chan struct{}),
	}

	if cfg.DispatchURL == "" {
		return nil, errors.New("dispatch hub URL is required (set DISPATCH_URL or -dispatch)")
	}
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("[App] OPENAI_API_KEY is not set, sessions will fail to start")
	}

	// Room service: remote media node when configured, otherwise the
	// in-process simulator so the node still works on a laptop.
	if cfg.RoomServiceURL != "" {
		client := room.NewClient(cfg.RoomServiceURL, cfg.RoomServiceKey, slog.Default())
		a.rooms, a.speech = client, client
	} else {
		slog.Warn("[App] No room service configured, using in-process simulator")
		a.local = room.NewLocalService(slog.Default())
		a.rooms, a.speech = a.local, a.local
	}

	// Behavior profiles: file-backed with built-in defaults as fallback.
	var store profile.Store
	if fs, err := profile.NewFileStore(cfg.ProfilesPath, slog.Default()); err != nil {
		slog.Warn("[App] Profile file unavailable, using built-in defaults",
			"path", cfg.ProfilesPath,
			"error", err,
		)
		inbound, outbound := profile.DefaultRecords()
		store = profile.NewStaticStore(inbound, outbound)
	} else {
		store = fs
	}
	a.binder = profile.NewBinder(store, slog.Default())

	var fallback func(roomID string) (string, bool)
	if cfg.FallbackNumber != "" {
		number := cfg.FallbackNumber
		fallback = func(string) (string, bool) { return number, true }
	}
	a.resolver = call.NewResolver(cfg.OutboundRoomPrefix, fallback, slog.Default())

	// Event sinks: always log locally, add the webhook when configured.
	sinks := []events.Publisher{events.NewLoggingPublisher(slog.Default())}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookTimeout, slog.Default()))
	}
	a.publisher = events.NewMultiPublisher(sinks...)
	a.builder = events.NewBuilder(cfg.NodeID)

	worker, err := dispatch.NewWorker(
		cfg.DispatchURL,
		cfg.AgentName,
		version,
		a.handleJob,
		dispatch.Options{},
		slog.Default(),
	)
	if err != nil {
		a.publisher.Close()
		return nil, fmt.Errorf("create dispatch worker: %w", err)
	}
	a.worker = worker

	a.apiServer = api.NewServer(
		fmt.Sprintf("0.0.0.0:%d", cfg.APIPort),
		cfg.AgentName,
		version,
		a.tracker,
	)
	a.apiServer.SetShutdownFunc(a.Shutdown)

	return a, nil
}

// Local returns the in-process room simulator, or nil when a remote
// room service is configured. The dial-out tool uses it for dry runs.
func (a *Attendant) Local() *room.LocalService {
	return a.local
}

// Run starts the management API and the dispatch worker, then blocks
// until the context is canceled or Shutdown is called. In-flight
// sessions get a bounded drain before Run returns.
func (a *Attendant) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-runCtx.Done():
		case <-a.stopCh:
			slog.Info("[App] Shutdown requested")
			cancel()
		}
	}()

	if err := a.apiServer.Start(); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}
	slog.Info("[App] Management API listening", "port", a.cfg.APIPort)

	err := a.worker.Run(runCtx)

	if n := a.tracker.Count(); n > 0 {
		slog.Info("[App] Draining sessions", "active", n)
		a.tracker.TerminateAll(session.ReasonError)
		if !a.tracker.Wait(drainTimeout) {
			slog.Warn("[App] Drain incomplete, shutting down anyway",
				"remaining", a.tracker.Count(),
			)
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown asks Run to stop. Safe to call more than once and from any
// goroutine; the management API's shutdown endpoint lands here.
func (a *Attendant) Shutdown() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// Close releases long-lived components. Call after Run has returned.
func (a *Attendant) Close() error {
	if a.apiServer != nil {
		a.apiServer.Stop()
	}
	if a.publisher != nil {
		return a.publisher.Close()
	}
	return nil
}

// handleJob runs one call session for a dispatched job. It executes on
// its own goroutine per job; the context is the worker's run context,
// so canceling the node winds down every live call.
func (a *Attendant) handleJob(ctx context.Context, job dispatch.Job) {
	ctrl, err := session.New(session.Dependencies{
		RoomID:        job.RoomID,
		Metadata:      job.Metadata,
		Resolver:      a.resolver,
		Binder:        a.binder,
		Rooms:         a.rooms,
		Speech:        a.speech,
		Engine:        a.newEngine(),
		Publisher:     a.publisher,
		Builder:       a.builder,
		Logger:        slog.Default(),
		CallerID:      a.cfg.OutboundCallerID,
		DialTimeout:   a.cfg.DialTimeout,
		FarewellGrace: a.cfg.FarewellGrace,
	})
	if err != nil {
		slog.Error("[App] Session construction failed",
			"job_id", job.ID,
			"room", job.RoomID,
			"error", err,
		)
		return
	}

	a.tracker.Add(ctrl)
	defer a.tracker.Remove(ctrl)

	slog.Info("[App] Session starting",
		"job_id", job.ID,
		"call_id", ctrl.ID(),
		"room", job.RoomID,
	)
	if err := ctrl.Run(ctx); err != nil {
		slog.Error("[App] Session ended with error",
			"call_id", ctrl.ID(),
			"error", err,
		)
	}
}

// newEngine builds a fresh turn engine for one session. Engines hold
// conversation state and must not be shared across calls.
func (a *Attendant) newEngine() engine.TurnEngine {
	return engine.NewChatEngine(engine.Config{
		BaseURL: a.cfg.OpenAIBaseURL,
		APIKey:  a.cfg.OpenAIAPIKey,
		Model:   a.cfg.OpenAIModel,
	}, slog.Default())
}
