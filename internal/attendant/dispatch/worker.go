// Package dispatch connects the agent to the dispatch hub and turns
// incoming job frames into call sessions. The worker holds one
// websocket to the hub, re-established with capped backoff; jobs
// outlive any single connection.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Options tune the hub connection. Zero values select the defaults.
type Options struct {
	HandshakeTimeout time.Duration
	// ReadTimeout is the longest tolerated silence from the hub; the
	// hub pings well inside it.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	return o
}

// dedupeWindow is how long an accepted job ID blocks redeliveries.
// Comfortably longer than any reconnect gap, shorter than job ID reuse.
const dedupeWindow = 5 * time.Minute

// Worker registers with the dispatch hub and hands accepted jobs to the
// handler.
type Worker struct {
	url       string
	agentName string
	version   string
	handler   Handler
	opts      Options
	logger    *slog.Logger
	seen      *seenJobs
}

// NewWorker creates a worker for the given hub URL.
func NewWorker(url, agentName, version string, handler Handler, opts Options, logger *slog.Logger) (*Worker, error) {
	if url == "" {
		return nil, fmt.Errorf("dispatch: hub url is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("dispatch: handler is required")
	}
	if agentName == "" {
		agentName = "attendant"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		url:       url,
		agentName: agentName,
		version:   version,
		handler:   handler,
		opts:      opts.withDefaults(),
		logger:    logger,
		seen:      newSeenJobs(dedupeWindow),
	}, nil
}

// Run serves jobs until the context is cancelled, reconnecting to the
// hub with capped exponential backoff. It returns the context's error.
func (w *Worker) Run(ctx context.Context) error {
	go w.seen.janitor(ctx, time.Minute)

	backoff := w.opts.InitialBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := w.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.logger.Warn("[Dispatch] Hub connection lost, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if backoff < w.opts.MaxBackoff {
			backoff *= 2
			if backoff > w.opts.MaxBackoff {
				backoff = w.opts.MaxBackoff
			}
		}
	}
}

// runOnce holds one hub connection: register, then serve frames until
// the connection or the context dies.
func (w *Worker) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: w.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
		return conn.WriteJSON(v)
	}

	if err := send(registerFrame{Type: frameRegister, AgentName: w.agentName, Version: w.version}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	w.logger.Info("[Dispatch] Registered with hub",
		"agent", w.agentName,
		"url", w.url,
	)

	// Unblock the read loop when the context dies.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(2*time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(w.opts.ReadTimeout))
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch f.Type {
		case frameJob:
			if f.RoomID == "" {
				w.logger.Warn("[Dispatch] Job without a room, dropped", "id", f.ID)
				continue
			}
			job := Job{
				ID:         f.ID,
				RoomID:     f.RoomID,
				Metadata:   f.Metadata,
				AcceptedAt: time.Now(),
			}
			if job.ID == "" {
				job.ID = uuid.New().String()
			}
			if err := send(frame{Type: frameAccept, ID: job.ID}); err != nil {
				return fmt.Errorf("accept %s: %w", job.ID, err)
			}
			// Redeliveries get re-acknowledged but only ever one session.
			if !w.seen.first(job.ID) {
				w.logger.Info("[Dispatch] Duplicate job dropped", "id", job.ID)
				continue
			}
			w.logger.Info("[Dispatch] Job accepted",
				"id", job.ID,
				"room", job.RoomID,
			)
			go w.handler(ctx, job)
		case framePing:
			if err := send(frame{Type: framePong}); err != nil {
				return err
			}
		case framePong:
			// Latency probes from a previous ping; nothing to do.
		default:
			w.logger.Debug("[Dispatch] Unknown frame ignored", "type", f.Type)
		}
	}
}
