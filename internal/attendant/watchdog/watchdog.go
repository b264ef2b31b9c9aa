// Package watchdog supervises an active call with two independent
// countdown timers: a fixed maximum-duration timer and an inactivity
// timer that is re-armed on every observed caller turn.
package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default safety limits, applied when a caller passes zero values.
const (
	DefaultMaxCallDuration   = 10 * time.Minute
	DefaultInactivityTimeout = 30 * time.Second
)

// Cause identifies which safety timer expired
type Cause int

const (
	// CauseMaxDuration means the fixed duration budget ran out
	CauseMaxDuration Cause = iota
	// CauseInactivity means no caller turn arrived within the timeout
	CauseInactivity
)

// String returns the string representation of the cause
func (c Cause) String() string {
	switch c {
	case CauseMaxDuration:
		return "max_duration"
	case CauseInactivity:
		return "inactivity"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// Watchdog runs the two timers for the lifetime of one active session.
// Expiry of either timer invokes onExpire from the watcher goroutine;
// the callback is expected to land in a phase-guarded termination
// entry point, which is what collapses concurrent expiries. Stop
// cancels both timers immediately and is safe to call more than once.
type Watchdog struct {
	maxDuration time.Duration
	inactivity  time.Duration
	onExpire    func(Cause)
	logger      *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	touchCh chan struct{}
}

// New creates a watchdog. Zero or negative durations fall back to the
// package defaults. onExpire must not be nil.
func New(maxDuration, inactivityTimeout time.Duration, onExpire func(Cause), logger *slog.Logger) *Watchdog {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxCallDuration
	}
	if inactivityTimeout <= 0 {
		inactivityTimeout = DefaultInactivityTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		maxDuration: maxDuration,
		inactivity:  inactivityTimeout,
		onExpire:    onExpire,
		logger:      logger,
		touchCh:     make(chan struct{}, 1),
	}
}

// Start launches both watcher goroutines. Subsequent calls are no-ops.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.watchDuration(watchCtx)
	go w.watchInactivity(watchCtx)

	w.logger.Debug("[Watchdog] Started",
		"max_duration", w.maxDuration.String(),
		"inactivity_timeout", w.inactivity.String(),
	)
}

// Touch re-arms the inactivity timer. Never blocks; rapid touches
// coalesce, which still leaves the timer armed from the latest one
// the watcher observed.
func (w *Watchdog) Touch() {
	select {
	case w.touchCh <- struct{}{}:
	default:
	}
}

// Stop cancels both timers. Idempotent.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// watchDuration waits out the fixed call budget. The timer is armed
// once and never reset.
func (w *Watchdog) watchDuration(ctx context.Context) {
	timer := time.NewTimer(w.maxDuration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		w.logger.Info("[Watchdog] Maximum call duration reached",
			"limit", w.maxDuration.String(),
		)
		w.onExpire(CauseMaxDuration)
	}
}

// watchInactivity waits for caller turns and re-arms on each one.
func (w *Watchdog) watchInactivity(ctx context.Context) {
	timer := time.NewTimer(w.inactivity)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.touchCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.inactivity)
		case <-timer.C:
			w.logger.Info("[Watchdog] Inactivity timeout reached",
				"limit", w.inactivity.String(),
			)
			w.onExpire(CauseInactivity)
			return
		}
	}
}
