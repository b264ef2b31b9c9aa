package events

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher is the interface for publishing call events.
// Implementations may be no-op, logging, in-memory (for testing), or the
// webhook sink for production summaries.
//
// Publish failures must never influence the call lifecycle: callers log
// the error and move on.
type Publisher interface {
	// Publish sends an event. Returns error only for transport failures,
	// not for invalid events (those should be caught at construction).
	Publish(ctx context.Context, event Event) error

	// Close releases resources.
	Close() error
}

// NoopPublisher discards all events. Use when no sink is configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that silently discards events.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (p *NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (p *NoopPublisher) Close() error { return nil }

// LoggingPublisher logs events at debug level. Useful for development.
type LoggingPublisher struct {
	logger *slog.Logger
}

// NewLoggingPublisher creates a publisher that logs events.
func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Debug("[Events] Published",
		"subject", event.Subject(),
		"type", event.Type(),
		"call_id", event.CallID(),
	)
	return nil
}

func (p *LoggingPublisher) Close() error { return nil }

// MemoryPublisher collects events in memory. Used by tests that assert
// on what a session emitted.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an in-memory collecting publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// ByType returns the published events of one type, in order.
func (p *MemoryPublisher) ByType(t EventType) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, ev := range p.events {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}

// MultiPublisher fans out events to multiple publishers.
// Useful for sending summaries to a webhook while also logging them.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher creates a publisher that sends to all provided publishers.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (p *MultiPublisher) Publish(ctx context.Context, event Event) error {
	var lastErr error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, event); err != nil {
			lastErr = err
			slog.Warn("[Events] One publisher failed",
				"error", err,
				"type", event.Type(),
			)
		}
	}
	return lastErr
}

func (p *MultiPublisher) Close() error {
	var lastErr error
	for _, pub := range p.publishers {
		if err := pub.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
