package dispatch

import (
	"context"
	"sync"
	"time"
)

// seenJobs remembers recently accepted job IDs. The hub redelivers
// unfinished jobs after a reconnect; without this a redelivery would
// start a second session for the same call.
type seenJobs struct {
	mu     sync.Mutex
	ids    map[string]time.Time
	window time.Duration
}

func newSeenJobs(window time.Duration) *seenJobs {
	return &seenJobs{
		ids:    make(map[string]time.Time),
		window: window,
	}
}

// first reports whether id has not been seen inside the window, and
// marks it seen. Expired entries count as new again.
func (s *seenJobs) first(id string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.ids[id]; ok && now.Before(expiry) {
		return false
	}
	s.ids[id] = now.Add(s.window)
	return true
}

// janitor drops expired entries until the context dies.
func (s *seenJobs) janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, expiry := range s.ids {
				if now.After(expiry) {
					delete(s.ids, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
