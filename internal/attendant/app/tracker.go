package app

import (
	"sort"
	"sync"
	"time"

	"github.com/nordvoice/attendant/internal/attendant/session"
)

// Tracker keeps the set of running sessions plus lifetime counters for
// the stats endpoint. It satisfies api.SessionProvider.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*session.Controller
	started  int
	reasons  map[string]int
	wg       sync.WaitGroup
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*session.Controller),
		reasons:  make(map[string]int),
	}
}

// Add registers a session that is about to run.
func (t *Tracker) Add(c *session.Controller) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[c.ID()] = c
	t.started++
	t.wg.Add(1)
}

// Remove drops a finished session and tallies its termination reason.
// Callers must pair every Add with exactly one Remove.
func (t *Tracker) Remove(c *session.Controller) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[c.ID()]; !ok {
		return
	}
	delete(t.sessions, c.ID())
	if reason, ok := c.TerminationReason(); ok {
		t.reasons[reason.String()]++
	}
	t.wg.Done()
}

// Count returns the number of sessions currently running.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Active snapshots the running sessions, oldest first.
func (t *Tracker) Active() []session.Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	infos := make([]session.Info, 0, len(t.sessions))
	for _, c := range t.sessions {
		infos = append(infos, c.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// TotalStarted returns how many sessions were ever registered.
func (t *Tracker) TotalStarted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// TerminationCounts returns a copy of the per-reason counters.
func (t *Tracker) TerminationCounts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[string]int, len(t.reasons))
	for reason, n := range t.reasons {
		counts[reason] = n
	}
	return counts
}

// TerminateAll asks every running session to wind down. Sessions that
// already left the active phase ignore the request.
func (t *Tracker) TerminateAll(reason session.Reason) {
	t.mu.Lock()
	active := make([]*session.Controller, 0, len(t.sessions))
	for _, c := range t.sessions {
		active = append(active, c)
	}
	t.mu.Unlock()

	for _, c := range active {
		c.Terminate(reason)
	}
}

// Wait blocks until every registered session has been removed or the
// timeout passes. It reports whether the drain completed. Only call
// after session intake has stopped.
func (t *Tracker) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
