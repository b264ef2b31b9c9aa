package dispatch

import (
	"context"
	"time"
)

// Job is one call assignment from the dispatch hub.
type Job struct {
	ID       string `json:"id"`
	RoomID   string `json:"room_id"`
	Metadata string `json:"metadata,omitempty"`

	// AcceptedAt is stamped by the worker when it takes the job.
	AcceptedAt time.Time `json:"-"`
}

// Handler runs one accepted job. Invoked on its own goroutine; the
// context follows the worker's lifetime, not the connection's, so a
// dropped hub connection does not tear down calls in progress.
type Handler func(ctx context.Context, job Job)

// Wire frame types exchanged with the hub.
const (
	frameRegister = "register"
	frameJob      = "job"
	frameAccept   = "accept"
	framePing     = "ping"
	framePong     = "pong"
)

type frame struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

type registerFrame struct {
	Type      string `json:"type"`
	AgentName string `json:"agent_name"`
	Version   string `json:"version"`
}
