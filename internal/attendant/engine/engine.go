// Package engine turns caller utterances into assistant replies. The shipped
// ChatEngine drives OpenAI chat completions with the bound profile's system
// prompt and a registry of function tools; the session controller owns the
// event loop and speaks whatever the engine returns.
package engine

import (
	"context"

	"github.com/nordvoice/attendant/internal/attendant/profile"
)

// TurnEngine produces one spoken reply per caller turn.
//
// Start is called once, after profile binding and before the first turn.
// HandleTurn calls are serialized by the session controller. A tool fired
// during a turn may wind the session down; the controller discards the
// reply of such a turn.
type TurnEngine interface {
	Start(ctx context.Context, prof *profile.BehaviorProfile, tools *Registry) error
	HandleTurn(ctx context.Context, utterance string) (string, error)
	Close() error
}
