package profile

import (
	"fmt"
	"log/slog"

	"github.com/nordvoice/attendant/internal/attendant/call"
)

// Binder resolves a call context to a validated behavior profile.
// Binding is atomic: it yields either a fully populated profile or an
// error, never a partial result.
type Binder struct {
	store  Store
	logger *slog.Logger
}

// NewBinder creates a binder over the given store.
func NewBinder(store Store, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{store: store, logger: logger}
}

// Bind selects the record for the context's direction, validates it,
// and returns the bound profile. A *ConfigurationError is fatal to the
// job: the session must not go active under an incomplete profile.
func (b *Binder) Bind(cctx call.Context) (*BehaviorProfile, error) {
	rec, err := b.store.Profile(cctx.Direction)
	if err != nil {
		return nil, fmt.Errorf("profile lookup for %s: %w", cctx.Direction, err)
	}

	prof, err := rec.bind(cctx.Direction.String())
	if err != nil {
		b.logger.Error("[Profiles] Profile validation failed",
			"room", cctx.RoomID,
			"direction", cctx.Direction.String(),
			"error", err,
		)
		return nil, err
	}

	b.logger.Info("[Profiles] Bound behavior profile",
		"room", cctx.RoomID,
		"direction", cctx.Direction.String(),
		"persona", prof.PersonaName,
		"language", prof.Language,
		"voice", prof.VoiceID,
		"max_duration", prof.Safety.MaxCallDuration.String(),
		"inactivity_timeout", prof.Safety.InactivityTimeout.String(),
	)

	return prof, nil
}
