package call

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Metadata keys recognized in dispatch job payloads
const (
	metaPhoneNumber  = "phone_number"
	metaDirection    = "direction"
	metaCallerNumber = "caller_number"
)

// Resolver classifies dispatch jobs as inbound or outbound calls and
// extracts the call parameters. Resolution is synchronous and never
// fails: when direction cannot be established the call is treated as
// inbound, which attempts no dial and is safe for any job.
type Resolver struct {
	// outboundPrefix marks rooms created by the outbound dispatcher.
	// Consulted only when job metadata is missing or unusable, since
	// the platform is known to drop metadata in transit on some
	// dispatches.
	outboundPrefix string

	// fallbackNumber recovers a dial target for an outbound-named room
	// whose metadata was lost. Returning false keeps the call inbound.
	fallbackNumber func(roomID string) (string, bool)

	logger *slog.Logger
}

// NewResolver creates a resolver. fallback may be nil, in which case
// outbound-named rooms without metadata resolve to inbound.
func NewResolver(outboundPrefix string, fallback func(roomID string) (string, bool), logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		outboundPrefix: outboundPrefix,
		fallbackNumber: fallback,
		logger:         logger,
	}
}

// Resolve builds the call context for a job from its room identifier
// and raw metadata payload. The rules apply in priority order:
//
//  1. Metadata with a target phone number -> outbound to that number.
//  2. Metadata recognized but without a dial target -> inbound.
//  3. Metadata absent or unusable -> outbound only when the room name
//     matches the outbound prefix AND a fallback target is available;
//     otherwise inbound.
func (r *Resolver) Resolve(roomID, rawMetadata string) Context {
	cctx := Context{Direction: DirectionInbound, RoomID: roomID}

	if rawMetadata != "" {
		if fields, ok := parseMetadata(rawMetadata); ok {
			cctx.Metadata = fields
			if number := fields[metaPhoneNumber]; number != "" {
				cctx.Direction = DirectionOutbound
				cctx.TargetNumber = number
				r.logger.Debug("[Resolver] Direction from metadata",
					"room", roomID,
					"direction", cctx.Direction.String(),
				)
				return cctx
			}
			r.logger.Debug("[Resolver] Metadata carries no dial target",
				"room", roomID,
				"direction", cctx.Direction.String(),
			)
			return cctx
		}
		r.logger.Warn("[Resolver] Unusable job metadata, falling back to room name",
			"room", roomID,
		)
	}

	if r.outboundPrefix != "" && strings.HasPrefix(roomID, r.outboundPrefix) {
		if r.fallbackNumber != nil {
			if number, ok := r.fallbackNumber(roomID); ok && number != "" {
				cctx.Direction = DirectionOutbound
				cctx.TargetNumber = number
				r.logger.Info("[Resolver] Outbound room recognized by name, target recovered",
					"room", roomID,
					"target", number,
				)
				return cctx
			}
		}
		r.logger.Warn("[Resolver] Outbound-named room without recoverable target, treating as inbound",
			"room", roomID,
		)
		return cctx
	}

	r.logger.Debug("[Resolver] No usable metadata, room name not outbound",
		"room", roomID,
		"direction", cctx.Direction.String(),
	)
	return cctx
}

// parseMetadata decodes the raw JSON payload into string fields.
// ok is false when the payload is not a JSON object or carries none of
// the recognized keys; such payloads are treated the same as absent
// metadata.
func parseMetadata(raw string) (map[string]string, bool) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, false
	}

	fields := make(map[string]string, len(decoded))
	for k, v := range decoded {
		if s, ok := v.(string); ok && s != "" {
			fields[k] = s
		}
	}

	for _, key := range []string{metaPhoneNumber, metaDirection, metaCallerNumber} {
		if _, ok := fields[key]; ok {
			return fields, true
		}
	}
	return nil, false
}
