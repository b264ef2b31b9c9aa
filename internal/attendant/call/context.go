package call

// Context carries the resolved parameters of one call job.
// Built once by the Resolver when the job is accepted and read-only
// afterwards; the session never re-resolves a call.
type Context struct {
	// Direction is always resolved, never left undetermined
	Direction Direction

	// TargetNumber is the dial target, set only for outbound calls
	TargetNumber string

	// RoomID uniquely identifies the call's media room
	RoomID string

	// Metadata holds the decoded job metadata fields. Nil when the job
	// carried no metadata or the payload was unusable.
	Metadata map[string]string
}
