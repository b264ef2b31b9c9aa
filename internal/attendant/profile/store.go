package profile

import (
	"github.com/nordvoice/attendant/internal/attendant/call"
)

// Store is a keyed lookup from call direction to a raw behavior
// record. Records coming out of a store are unvalidated; Binder.Bind
// is the only way to obtain a usable BehaviorProfile.
type Store interface {
	Profile(d call.Direction) (Record, error)
}

// StaticStore serves fixed records from memory. Used for the built-in
// defaults and for test fixtures.
type StaticStore struct {
	inbound  Record
	outbound Record
}

// NewStaticStore creates a store over the two given records.
func NewStaticStore(inbound, outbound Record) *StaticStore {
	return &StaticStore{inbound: inbound, outbound: outbound}
}

// Profile returns the record for the direction.
func (s *StaticStore) Profile(d call.Direction) (Record, error) {
	if d == call.DirectionOutbound {
		return s.outbound, nil
	}
	return s.inbound, nil
}

// DefaultRecords returns the built-in profile pair used when no
// profile file is configured.
func DefaultRecords() (inbound, outbound Record) {
	inbound = Record{
		PersonaName: "Robert",
		Language:    "Svenska",
		VoiceID:     "marin",
		SystemPrompt: "You are Robert, the phone receptionist for Nordvoice. " +
			"You speak Swedish and keep answers short and friendly. " +
			"Greet the caller, find out who they are and why they are calling, " +
			"and record what you learn. Never ask for information you already have. " +
			"When the caller has nothing more, say goodbye and end the call.",
		FirstMessage:   "Hej! Du har kommit till Nordvoice, det här är Robert. Vad kan jag hjälpa dig med?",
		ToolNames:      []string{"record_information", "lookup_information", "add_note", "end_call"},
		MaxDurationSec: 600,
		InactivitySec:  30,
	}

	outbound = Record{
		PersonaName: "Astrid",
		Language:    "Svenska",
		VoiceID:     "cedar",
		SystemPrompt: "You are Astrid, calling on behalf of Nordvoice to follow up on an " +
			"insurance inquiry. You speak Swedish, are polite and never pushy. " +
			"Confirm who you are talking to, ask about their current situation, and " +
			"record their answers. If they are not interested, thank them and end the call.",
		FirstMessage:   "Hej! Det är Astrid från Nordvoice. Stör jag, eller har du en minut?",
		ToolNames:      []string{"record_information", "lookup_information", "add_note", "end_call"},
		MaxDurationSec: 600,
		InactivitySec:  30,
	}

	return inbound, outbound
}
