package profile

import (
	"errors"
	"testing"
	"time"

	"github.com/nordvoice/attendant/internal/attendant/call"
)

func completeRecord() Record {
	return Record{
		PersonaName:    "Robert",
		Language:       "Svenska",
		VoiceID:        "marin",
		SystemPrompt:   "You are a receptionist.",
		FirstMessage:   "Hej!",
		ToolNames:      []string{"record_information", "end_call"},
		MaxDurationSec: 600,
		InactivitySec:  30,
	}
}

func TestBindCompleteRecord(t *testing.T) {
	store := NewStaticStore(completeRecord(), completeRecord())
	binder := NewBinder(store, nil)

	prof, err := binder.Bind(call.Context{Direction: call.DirectionInbound, RoomID: "call-1"})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	if prof.PersonaName != "Robert" {
		t.Errorf("PersonaName = %q, want %q", prof.PersonaName, "Robert")
	}
	if prof.Safety.MaxCallDuration != 600*time.Second {
		t.Errorf("MaxCallDuration = %v, want %v", prof.Safety.MaxCallDuration, 600*time.Second)
	}
	if prof.Safety.InactivityTimeout != 30*time.Second {
		t.Errorf("InactivityTimeout = %v, want %v", prof.Safety.InactivityTimeout, 30*time.Second)
	}
	if len(prof.ToolNames) != 2 {
		t.Errorf("len(ToolNames) = %d, want 2", len(prof.ToolNames))
	}

	// Closing remarks are defaulted so the bound profile is fully defined.
	if prof.Closing.Natural == "" || prof.Closing.Timeout == "" || prof.Closing.Inactivity == "" {
		t.Errorf("Closing remarks not defaulted: %+v", prof.Closing)
	}
}

func TestBindSelectsByDirection(t *testing.T) {
	inbound := completeRecord()
	outbound := completeRecord()
	outbound.PersonaName = "Astrid"

	binder := NewBinder(NewStaticStore(inbound, outbound), nil)

	prof, err := binder.Bind(call.Context{Direction: call.DirectionOutbound, RoomID: "outbound-call-1"})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if prof.PersonaName != "Astrid" {
		t.Errorf("PersonaName = %q, want %q", prof.PersonaName, "Astrid")
	}
}

func TestBindMissingFields(t *testing.T) {
	rec := completeRecord()
	rec.SystemPrompt = ""
	rec.MaxDurationSec = 0

	binder := NewBinder(NewStaticStore(rec, rec), nil)

	prof, err := binder.Bind(call.Context{Direction: call.DirectionInbound, RoomID: "call-2"})
	if prof != nil {
		t.Fatalf("Bind() returned partial profile %+v, want nil", prof)
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Bind() error = %v, want *ConfigurationError", err)
	}
	if cfgErr.Profile != "inbound" {
		t.Errorf("Profile = %q, want %q", cfgErr.Profile, "inbound")
	}

	want := map[string]bool{"system_prompt": true, "max_duration_seconds": true}
	if len(cfgErr.Missing) != len(want) {
		t.Fatalf("Missing = %v, want %d entries", cfgErr.Missing, len(want))
	}
	for _, f := range cfgErr.Missing {
		if !want[f] {
			t.Errorf("unexpected missing field %q", f)
		}
	}
}

func TestBindNeverPartial(t *testing.T) {
	// Sweep single-field omissions; bind must fail for each of them.
	mutations := []struct {
		name   string
		mutate func(*Record)
	}{
		{"persona_name", func(r *Record) { r.PersonaName = "" }},
		{"language", func(r *Record) { r.Language = "" }},
		{"voice_id", func(r *Record) { r.VoiceID = "" }},
		{"system_prompt", func(r *Record) { r.SystemPrompt = "   " }},
		{"first_message", func(r *Record) { r.FirstMessage = "" }},
		{"max_duration_seconds", func(r *Record) { r.MaxDurationSec = -1 }},
		{"inactivity_timeout_seconds", func(r *Record) { r.InactivitySec = 0 }},
	}

	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			rec := completeRecord()
			m.mutate(&rec)
			binder := NewBinder(NewStaticStore(rec, rec), nil)

			prof, err := binder.Bind(call.Context{Direction: call.DirectionInbound})
			if err == nil {
				t.Fatalf("Bind() = %+v, want ConfigurationError for missing %s", prof, m.name)
			}

			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error = %v, want *ConfigurationError", err)
			}
			found := false
			for _, f := range cfgErr.Missing {
				if f == m.name {
					found = true
				}
			}
			if !found {
				t.Errorf("Missing = %v, want it to contain %q", cfgErr.Missing, m.name)
			}
		})
	}
}

func TestBoundProfileIsolatedFromRecord(t *testing.T) {
	rec := completeRecord()
	binder := NewBinder(NewStaticStore(rec, rec), nil)

	prof, err := binder.Bind(call.Context{Direction: call.DirectionInbound})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	rec.ToolNames[0] = "mutated"
	if prof.ToolNames[0] == "mutated" {
		t.Error("bound profile shares tool name slice with the record")
	}
}

func TestDefaultRecordsBind(t *testing.T) {
	inbound, outbound := DefaultRecords()
	binder := NewBinder(NewStaticStore(inbound, outbound), nil)

	for _, d := range []call.Direction{call.DirectionInbound, call.DirectionOutbound} {
		if _, err := binder.Bind(call.Context{Direction: d}); err != nil {
			t.Errorf("Bind(%v) error = %v, want nil", d, err)
		}
	}
}
