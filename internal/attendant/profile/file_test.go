package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nordvoice/attendant/internal/attendant/call"
)

const testProfileYAML = `inbound:
  persona_name: Robert
  language: Svenska
  voice_id: marin
  system_prompt: You are a receptionist.
  first_message: Hej!
  tool_names:
    - record_information
    - end_call
  max_duration_seconds: 600
  inactivity_timeout_seconds: 30
  closing:
    natural: Tack för samtalet. Hej då!
outbound:
  persona_name: Astrid
  language: Svenska
  voice_id: cedar
  system_prompt: You are calling about an insurance inquiry.
  first_message: Hej! Det är Astrid.
  max_duration_seconds: 300
  inactivity_timeout_seconds: 20
`

func writeProfileFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile file: %v", err)
	}
	return path
}

func TestFileStoreLoad(t *testing.T) {
	path := writeProfileFile(t, testProfileYAML)

	store, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	rec, err := store.Profile(call.DirectionInbound)
	if err != nil {
		t.Fatalf("Profile(inbound) error = %v", err)
	}
	if rec.PersonaName != "Robert" {
		t.Errorf("inbound PersonaName = %q, want %q", rec.PersonaName, "Robert")
	}
	if rec.MaxDurationSec != 600 {
		t.Errorf("inbound MaxDurationSec = %d, want 600", rec.MaxDurationSec)
	}
	if rec.Closing.Natural != "Tack för samtalet. Hej då!" {
		t.Errorf("inbound Closing.Natural = %q", rec.Closing.Natural)
	}

	rec, err = store.Profile(call.DirectionOutbound)
	if err != nil {
		t.Fatalf("Profile(outbound) error = %v", err)
	}
	if rec.PersonaName != "Astrid" {
		t.Errorf("outbound PersonaName = %q, want %q", rec.PersonaName, "Astrid")
	}
	if len(rec.ToolNames) != 0 {
		t.Errorf("outbound ToolNames = %v, want empty", rec.ToolNames)
	}
}

func TestFileStoreBindsThroughBinder(t *testing.T) {
	path := writeProfileFile(t, testProfileYAML)

	store, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	binder := NewBinder(store, nil)
	prof, err := binder.Bind(call.Context{Direction: call.DirectionInbound, RoomID: "call-1"})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if prof.Closing.Natural != "Tack för samtalet. Hej då!" {
		t.Errorf("Closing.Natural = %q, want file value", prof.Closing.Natural)
	}
	// Remarks the file omits fall back to defaults.
	if prof.Closing.Timeout == "" {
		t.Error("Closing.Timeout empty, want default")
	}
}

func TestFileStoreReload(t *testing.T) {
	path := writeProfileFile(t, testProfileYAML)

	store, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	updated := "inbound:\n" +
		"  persona_name: Greta\n" +
		"  language: Svenska\n" +
		"  voice_id: marin\n" +
		"  system_prompt: Updated.\n" +
		"  first_message: Hej!\n" +
		"  max_duration_seconds: 120\n" +
		"  inactivity_timeout_seconds: 15\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite profile file: %v", err)
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	rec, err := store.Profile(call.DirectionInbound)
	if err != nil {
		t.Fatalf("Profile(inbound) error = %v", err)
	}
	if rec.PersonaName != "Greta" {
		t.Errorf("PersonaName after reload = %q, want %q", rec.PersonaName, "Greta")
	}
}

func TestFileStoreParseError(t *testing.T) {
	path := writeProfileFile(t, "inbound: [not: a: mapping\n")

	if _, err := NewFileStore(path, nil); err == nil {
		t.Fatal("NewFileStore() error = nil, want parse error")
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	if _, err := NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("NewFileStore() error = nil, want read error")
	}
}
