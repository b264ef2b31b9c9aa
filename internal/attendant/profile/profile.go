package profile

import (
	"fmt"
	"strings"
	"time"
)

// SafetyLimits are the watchdog thresholds for one call.
type SafetyLimits struct {
	// MaxCallDuration bounds the whole call, counted from session start
	MaxCallDuration time.Duration
	// InactivityTimeout bounds the silence between caller turns
	InactivityTimeout time.Duration
}

// ClosingRemarks are the farewell texts spoken when a call ends.
// Disconnected callers get no remark; there is nobody left to hear it.
type ClosingRemarks struct {
	// Natural is spoken when the conversation completed on its own
	Natural string
	// Timeout is spoken when the maximum call duration was reached
	Timeout string
	// Inactivity is spoken when the caller went quiet for too long
	Inactivity string
}

// BehaviorProfile is the validated configuration a session runs under.
// Built once by Binder.Bind, shared by pointer, never mutated. Every
// field is populated; a partially filled profile never leaves this
// package.
type BehaviorProfile struct {
	PersonaName  string
	Language     string
	VoiceID      string
	SystemPrompt string
	FirstMessage string
	ToolNames    []string
	Safety       SafetyLimits
	Closing      ClosingRemarks
}

// ConfigurationError reports a profile record that cannot be bound
// because required fields are missing or invalid.
type ConfigurationError struct {
	Profile string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("profile %q missing required fields: %s", e.Profile, strings.Join(e.Missing, ", "))
}

// Default closing remarks, used when a record does not override them.
const (
	defaultClosingNatural    = "Thank you for the call. Goodbye!"
	defaultClosingTimeout    = "We have reached the maximum call time, so I have to end the call here. Goodbye!"
	defaultClosingInactivity = "I have not heard anything for a while, so I will end the call now. Goodbye!"
)

// Record is the raw, unvalidated form of a profile as stores hold it.
// Durations are plain seconds so records map directly onto the YAML
// profile files and test fixtures.
type Record struct {
	PersonaName       string        `yaml:"persona_name"`
	Language          string        `yaml:"language"`
	VoiceID           string        `yaml:"voice_id"`
	SystemPrompt      string        `yaml:"system_prompt"`
	FirstMessage      string        `yaml:"first_message"`
	ToolNames         []string      `yaml:"tool_names"`
	MaxDurationSec    int           `yaml:"max_duration_seconds"`
	InactivitySec     int           `yaml:"inactivity_timeout_seconds"`
	Closing           ClosingRecord `yaml:"closing"`
}

// ClosingRecord is the raw form of the closing remarks.
type ClosingRecord struct {
	Natural    string `yaml:"natural"`
	Timeout    string `yaml:"timeout"`
	Inactivity string `yaml:"inactivity"`
}

// missingFields returns the names of required fields without a usable
// value, in schema order.
func (r Record) missingFields() []string {
	var missing []string
	if strings.TrimSpace(r.PersonaName) == "" {
		missing = append(missing, "persona_name")
	}
	if strings.TrimSpace(r.Language) == "" {
		missing = append(missing, "language")
	}
	if strings.TrimSpace(r.VoiceID) == "" {
		missing = append(missing, "voice_id")
	}
	if strings.TrimSpace(r.SystemPrompt) == "" {
		missing = append(missing, "system_prompt")
	}
	if strings.TrimSpace(r.FirstMessage) == "" {
		missing = append(missing, "first_message")
	}
	if r.MaxDurationSec <= 0 {
		missing = append(missing, "max_duration_seconds")
	}
	if r.InactivitySec <= 0 {
		missing = append(missing, "inactivity_timeout_seconds")
	}
	return missing
}

// bind validates the record and builds the immutable profile.
// name identifies the record in errors (the direction key).
func (r Record) bind(name string) (*BehaviorProfile, error) {
	if missing := r.missingFields(); len(missing) > 0 {
		return nil, &ConfigurationError{Profile: name, Missing: missing}
	}

	prof := &BehaviorProfile{
		PersonaName:  r.PersonaName,
		Language:     r.Language,
		VoiceID:      r.VoiceID,
		SystemPrompt: r.SystemPrompt,
		FirstMessage: r.FirstMessage,
		ToolNames:    append([]string(nil), r.ToolNames...),
		Safety: SafetyLimits{
			MaxCallDuration:   time.Duration(r.MaxDurationSec) * time.Second,
			InactivityTimeout: time.Duration(r.InactivitySec) * time.Second,
		},
		Closing: ClosingRemarks{
			Natural:    r.Closing.Natural,
			Timeout:    r.Closing.Timeout,
			Inactivity: r.Closing.Inactivity,
		},
	}

	if prof.Closing.Natural == "" {
		prof.Closing.Natural = defaultClosingNatural
	}
	if prof.Closing.Timeout == "" {
		prof.Closing.Timeout = defaultClosingTimeout
	}
	if prof.Closing.Inactivity == "" {
		prof.Closing.Inactivity = defaultClosingInactivity
	}

	return prof, nil
}
