package profile

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	yaml "go.yaml.in/yaml/v2"

	"github.com/nordvoice/attendant/internal/attendant/call"
)

// fileConfig is the YAML document layout of a profile file: one record
// per direction.
type fileConfig struct {
	Inbound  Record `yaml:"inbound"`
	Outbound Record `yaml:"outbound"`
}

// FileStore loads the profile pair from a YAML file.
// Uses copy-on-write semantics for lock-free reads; Reload swaps the
// whole document atomically after a successful parse, so concurrent
// lookups never observe a half-loaded file.
type FileStore struct {
	profiles atomic.Pointer[fileConfig]
	path     string
	logger   *slog.Logger
}

// NewFileStore creates a FileStore from a YAML profile file.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStore{
		path:   path,
		logger: logger,
	}

	if err := s.Reload(); err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}

	return s, nil
}

// Profile returns the raw record for the direction.
// Field validation happens at bind time, not here: an incomplete
// record for one direction must not block calls in the other.
func (s *FileStore) Profile(d call.Direction) (Record, error) {
	cfg := s.profiles.Load()
	if cfg == nil {
		return Record{}, fmt.Errorf("profile file %s not loaded", s.path)
	}
	if d == call.DirectionOutbound {
		return cfg.Outbound, nil
	}
	return cfg.Inbound, nil
}

// Reload reloads the profile file.
// Thread-safe: atomic swap after successful parse.
func (s *FileStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse profiles: %w", err)
	}

	for name, rec := range map[string]Record{"inbound": cfg.Inbound, "outbound": cfg.Outbound} {
		if missing := rec.missingFields(); len(missing) > 0 {
			s.logger.Warn("[Profiles] Incomplete profile record, binding will fail for this direction",
				"path", s.path,
				"profile", name,
				"missing", fmt.Sprintf("%v", missing),
			)
		}
	}

	s.profiles.Store(&cfg)

	s.logger.Info("[Profiles] Loaded profile file",
		"path", s.path,
	)

	return nil
}
