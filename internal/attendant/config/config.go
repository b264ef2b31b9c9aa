package config

import (
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the attendant worker configuration
type Config struct {
	// Service identity
	AgentName string
	NodeID    string
	LogLevel  string

	// Dispatch hub the worker registers with
	DispatchURL string

	// Room control plane; an empty URL selects the in-process simulator
	RoomServiceURL string
	RoomServiceKey string

	// Engine settings
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Outbound calling
	OutboundRoomPrefix string
	OutboundCallerID   string
	// FallbackNumber recovers a dial target for outbound-named rooms whose
	// metadata was lost in dispatch
	FallbackNumber string
	DialTimeout    time.Duration

	// Profile store file; missing file falls back to built-in defaults
	ProfilesPath string

	// Termination
	FarewellGrace time.Duration

	// Summary webhook; empty disables it
	WebhookURL     string
	WebhookTimeout time.Duration

	// Ops API
	APIPort int
}

// Load loads configuration from dotenv files, command line flags and
// environment variables
func Load() *Config {
	loadDotEnv()

	cfg := &Config{
		OutboundRoomPrefix: "outbound-",
		DialTimeout:        30 * time.Second,
		FarewellGrace:      10 * time.Second,
		WebhookTimeout:     30 * time.Second,
	}

	// Define flags
	flag.StringVar(&cfg.AgentName, "agent", "attendant", "Agent name announced to the dispatch hub")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.DispatchURL, "dispatch", "", "Dispatch hub websocket URL")
	flag.StringVar(&cfg.ProfilesPath, "profiles", "resources/config/profiles.yaml", "Path to behavior profiles file")
	flag.IntVar(&cfg.APIPort, "apiport", 8080, "Ops API listening port")

	flag.Parse()

	applyEnv(cfg)

	if cfg.NodeID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.NodeID = host
		}
	}

	return cfg
}

// applyEnv overrides config fields from environment variables where set
func applyEnv(cfg *Config) {
	if agent := os.Getenv("AGENT_NAME"); agent != "" {
		cfg.AgentName = agent
	}
	if node := os.Getenv("NODE_ID"); node != "" {
		cfg.NodeID = node
	}
	if loglevel := os.Getenv("LOGLEVEL"); loglevel != "" {
		cfg.LogLevel = loglevel
	}
	if dispatch := os.Getenv("DISPATCH_URL"); dispatch != "" {
		cfg.DispatchURL = dispatch
	}
	if rooms := os.Getenv("ROOM_SERVICE_URL"); rooms != "" {
		cfg.RoomServiceURL = rooms
	}
	if key := os.Getenv("ROOM_SERVICE_API_KEY"); key != "" {
		cfg.RoomServiceKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAIAPIKey = key
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.OpenAIBaseURL = base
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.OpenAIModel = model
	}
	if prefix := os.Getenv("OUTBOUND_ROOM_PREFIX"); prefix != "" {
		cfg.OutboundRoomPrefix = prefix
	}
	if callerID := os.Getenv("OUTBOUND_CALLER_ID"); callerID != "" {
		cfg.OutboundCallerID = callerID
	}
	if number := os.Getenv("ATTENDANT_FALLBACK_NUMBER"); number != "" {
		cfg.FallbackNumber = number
	}
	if path := os.Getenv("PROFILES_PATH"); path != "" {
		cfg.ProfilesPath = path
	}
	if webhook := os.Getenv("WEBHOOK_URL"); webhook != "" {
		cfg.WebhookURL = webhook
	}
	if port := os.Getenv("API_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.APIPort = p
		}
	}

	cfg.DialTimeout = secondsEnv("DIAL_TIMEOUT_SECONDS", cfg.DialTimeout)
	cfg.FarewellGrace = secondsEnv("FAREWELL_GRACE_SECONDS", cfg.FarewellGrace)
	cfg.WebhookTimeout = secondsEnv("WEBHOOK_TIMEOUT_SECONDS", cfg.WebhookTimeout)
}

// secondsEnv parses an environment variable holding whole seconds
func secondsEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// loadDotEnv loads .env.local then .env from the working directory.
// Already-set variables win; missing files are fine.
func loadDotEnv() {
	for _, path := range []string{".env.local", ".env"} {
		err := godotenv.Load(path)
		if err == nil {
			slog.Debug("[Config] Loaded environment file", "path", path)
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("[Config] Failed to load environment file", "path", path, "error", err)
		}
	}
}
