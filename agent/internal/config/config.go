package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowpulse/flowpulse/agent/internal/poll"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultCoordinatorURL = "ws://localhost:8080"
	DefaultLogLevel       = "info"
	DefaultSourceMode     = "rod"
	DefaultURLPattern     = `make\.com|n8n`
	DefaultBufferSize     = 64
	DefaultHeader         = "x-api-key"
)

// Source modes.
const (
	ModeRod  = "rod"
	ModeFile = "file"
)

// Config is the agent's view of config.yaml. The `server:` key in the same
// file is ignored by the agent binary.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// CoordinatorURL is the websocket base URL of the coordinator
	// (ws://host:port). The extractor path is appended by the link.
	CoordinatorURL string `yaml:"coordinator_url"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Source SourceConfig `yaml:"source"`
	Poll   PollConfig   `yaml:"poll"`
	Link   LinkConfig   `yaml:"link"`
}

// SourceConfig selects where the page DOM comes from.
type SourceConfig struct {
	// Mode is rod (live tab over DevTools) or file (watched HTML capture).
	Mode string `yaml:"mode"`

	// DevToolsURL is the browser's websocket debugger URL. Used when Mode == "rod".
	DevToolsURL string `yaml:"devtools_url"`

	// URLPattern is a JavaScript regex selecting the tab to attach to.
	URLPattern string `yaml:"url_pattern"`

	// Overlay injects the in-page summary button into the attached tab.
	Overlay bool `yaml:"overlay"`

	// File is the HTML capture path. Used when Mode == "file".
	File string `yaml:"file"`

	// URL pins the page URL reported for a file capture.
	URL string `yaml:"url"`
}

// PollConfig shapes the extraction retry schedule.
type PollConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

// Controller converts the section to a poll.Config.
func (p PollConfig) Controller() poll.Config {
	return poll.Config{
		MaxAttempts:  p.MaxAttempts,
		InitialDelay: p.InitialDelay,
		Multiplier:   p.Multiplier,
		MaxDelay:     p.MaxDelay,
		SettleDelay:  p.SettleDelay,
	}
}

// LinkConfig configures the connection to the coordinator.
type LinkConfig struct {
	// BufferSize is the number of outbound messages held while the
	// coordinator is unreachable. The oldest is evicted when full.
	BufferSize int `yaml:"buffer_size"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig specifies how the agent authenticates to the coordinator.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Level parses a log level name. Unknown names map to info.
func Level(name string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	pc := poll.DefaultConfig()
	return &Config{
		Agent: AgentConfig{
			CoordinatorURL: DefaultCoordinatorURL,
			LogLevel:       DefaultLogLevel,
			Source: SourceConfig{
				Mode:       DefaultSourceMode,
				URLPattern: DefaultURLPattern,
				Overlay:    true,
			},
			Poll: PollConfig{
				MaxAttempts:  pc.MaxAttempts,
				InitialDelay: pc.InitialDelay,
				Multiplier:   pc.Multiplier,
				MaxDelay:     pc.MaxDelay,
				SettleDelay:  pc.SettleDelay,
			},
			Link: LinkConfig{
				BufferSize: DefaultBufferSize,
				Auth:       AuthConfig{Header: DefaultHeader},
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.CoordinatorURL == "" {
		return fmt.Errorf("agent.coordinator_url is required")
	}
	if !strings.HasPrefix(a.CoordinatorURL, "ws://") && !strings.HasPrefix(a.CoordinatorURL, "wss://") {
		return fmt.Errorf("agent.coordinator_url %q must use ws:// or wss://", a.CoordinatorURL)
	}
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent.log_level %q unknown: want debug|info|warn|error", a.LogLevel)
	}
	switch a.Source.Mode {
	case ModeRod:
		if a.Source.DevToolsURL == "" {
			return fmt.Errorf("agent.source.devtools_url is required in rod mode")
		}
	case ModeFile:
		if a.Source.File == "" {
			return fmt.Errorf("agent.source.file is required in file mode")
		}
	default:
		return fmt.Errorf("agent.source.mode %q unknown: want rod|file", a.Source.Mode)
	}
	if a.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("agent.poll.max_attempts must be positive")
	}
	if a.Poll.InitialDelay <= 0 || a.Poll.MaxDelay <= 0 {
		return fmt.Errorf("agent.poll delays must be positive")
	}
	if a.Poll.MaxDelay < a.Poll.InitialDelay {
		return fmt.Errorf("agent.poll.max_delay must not be below initial_delay")
	}
	if a.Poll.Multiplier < 1 {
		return fmt.Errorf("agent.poll.multiplier must be at least 1")
	}
	if a.Poll.SettleDelay < 0 {
		return fmt.Errorf("agent.poll.settle_delay must not be negative")
	}
	if a.Link.BufferSize <= 0 {
		return fmt.Errorf("agent.link.buffer_size must be positive")
	}
	switch a.Link.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("agent.link.auth.mode %q unknown: want apikey|none", a.Link.Auth.Mode)
	}
	return nil
}
