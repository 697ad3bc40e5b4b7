package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/brickline/brickline/internal/device"
	"github.com/brickline/brickline/internal/hub"
)

// Config holds all application configuration.
type Config struct {
	Hubs     []HubConfig `yaml:"hubs"`
	Relay    RelayConfig `yaml:"relay"`
	LogLevel string      `yaml:"log_level"`
}

// HubConfig describes one hub to connect to and the peripherals expected on
// it.
type HubConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"` // e.g. "boost", "duplo_train"
	Address string `yaml:"address"`
	// QueryPortInfo enables the deep port metadata interrogation on attach.
	QueryPortInfo bool               `yaml:"query_port_info"`
	Peripherals   []PeripheralConfig `yaml:"peripherals"`
}

// PeripheralConfig describes one declared peripheral.
type PeripheralConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // device profile name, e.g. "vision_sensor"
	// Port reserves an exact physical port. Omitted means first matching
	// attach wins.
	Port         *byte              `yaml:"port"`
	Capabilities []CapabilityConfig `yaml:"capabilities"`
}

// CapabilityConfig enables one sensing capability, with an optional update
// threshold.
type CapabilityConfig struct {
	Name  string `yaml:"name"`
	Delta uint32 `yaml:"delta"`
}

// RelayConfig holds the websocket telemetry relay settings.
type RelayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "brickline")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			Enabled: false,
			Listen:  "localhost:8765",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if len(c.Hubs) == 0 {
		return fmt.Errorf("hubs must not be empty")
	}

	hubNames := make(map[string]bool)
	for i, hc := range c.Hubs {
		if hc.Name == "" {
			return fmt.Errorf("hubs[%d].name must not be empty", i)
		}
		if hubNames[hc.Name] {
			return fmt.Errorf("duplicate hub name %q", hc.Name)
		}
		hubNames[hc.Name] = true

		if _, err := hub.KindByName(hc.Kind); err != nil {
			return fmt.Errorf("hubs[%d]: %w", i, err)
		}

		periphNames := make(map[string]bool)
		for j, pc := range hc.Peripherals {
			if pc.Name == "" {
				return fmt.Errorf("hubs[%d].peripherals[%d].name must not be empty", i, j)
			}
			if periphNames[pc.Name] {
				return fmt.Errorf("hub %q: duplicate peripheral name %q", hc.Name, pc.Name)
			}
			periphNames[pc.Name] = true

			profile, err := device.Lookup(pc.Type)
			if err != nil {
				return fmt.Errorf("hub %q peripheral %q: %w", hc.Name, pc.Name, err)
			}
			for _, cc := range pc.Capabilities {
				if _, ok := profile.Capability(cc.Name); !ok {
					return fmt.Errorf("hub %q peripheral %q: type %q has no capability %q",
						hc.Name, pc.Name, pc.Type, cc.Name)
				}
			}
		}
	}

	if c.Relay.Enabled && c.Relay.Listen == "" {
		return fmt.Errorf("relay.listen must not be empty when the relay is enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level string to a slog.Level. Unknown
// values default to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteDefault writes a commented starter config to the default path unless
// one already exists. Returns the written path, or "" when a config was
// already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(DefaultConfigDir(), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	content := `# brickline configuration
# Each hub lists the peripherals expected on it. Peripherals with no port
# bind to the first matching attachment; set port to reserve an exact one.
log_level: info
relay:
  enabled: false
  listen: localhost:8765
hubs:
  - name: train
    kind: duplo_train
    peripherals:
      - name: motor
        type: duplo_train_motor
      - name: speedo
        type: duplo_speedometer
        capabilities:
          - name: sense_speed
            delta: 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}
