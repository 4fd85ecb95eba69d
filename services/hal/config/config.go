// services/hal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"boardhal-go/types"
	"boardhal-go/x/mathx"
)

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "BOARDHAL_CONFIG"

// Debounce windows are clamped to this range (milliseconds).
const (
	MinDebounceMS = 0
	MaxDebounceMS = 60_000
)

// HALConfig is supplied on the "config/hal" bus topic or loaded from YAML.
type HALConfig struct {
	Defaults []Default     `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Serial   *SerialConfig `yaml:"serial,omitempty" json:"serial,omitempty"`
	Logging  Logging       `yaml:"logging,omitempty" json:"logging,omitempty"`
	Pins     []Pin         `yaml:"pins" json:"pins"`
}

// Default names the preferred provider record for one controller type.
type Default struct {
	Controller string `yaml:"controller" json:"controller"` // "gpio", "spi", ...
	Name       string `yaml:"name" json:"name"`
}

// SerialConfig selects the serial bridge driver instead of the built-in
// simulated backend.
type SerialConfig struct {
	Device string `yaml:"device" json:"device"` // e.g. /dev/ttyACM0
	Baud   int    `yaml:"baud" json:"baud"`
}

// Logging mirrors the logger options so one file configures everything.
type Logging struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`   // debug|info|warn|error
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // json|text
	Output string `yaml:"output,omitempty" json:"output,omitempty"` // stdout|stderr
}

// Pin describes one pin to claim and manage.
type Pin struct {
	Pin        int    `yaml:"pin" json:"pin"`
	Mode       string `yaml:"mode,omitempty" json:"mode,omitempty"`       // drive mode; default "input"
	Sharing    string `yaml:"sharing,omitempty" json:"sharing,omitempty"` // "exclusive" | "shared_read_only"
	DebounceMS int    `yaml:"debounce_ms,omitempty" json:"debounce_ms,omitempty"`
	Initial    *bool  `yaml:"initial,omitempty" json:"initial,omitempty"` // for outputs
	Watch      bool   `yaml:"watch,omitempty" json:"watch,omitempty"`     // publish edge events
}

// Path resolves the config file location: the environment variable wins,
// otherwise fallback is used.
func Path(fallback string) string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return fallback
}

// Load reads, parses and validates a YAML config file.
func Load(path string) (*HALConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg HALConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values and normalises them in place: empty modes
// become "input", debounce windows are clamped, duplicate pin numbers are
// rejected.
func (c *HALConfig) Validate() error {
	for i := range c.Defaults {
		d := &c.Defaults[i]
		if _, ok := types.ParseControllerType(d.Controller); !ok {
			return fmt.Errorf("config: defaults[%d]: unknown controller %q", i, d.Controller)
		}
		if d.Name == "" {
			return fmt.Errorf("config: defaults[%d]: empty provider name", i)
		}
	}

	if c.Serial != nil {
		if c.Serial.Device == "" {
			return fmt.Errorf("config: serial: empty device")
		}
		if c.Serial.Baud <= 0 {
			c.Serial.Baud = 115_200
		}
	}

	seen := map[int]struct{}{}
	for i := range c.Pins {
		p := &c.Pins[i]
		if p.Pin < 0 {
			return fmt.Errorf("config: pins[%d]: negative pin number %d", i, p.Pin)
		}
		if _, dup := seen[p.Pin]; dup {
			return fmt.Errorf("config: pins[%d]: duplicate pin number %d", i, p.Pin)
		}
		seen[p.Pin] = struct{}{}

		if p.Mode == "" {
			p.Mode = types.Input.String()
		}
		if _, ok := types.ParseDriveMode(p.Mode); !ok {
			return fmt.Errorf("config: pins[%d]: unknown mode %q", i, p.Mode)
		}
		switch p.Sharing {
		case "", "exclusive", "shared_read_only":
		default:
			return fmt.Errorf("config: pins[%d]: unknown sharing %q", i, p.Sharing)
		}
		p.DebounceMS = mathx.Clamp(p.DebounceMS, MinDebounceMS, MaxDebounceMS)
	}
	return nil
}

// SharingMode maps the config string to its enum; empty means exclusive.
func (p *Pin) SharingMode() types.SharingMode {
	if p.Sharing == "shared_read_only" {
		return types.SharedReadOnly
	}
	return types.Exclusive
}
