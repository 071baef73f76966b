package replay

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"magmon/core"
)

// Config is the TOML configuration for magmon-host.
type Config struct {
	Monitor MonitorSection `toml:"monitor"`
	Replay  ReplaySection  `toml:"replay"`
}

// MonitorSection maps onto core.MonitorConfig. Zero-valued numeric
// fields fall back to the sensor defaults.
type MonitorSection struct {
	Type                  uint8   `toml:"type"`
	MmPerRev              float64 `toml:"mm_per_rev"`
	MinMovementAllowed    float64 `toml:"min_movement_allowed"`
	MaxMovementAllowed    float64 `toml:"max_movement_allowed"`
	CheckLength           float64 `toml:"check_length"`
	ComparisonEnabled     bool    `toml:"comparison_enabled"`
	CheckNonPrintingMoves bool    `toml:"check_non_printing_moves"`
}

// ReplaySection holds replay-tool settings.
type ReplaySection struct {
	Scenario string `toml:"scenario"`
	Debug    bool   `toml:"debug"`
	Logfile  string `toml:"logfile"`
}

// DefaultConfig returns the configuration used when no TOML file is
// given.
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorSection{
			Type:              core.TypeRotatingMagnetWithSwitch,
			ComparisonEnabled: true,
		},
	}
}

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the monitor section for values Configure would
// reject or silently misbehave on.
func (c *Config) Validate() error {
	m := &c.Monitor
	switch m.Type {
	case 0:
		m.Type = core.TypeRotatingMagnetWithSwitch
	case core.TypeRotatingMagnet, core.TypeRotatingMagnetWithSwitch:
	default:
		return fmt.Errorf("unsupported monitor type %d", m.Type)
	}
	if m.MmPerRev < 0 || m.MinMovementAllowed < 0 || m.MaxMovementAllowed < 0 || m.CheckLength < 0 {
		return fmt.Errorf("monitor parameters must not be negative")
	}
	if m.MinMovementAllowed > 0 && m.MaxMovementAllowed > 0 && m.MinMovementAllowed > m.MaxMovementAllowed {
		return fmt.Errorf("min_movement_allowed %.2f exceeds max_movement_allowed %.2f",
			m.MinMovementAllowed, m.MaxMovementAllowed)
	}
	return nil
}

// MonitorConfig converts the TOML section into the core configuration,
// filling defaults for unset numeric fields.
func (c *Config) MonitorConfig() core.MonitorConfig {
	m := c.Monitor
	cfg := core.MonitorConfig{
		MmPerRev:                    m.MmPerRev,
		MinMovementAllowed:          m.MinMovementAllowed,
		MaxMovementAllowed:          m.MaxMovementAllowed,
		MinimumExtrusionCheckLength: m.CheckLength,
		ComparisonEnabled:           m.ComparisonEnabled,
		CheckNonPrintingMoves:       m.CheckNonPrintingMoves,
	}
	cfg.ApplyDefaults()
	return cfg
}
