package core

// Monitor types as numbered in M591. Type 4 is the magnet sensor variant
// with a built-in filament presence microswitch.
const (
	TypeRotatingMagnet           = 3
	TypeRotatingMagnetWithSwitch = 4
)

// Default configuration, matching the Duet3D sensor datasheet.
const (
	DefaultMmPerRev           = 28.8
	DefaultMinMovementAllowed = 0.25
	DefaultMaxMovementAllowed = 3.00
	DefaultMinimumCheckLength = 3.0
)

// MonitorConfig is the externally validated configuration applied to a
// monitor via Configure. Movement bounds are fractions of the configured
// sensitivity, not percentages.
type MonitorConfig struct {
	MmPerRev                    float64
	MinMovementAllowed          float64
	MaxMovementAllowed          float64
	MinimumExtrusionCheckLength float64
	ComparisonEnabled           bool
	CheckNonPrintingMoves       bool
}

// DefaultMonitorConfig returns the configuration a freshly created monitor
// runs with before any M591 parameters arrive.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		MmPerRev:                    DefaultMmPerRev,
		MinMovementAllowed:          DefaultMinMovementAllowed,
		MaxMovementAllowed:          DefaultMaxMovementAllowed,
		MinimumExtrusionCheckLength: DefaultMinimumCheckLength,
	}
}

// ApplyDefaults fills zero-valued numeric fields with the defaults.
// Boolean fields are taken as given.
func (c *MonitorConfig) ApplyDefaults() {
	if c.MmPerRev == 0 {
		c.MmPerRev = DefaultMmPerRev
	}
	if c.MinMovementAllowed == 0 {
		c.MinMovementAllowed = DefaultMinMovementAllowed
	}
	if c.MaxMovementAllowed == 0 {
		c.MaxMovementAllowed = DefaultMaxMovementAllowed
	}
	if c.MinimumExtrusionCheckLength == 0 {
		c.MinimumExtrusionCheckLength = DefaultMinimumCheckLength
	}
}
