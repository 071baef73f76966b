package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magmon/core"
	"magmon/protocol"
)

func testMonitorConfig() core.MonitorConfig {
	return core.MonitorConfig{
		MmPerRev:                    2.0,
		MinMovementAllowed:          0.8,
		MaxMovementAllowed:          1.2,
		MinimumExtrusionCheckLength: 4.0,
		ComparisonEnabled:           true,
	}
}

// scenarioWindows emits n sensor windows, each advancing the magnet by
// step angle units against 1.0mm of commanded extrusion.
func scenarioWindows(b *strings.Builder, angle *uint16, n int, step uint16) {
	for i := 0; i < n; i++ {
		*angle = (*angle + step) % protocol.AngleRange
		fmt.Fprintf(b, "word %04X\n", protocol.PositionWord(*angle, false))
		b.WriteString("tick 1.0\n")
		b.WriteString("wait 20\n")
	}
}

func TestScenarioCalibratesThenFlagsSlip(t *testing.T) {
	s := NewSession(core.TypeRotatingMagnetWithSwitch, testMonitorConfig())
	angle := uint16(0)

	// Calibration phase: v2 announcement, a seed window for the sync
	// baseline, then clean windows at half a rev per commanded mm.
	var calib strings.Builder
	calib.WriteString("start\n")
	calib.WriteString("frame\n") // corrupt word, must only bump the counter
	fmt.Fprintf(&calib, "word %04X\n", protocol.VersionWord(2))
	calib.WriteString("tick 0\n")
	calib.WriteString("print on\n")
	calib.WriteString("wait 50\n")
	fmt.Fprintf(&calib, "word %04X\n", protocol.PositionWord(angle, false))
	calib.WriteString("tick 0\n")
	calib.WriteString("wait 50\n")
	scenarioWindows(&calib, &angle, 12, 512)

	require.NoError(t, Run(strings.NewReader(calib.String()), s))

	mon := s.Monitor()
	assert.True(t, mon.DataReceived())
	assert.EqualValues(t, 2, mon.SensorVersion())
	assert.True(t, mon.HaveCalibrationData())
	assert.InDelta(t, 2.0, mon.MeasuredSensitivity(), 1e-9)
	assert.Equal(t, core.StatusOK, s.Status())
	assert.Empty(t, s.Transitions())

	// Slip phase: a quarter rev per commanded mm, ending exactly on a
	// flush, so the session finishes in the under-extrusion state.
	var slip strings.Builder
	scenarioWindows(&slip, &angle, 4, 256)

	require.NoError(t, Run(strings.NewReader(slip.String()), s))

	assert.Equal(t, core.StatusTooLittleMovement, s.Status())
	require.Len(t, s.Transitions(), 1)
	assert.Equal(t, core.StatusOK, s.Transitions()[0].From)
	assert.Equal(t, core.StatusTooLittleMovement, s.Transitions()[0].To)

	assert.Contains(t, mon.Diagnostics(0), "frame 1")
}

func TestScenarioCommentsAndBlankLines(t *testing.T) {
	script := `
# leading comment
word 0xE002   # version announcement, 0x prefix allowed

tick 0
`
	s := NewSession(core.TypeRotatingMagnetWithSwitch, testMonitorConfig())
	require.NoError(t, Run(strings.NewReader(script), s))
	assert.EqualValues(t, 2, s.Monitor().SensorVersion())
	assert.Equal(t, 1, s.Ticks())
}

func TestScenarioParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"unknown op", "word E002\nbogus\n", "line 2: unknown op"},
		{"bad hex", "word xyzt\n", "line 1: bad word"},
		{"word too wide", "word 1E002\n", "line 1: bad word"},
		{"missing arg", "tick\n", "line 1: tick takes exactly one argument"},
		{"extra arg", "wait 10 20\n", "line 1: wait takes exactly one argument"},
		{"bad print arg", "print maybe\n", "line 1: print takes on or off"},
		{"negative wait", "wait -5\n", "line 1: bad wait"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(core.TypeRotatingMagnetWithSwitch, testMonitorConfig())
			err := Run(strings.NewReader(tt.script), s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "magmon.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[monitor]
type = 3
mm_per_rev = 25.6
min_movement_allowed = 0.6
max_movement_allowed = 1.6
check_length = 5.0
comparison_enabled = true

[replay]
scenario = "bench.scn"
debug = true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	mc := cfg.MonitorConfig()
	assert.EqualValues(t, core.TypeRotatingMagnet, cfg.Monitor.Type)
	assert.Equal(t, 25.6, mc.MmPerRev)
	assert.Equal(t, 0.6, mc.MinMovementAllowed)
	assert.Equal(t, 1.6, mc.MaxMovementAllowed)
	assert.Equal(t, 5.0, mc.MinimumExtrusionCheckLength)
	assert.True(t, mc.ComparisonEnabled)
	assert.Equal(t, "bench.scn", cfg.Replay.Scenario)
	assert.True(t, cfg.Replay.Debug)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "[monitor]\ncomparison_enabled = true\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	mc := cfg.MonitorConfig()
	assert.EqualValues(t, core.TypeRotatingMagnetWithSwitch, cfg.Monitor.Type)
	assert.Equal(t, core.DefaultMmPerRev, mc.MmPerRev)
	assert.Equal(t, core.DefaultMinMovementAllowed, mc.MinMovementAllowed)
	assert.Equal(t, core.DefaultMaxMovementAllowed, mc.MaxMovementAllowed)
	assert.Equal(t, core.DefaultMinimumCheckLength, mc.MinimumExtrusionCheckLength)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad type", "[monitor]\ntype = 7\n", "unsupported monitor type 7"},
		{"negative", "[monitor]\nmm_per_rev = -1.0\n", "must not be negative"},
		{"inverted bounds", "[monitor]\nmin_movement_allowed = 2.0\nmax_movement_allowed = 1.0\n", "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
