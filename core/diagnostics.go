package core

import (
	"fmt"
	"math"
)

// Diagnostics implements Monitor. The format mirrors the firmware's M122
// filament monitor section.
func (m *MagnetMonitor) Diagnostics(extruder int) string {
	if !m.dataReceived {
		return fmt.Sprintf("Extruder %d: no data received", extruder)
	}
	stats := m.capture.Stats()
	return fmt.Sprintf("Extruder %d: pos %.2f, errs: frame %d parity %d ovrun %d pol %d ovdue %d",
		extruder, m.CurrentPosition(),
		m.framingErrorCount, m.parityErrorCount,
		stats.Overruns, stats.PolarityErrors, m.overdueCount)
}

// CalibrationSummary describes the sensitivity learned since calibration
// began. Percentages are the observed movement band relative to the
// measured sensitivity.
type CalibrationSummary struct {
	MmPerRev      float64
	PercentMin    int
	PercentMax    int
	TotalDistance float64
}

// ConfigSummary describes the configured comparison parameters in the same
// shape as CalibrationSummary.
type ConfigSummary struct {
	MmPerRev       float64
	PercentMin     int
	PercentMax     int
	SampleDistance float64
}

// MonitorStatus is the externally visible state of a monitor, suitable for
// a status-query API or object model.
type MonitorStatus struct {
	Type       string
	Enabled    bool
	Calibrated *CalibrationSummary // nil until calibration data is valid
	Configured ConfigSummary
}

func toPercent(f float64) int {
	return int(math.Round(f * 100.0))
}

// Status returns a snapshot of the monitor for reporting.
func (m *MagnetMonitor) Status() MonitorStatus {
	st := MonitorStatus{
		Type:    "rotatingMagnet",
		Enabled: m.cfg.ComparisonEnabled,
		Configured: ConfigSummary{
			MmPerRev:       m.cfg.MmPerRev,
			PercentMin:     toPercent(m.cfg.MinMovementAllowed),
			PercentMax:     toPercent(m.cfg.MaxMovementAllowed),
			SampleDistance: m.cfg.MinimumExtrusionCheckLength,
		},
	}
	if m.dataReceived && m.HaveCalibrationData() {
		sensitivity := m.MeasuredSensitivity()
		st.Calibrated = &CalibrationSummary{
			MmPerRev:      sensitivity,
			PercentMin:    toPercent(m.minMovementRatio * sensitivity),
			PercentMax:    toPercent(m.maxMovementRatio * sensitivity),
			TotalDistance: m.totalExtrusionCommanded,
		}
	}
	return st
}

// Report formats the human-readable configuration reply, as produced when
// the monitor is queried without new parameters.
func (m *MagnetMonitor) Report() string {
	withSwitch := ""
	if m.switchOpenMask != 0 {
		withSwitch = " with switch"
	}
	enabled := "disabled"
	if m.cfg.ComparisonEnabled {
		enabled = "enabled"
	}
	s := fmt.Sprintf("Duet3D rotating magnet filament monitor v%d%s, %s, sensitivity %.2fmm/rev, allow %d%% to %d%%, check every %.1fmm, ",
		m.version, withSwitch, enabled,
		m.cfg.MmPerRev,
		toPercent(m.cfg.MinMovementAllowed), toPercent(m.cfg.MaxMovementAllowed),
		m.cfg.MinimumExtrusionCheckLength)

	switch {
	case !m.dataReceived:
		s += "no data received"

	case m.sensorError:
		s += fmt.Sprintf("version %d, error", m.version)
		if m.lastErrorCode != 0 {
			s += fmt.Sprintf(" %d", m.lastErrorCode)
		}

	case m.HaveCalibrationData():
		sensitivity := m.MeasuredSensitivity()
		s += fmt.Sprintf("version %d, ", m.version)
		if m.version >= 3 {
			s += fmt.Sprintf("mag %d agc %d, ", m.magnitude, m.agc)
		}
		s += fmt.Sprintf("measured sensitivity %.2fmm/rev, min %d%% max %d%% over %.1fmm",
			sensitivity,
			toPercent(m.minMovementRatio*sensitivity),
			toPercent(m.maxMovementRatio*sensitivity),
			m.totalExtrusionCommanded)

	default:
		s += fmt.Sprintf("version %d, ", m.version)
		if m.version >= 3 {
			s += fmt.Sprintf("mag %d agc %d, ", m.magnitude, m.agc)
		}
		s += "no calibration data"
	}
	return s
}
