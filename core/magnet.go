package core

import (
	"magmon/protocol"
)

// Timing constants for the measurement pipeline.
const (
	// Retract and re-prime moves have high accelerations, so measurement
	// latency is more likely to corrupt readings taken near them. A start
	// bit is only trusted once printing moves have been running this long.
	syncDelayMillis = 10

	// When no position report lands for this long while extrusion keeps
	// accumulating, a comparison is forced on lower-confidence data so a
	// stalled sensor cannot suppress jam detection.
	overdueMillis = 500

	// Multiplier on the check length before an overdue comparison fires.
	overdueLengthFactor = 3

	// Minimum commanded extrusion before the learned sensitivity is
	// trusted; below this a verdict would rest on too little data.
	calibrationMinLength = 10.0
)

// MagnetMonitor watches one extruder with a Duet3D rotating magnet filament
// sensor. It decodes the sensor's word stream, attributes measured wheel
// rotation to intervals of commanded extrusion, learns the extrusion-to-
// rotation sensitivity online and flags jams, slips and runout.
//
// Not reentrant: the control loop must serialize all calls for one
// instance. The capture front end is the only concurrent collaborator and
// is accessed purely by polling.
type MagnetMonitor struct {
	capture protocol.Capture
	clock   Clock
	motion  MotionTracker
	debug   Debug

	cfg            MonitorConfig
	switchOpenMask uint16

	// Decoded sensor state
	dataReceived  bool
	sensorValue   uint16
	version       uint8
	lastErrorCode uint8
	magnitude     uint8
	agc           uint8
	sensorError   bool

	framingErrorCount   uint32
	parityErrorCount    uint32
	overdueCount        uint32
	lastMeasurementTime uint32

	// Start-bit synchronization
	haveStartBitData                      bool
	synced                                bool
	wasPrintingAtStartBit                 bool
	candidateStartBitTime                 uint32
	lastSyncTime                          uint32
	extrusionCommandedAtCandidateStartBit float64

	// Segment accumulators. The ThisSegment pair holds synchronized data
	// ready for comparison; the SinceLastSync pair is the open window.
	// Each pair resets together, never independently.
	extrusionCommandedThisSegment   float64
	extrusionCommandedSinceLastSync float64
	movementMeasuredThisSegment     float64
	movementMeasuredSinceLastSync   float64

	// Calibration
	state                   monitorState
	totalExtrusionCommanded float64
	totalMovementMeasured   float64
	minMovementRatio        float64
	maxMovementRatio        float64
	backwards               bool
}

// NewMagnetMonitor creates a monitor for one extruder. monitorType selects
// the sensor variant (TypeRotatingMagnet or TypeRotatingMagnetWithSwitch).
func NewMagnetMonitor(monitorType uint8, capture protocol.Capture, clock Clock, motion MotionTracker) *MagnetMonitor {
	m := &MagnetMonitor{
		capture: capture,
		clock:   clock,
		motion:  motion,
		cfg:     DefaultMonitorConfig(),
	}
	if monitorType == TypeRotatingMagnetWithSwitch {
		m.switchOpenMask = protocol.V1SwitchOpenMask
	}
	m.Init()
	return m
}

// Init resets decode and error state. Called on creation and on
// reconfiguration; calibration data does not survive it.
func (m *MagnetMonitor) Init() {
	m.dataReceived = false
	m.sensorValue = 0
	m.parityErrorCount = 0
	m.framingErrorCount = 0
	m.overdueCount = 0
	m.lastMeasurementTime = 0
	m.lastErrorCode = 0
	m.version = 1
	m.magnitude = 0
	m.agc = 0
	m.backwards = false
	m.sensorError = false
	m.totalExtrusionCommanded = 0
	m.totalMovementMeasured = 0
	m.minMovementRatio = 0
	m.maxMovementRatio = 0
	m.capture.InitBuffer()
	m.Reset()
}

// Reset clears sync and segment state and re-arms calibration triggering.
// Calibration totals and ratio bounds are kept; Clear relies on that.
func (m *MagnetMonitor) Reset() {
	m.extrusionCommandedThisSegment = 0
	m.extrusionCommandedSinceLastSync = 0
	m.movementMeasuredThisSegment = 0
	m.movementMeasuredSinceLastSync = 0
	m.state = stateIdle
	m.haveStartBitData = false
	m.synced = false // force a resync
}

// Configure implements Monitor.
func (m *MagnetMonitor) Configure(cfg MonitorConfig) {
	m.cfg = cfg
	m.Init()
}

// Config returns the active configuration.
func (m *MagnetMonitor) Config() MonitorConfig {
	return m.cfg
}

// SetComparisonEnabled toggles comparison at runtime without
// reinitializing, so calibration learned while disabled is kept.
func (m *MagnetMonitor) SetComparisonEnabled(enabled bool) {
	m.cfg.ComparisonEnabled = enabled
}

// Debug exposes the monitor's debug facility for writer/flag injection.
func (m *MagnetMonitor) Debug() *Debug {
	return &m.debug
}

// Check implements Monitor. It is called once per control tick.
func (m *MagnetMonitor) Check(isPrinting, fromCapture bool, captureMillis uint32, filamentConsumed float64) FilamentStatus {
	// 1. Fold in the extrusion commanded since the previous tick.
	m.extrusionCommandedSinceLastSync += filamentConsumed

	// 2. A candidate start bit anchors the running extrusion total to the
	// word now being received. Only trustworthy when the front end really
	// was between words and no earlier anchor is still pending.
	if fromCapture && !m.haveStartBitData && m.capture.IsAwaitingStartBit() {
		m.extrusionCommandedAtCandidateStartBit = m.extrusionCommandedSinceLastSync
		m.wasPrintingAtStartBit = isPrinting
		m.candidateStartBitTime = captureMillis
		m.haveStartBitData = true
	}

	// 3. Drain and decode everything the front end has buffered.
	m.handleIncomingData()

	// 4. Decide whether a comparison is due and derive the verdict.
	ret := StatusOK
	switch {
	case m.sensorError:
		ret = StatusSensorError

	case m.sensorValue&m.switchOpenMask != 0:
		ret = StatusNoFilament

	case m.extrusionCommandedThisSegment >= m.cfg.MinimumExtrusionCheckLength:
		ret = m.checkFilament(m.extrusionCommandedThisSegment, m.movementMeasuredThisSegment, false)
		m.extrusionCommandedThisSegment = 0
		m.movementMeasuredThisSegment = 0

	case m.extrusionCommandedThisSegment+m.extrusionCommandedSinceLastSync >= m.cfg.MinimumExtrusionCheckLength*overdueLengthFactor &&
		m.clock.Millis()-m.lastMeasurementTime > overdueMillis &&
		!m.capture.IsReceiving():
		// A sync is overdue. Compare the combined totals even though part
		// of them was never confirmed by a sync window.
		m.overdueCount++
		ret = m.checkFilament(
			m.extrusionCommandedThisSegment+m.extrusionCommandedSinceLastSync,
			m.movementMeasuredThisSegment+m.movementMeasuredSinceLastSync,
			true)
		m.extrusionCommandedThisSegment = 0
		m.extrusionCommandedSinceLastSync = 0
		m.movementMeasuredThisSegment = 0
		m.movementMeasuredSinceLastSync = 0
	}

	if !m.cfg.ComparisonEnabled {
		return StatusOK
	}
	return ret
}

// Clear implements Monitor. Called when printing stops. Measurement state
// is reset but calibration survives; the returned status reflects only the
// instantaneous sensor condition.
func (m *MagnetMonitor) Clear() FilamentStatus {
	m.Reset() // first, so no stale start-bit anchor is consumed below
	m.handleIncomingData()

	switch {
	case !m.cfg.ComparisonEnabled:
		return StatusOK
	case !m.dataReceived:
		return StatusNoDataReceived
	case m.sensorError:
		return StatusSensorError
	case m.sensorValue&m.switchOpenMask != 0:
		return StatusNoFilament
	}
	return StatusOK
}

// DataReceived reports whether a valid position report has ever arrived
// since the last Init.
func (m *MagnetMonitor) DataReceived() bool {
	return m.dataReceived
}

// SensorVersion returns the protocol version announced by the sensor.
func (m *MagnetMonitor) SensorVersion() uint8 {
	return m.version
}

// CurrentPosition returns the wheel angle in degrees.
func (m *MagnetMonitor) CurrentPosition() float64 {
	return float64(protocol.Angle(m.sensorValue)) * (360.0 / 1024.0)
}

// HaveCalibrationData reports whether MeasuredSensitivity is meaningful.
func (m *MagnetMonitor) HaveCalibrationData() bool {
	return m.state != stateCalibrating && m.totalExtrusionCommanded > calibrationMinLength
}

// MeasuredSensitivity returns the learned mm of extrusion per sensor
// revolution. Valid only when HaveCalibrationData is true.
func (m *MagnetMonitor) MeasuredSensitivity() float64 {
	return m.totalExtrusionCommanded / m.totalMovementMeasured
}
