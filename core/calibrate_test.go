package core

import (
	"math"
	"testing"

	"magmon/protocol"
)

// feedWindows closes n accepted sync windows, each carrying the given
// commanded extrusion and angle step, and returns the last status.
func (r *testRig) feedWindows(n int, extrusion float64, angleStep uint16) FilamentStatus {
	st := StatusOK
	angle := protocol.Angle(r.mon.sensorValue)
	for i := 0; i < n; i++ {
		angle = (angle + angleStep) & protocol.AngleMask
		st = r.syncWindow(angle, extrusion)
		r.clock.Advance(20)
	}
	return st
}

func TestCalibrationConvergence(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MinimumExtrusionCheckLength = 10.0
	r := newRig(cfg)
	r.beginPrinting(t)

	// Ten windows of 1mm, each measuring half a revolution: the first
	// flush carries commanded=10, measured=5 and finishes calibration.
	if st := r.feedWindows(10, 1.0, 512); st != StatusOK {
		t.Fatalf("status during calibration = %v", st)
	}

	if r.mon.state != stateComparing {
		t.Fatalf("state = %v, want comparing", r.mon.state)
	}
	if r.mon.minMovementRatio != 0.5 || r.mon.maxMovementRatio != 0.5 {
		t.Fatalf("ratio bounds = [%v, %v], want [0.5, 0.5]",
			r.mon.minMovementRatio, r.mon.maxMovementRatio)
	}
}

func TestSensitivityReadout(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MinimumExtrusionCheckLength = 6.0
	r := newRig(cfg)
	r.beginPrinting(t)

	r.feedWindows(6, 1.0, 512)
	if r.mon.HaveCalibrationData() {
		t.Fatal("sensitivity must not be reported while calibrating")
	}

	r.feedWindows(6, 1.0, 512)
	if !r.mon.HaveCalibrationData() {
		t.Fatal("sensitivity should be valid once past the calibration floor")
	}
	// 12mm commanded over 6 revolutions.
	if got := r.mon.MeasuredSensitivity(); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("sensitivity = %v, want 2.0", got)
	}
}

func TestRatioBoundsOnlyWiden(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MinimumExtrusionCheckLength = 10.0
	r := newRig(cfg)
	r.beginPrinting(t)

	r.feedWindows(10, 1.0, 512) // calibrates at ratio 0.5

	// A slipping segment: half the movement.
	r.feedWindows(10, 1.0, 256)
	if r.mon.minMovementRatio != 0.25 {
		t.Fatalf("min ratio = %v, want 0.25", r.mon.minMovementRatio)
	}
	if r.mon.maxMovementRatio != 0.5 {
		t.Fatalf("max ratio = %v, want 0.5 unchanged", r.mon.maxMovementRatio)
	}

	// A normal segment afterwards must not shrink the band.
	r.feedWindows(10, 1.0, 512)
	if r.mon.minMovementRatio != 0.25 || r.mon.maxMovementRatio != 0.5 {
		t.Fatalf("bounds = [%v, %v], want [0.25, 0.5]",
			r.mon.minMovementRatio, r.mon.maxMovementRatio)
	}
}

func TestComparisonVerdicts(t *testing.T) {
	cfg := defaultTestConfig() // mmPerRev=2: ratio 0.5 scales to 1.0
	cfg.MinimumExtrusionCheckLength = 10.0
	cfg.MinMovementAllowed = 0.6
	cfg.MaxMovementAllowed = 1.4
	r := newRig(cfg)
	r.beginPrinting(t)

	r.feedWindows(10, 1.0, 512) // calibrate at scaled ratio 1.0

	// Slip: quarter revolution per mm scales to 0.5 < 0.6.
	if st := r.feedWindows(10, 1.0, 256); st != StatusTooLittleMovement {
		t.Fatalf("slip status = %v, want too little movement", st)
	}

	// Over-movement: half a revolution per quarter mm scales to 4.0 > 1.4.
	if st := r.feedWindows(40, 0.25, 512); st != StatusTooMuchMovement {
		t.Fatalf("overmovement status = %v, want too much movement", st)
	}
}

func TestBackwardsSensor(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MinimumExtrusionCheckLength = 10.0
	r := newRig(cfg)
	r.beginPrinting(t)

	// Wheel turning backwards: -0.25 revolution per mm.
	r.feedWindows(10, 1.0, 1024-256)
	if !r.mon.backwards {
		t.Fatal("backwards rotation not latched")
	}
	if r.mon.totalMovementMeasured <= 0 {
		t.Fatal("measured total should be sign-corrected positive")
	}
	if r.mon.minMovementRatio != 0.25 || r.mon.maxMovementRatio != 0.25 {
		t.Fatalf("ratio bounds = [%v, %v], want [0.25, 0.25]",
			r.mon.minMovementRatio, r.mon.maxMovementRatio)
	}

	// Further backwards segments compare sign-corrected.
	if st := r.feedWindows(10, 1.0, 1024-256); st != StatusOK {
		t.Fatalf("backwards steady state = %v, want ok", st)
	}
}

func TestNoDataReceivedShortCircuit(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MinimumExtrusionCheckLength = 5.0
	r := newRig(cfg)
	r.motion.SetPrinting(true, 0)
	r.clock.Advance(50)

	// Plenty of commanded extrusion, but the sensor never said anything.
	var st FilamentStatus
	for i := 0; i < 15; i++ {
		st = r.tick(1.0)
		r.clock.Advance(100)
	}
	if st != StatusNoDataReceived {
		t.Fatalf("status = %v, want no data received", st)
	}
	if r.mon.state != stateIdle {
		t.Fatal("no-data flushes must not advance the calibration state")
	}
}

func TestCheckHistoryRecorded(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MinimumExtrusionCheckLength = 10.0
	r := newRig(cfg)
	r.beginPrinting(t)

	var lines []string
	r.mon.Debug().SetWriter(func(s string) { lines = append(lines, s) })
	r.mon.Debug().SetEnabled(true)

	r.feedWindows(10, 1.0, 512)

	hist := r.mon.Debug().History()
	if len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}
	if hist[0].Commanded != 10.0 || hist[0].Overdue {
		t.Fatalf("recorded event = %+v", hist[0])
	}
	if len(lines) != 1 || lines[0] != "Extr req 10.000 meas 5.000" {
		t.Fatalf("debug lines = %q", lines)
	}
}
