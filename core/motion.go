package core

// MotionTracker is the monitor's view of the motion planner: when the
// extruders last began printing moves. Retract and re-prime moves have high
// accelerations, so measurements anchored too soon after a printing restart
// are rejected.
type MotionTracker interface {
	// ExtruderPrintingSince returns the millisecond timestamp at which the
	// current run of printing extrusion started.
	ExtruderPrintingSince() uint32
}

// PrintState is a minimal MotionTracker for targets and replay sessions
// that track print activity themselves.
type PrintState struct {
	printing      bool
	printingSince uint32
}

// SetPrinting records a print-activity transition at the given time.
// Repeated calls with the same state keep the original start time.
func (p *PrintState) SetPrinting(printing bool, now uint32) {
	if printing && !p.printing {
		p.printingSince = now
	}
	p.printing = printing
}

// IsPrinting reports the current print activity.
func (p *PrintState) IsPrinting() bool {
	return p.printing
}

// ExtruderPrintingSince implements MotionTracker.
func (p *PrintState) ExtruderPrintingSince() uint32 {
	return p.printingSince
}
