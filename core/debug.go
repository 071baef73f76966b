package core

import "strconv"

// DebugWriter is a function type for writing debug messages. Platforms
// redirect it to UART, USB or a log file; the default drops everything.
type DebugWriter func(string)

// CheckEvent captures one segment comparison for post-mortem analysis.
type CheckEvent struct {
	Millis    uint32
	Commanded float64 // mm of commanded extrusion in the flushed segment
	Measured  float64 // revolutions measured over the same segment
	Overdue   bool
	Status    FilamentStatus
}

const checkRingSize = 32 // keep the last 32 comparisons

// Debug collects comparison history and optional debug prints for one
// monitor. Injected rather than global so several extruders can be traced
// independently.
type Debug struct {
	writer  DebugWriter
	enabled bool

	ring     [checkRingSize]CheckEvent
	ringHead uint8
	ringLen  uint8
}

// SetWriter sets the output function for debug prints.
func (d *Debug) SetWriter(writer DebugWriter) {
	d.writer = writer
}

// SetEnabled turns per-comparison debug prints on or off. The event ring
// is always recorded; it is cheap.
func (d *Debug) SetEnabled(enabled bool) {
	d.enabled = enabled
}

// Enabled reports whether debug prints are active.
func (d *Debug) Enabled() bool {
	return d.enabled
}

// RecordCheck stores a comparison in the ring and, when enabled, prints it.
func (d *Debug) RecordCheck(ev CheckEvent) {
	d.ring[d.ringHead] = ev
	d.ringHead = (d.ringHead + 1) % checkRingSize
	if d.ringLen < checkRingSize {
		d.ringLen++
	}

	if d.enabled && d.writer != nil {
		msg := "Extr req " + strconv.FormatFloat(ev.Commanded, 'f', 3, 64) +
			" meas " + strconv.FormatFloat(ev.Measured, 'f', 3, 64)
		if ev.Overdue {
			msg += " overdue"
		}
		d.writer(msg)
	}
}

// History returns the recorded comparisons, oldest first.
func (d *Debug) History() []CheckEvent {
	out := make([]CheckEvent, 0, d.ringLen)
	start := (d.ringHead + checkRingSize - d.ringLen) % checkRingSize
	for i := uint8(0); i < d.ringLen; i++ {
		out = append(out, d.ring[(start+i)%checkRingSize])
	}
	return out
}
