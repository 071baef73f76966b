package core

// Monitor is the capability shared by all filament monitor variants. One
// instance watches one extruder; calls must be serialized by the control
// loop. Check runs once per control tick while printing, Clear when
// printing stops.
type Monitor interface {
	// Configure applies a validated configuration and reinitializes the
	// monitor.
	Configure(cfg MonitorConfig)

	// Check processes buffered sensor data and returns the tick's verdict.
	// fromCapture is true when a candidate start bit was observed since the
	// previous tick, with captureMillis its timestamp. filamentConsumed is
	// the net commanded extrusion in mm since the previous call.
	Check(isPrinting, fromCapture bool, captureMillis uint32, filamentConsumed float64) FilamentStatus

	// Clear resets measurement state when printing stops and returns the
	// instantaneous presence/error status.
	Clear() FilamentStatus

	// Diagnostics formats the monitor's counters for the given extruder.
	Diagnostics(extruder int) string
}
