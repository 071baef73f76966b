package core

// FilamentStatus is the verdict returned by a filament monitor check.
type FilamentStatus uint8

const (
	StatusOK FilamentStatus = iota
	StatusNoDataReceived
	StatusNoFilament
	StatusTooLittleMovement
	StatusTooMuchMovement
	StatusSensorError
)

// AnyError reports whether the status should stop or pause a print.
func (s FilamentStatus) AnyError() bool {
	return s != StatusOK
}

func (s FilamentStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoDataReceived:
		return "no data received"
	case StatusNoFilament:
		return "no filament"
	case StatusTooLittleMovement:
		return "too little movement"
	case StatusTooMuchMovement:
		return "too much movement"
	case StatusSensorError:
		return "sensor error"
	}
	return "unknown"
}
