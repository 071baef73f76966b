package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing, see replay package)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC dongles ignore this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the default configuration for the sniffer dongle
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200, // Sniffer dongle baud rate
		ReadTimeout: 100,    // 100ms read timeout
	}
}
