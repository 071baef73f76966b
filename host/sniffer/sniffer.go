// Package sniffer reads sensor line events from the bench sniffer
// dongle. The dongle sits passively on the sensor data line and streams
// one 3-byte record per event over USB serial.
package sniffer

import (
	"fmt"
	"io"

	"magmon/host/serial"
)

// Record kinds as sent by the dongle.
const (
	KindWord     = 'W' // complete 16-bit word, little-endian payload
	KindFraming  = 'F' // word aborted partway, payload is bits received
	KindStartBit = 'S' // start-bit edge, payload is a dongle-local ms stamp
)

// Record is one decoded dongle event.
type Record struct {
	Kind  byte
	Value uint16
}

// Sniffer wraps the serial connection to the dongle.
type Sniffer struct {
	port serial.Port

	// resyncs counts bytes skipped while hunting for a record boundary
	// after line noise or a partial read at connect time.
	resyncs uint32
}

// Open connects to the dongle on the given serial device.
func Open(device string) (*Sniffer, error) {
	return OpenWithConfig(serial.DefaultConfig(device))
}

// OpenWithConfig connects with a custom serial config.
func OpenWithConfig(cfg *serial.Config) (*Sniffer, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sniffer port: %w", err)
	}
	return New(port), nil
}

// New wraps an already open port. Used by tests with a mock port.
func New(port serial.Port) *Sniffer {
	return &Sniffer{port: port}
}

// Close closes the serial connection.
func (s *Sniffer) Close() error {
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}

// Resyncs returns the number of bytes discarded while resynchronizing
// on the record stream.
func (s *Sniffer) Resyncs() uint32 {
	return s.resyncs
}

// ReadRecord reads the next record, skipping bytes until a valid record
// type appears. Returns io.EOF when the dongle disconnects.
func (s *Sniffer) ReadRecord() (Record, error) {
	var kind [1]byte
	for {
		if _, err := io.ReadFull(s.port, kind[:]); err != nil {
			return Record{}, err
		}
		switch kind[0] {
		case KindWord, KindFraming, KindStartBit:
		default:
			s.resyncs++
			continue
		}

		var payload [2]byte
		if _, err := io.ReadFull(s.port, payload[:]); err != nil {
			return Record{}, fmt.Errorf("short record %c: %w", kind[0], err)
		}
		return Record{
			Kind:  kind[0],
			Value: uint16(payload[0]) | uint16(payload[1])<<8,
		}, nil
	}
}
