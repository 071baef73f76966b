//go:build rp2040

package pio

// PIO receiver for the filament sensor data line using tinygo-org/pio.
// The sensor bit-bangs 16-bit words onto a single line, framed like a
// UART character: one low start bit, 16 data bits LSB first, one high
// stop bit. The state machine samples at 8 cycles per bit and pushes
// one FIFO entry per frame, leaving the CPU with nothing to do at bit
// level.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"magmon/protocol"
)

// PIO instruction encoding helpers
const (
	pioJMP  = 0x0000
	pioWAIT = 0x2000
	pioIN   = 0x4000
	pioPUSH = 0x8000
	pioSET  = 0xe000

	// JMP conditions
	jmpXNZeroDec = 0x0040

	// WAIT sources
	waitPin = 0x0020

	// IN sources
	inPins = 0x0000

	// SET targets
	setX = 0x0020
)

// buildReceiverProgram assembles the frame receiver.
//
// Word format in the RX FIFO (shift right, 17 bits pushed):
//
//	bits 15..30  data bits, first received lowest
//	bit  31      stop bit sample, low means a framing error
func buildReceiverProgram() []uint16 {
	return []uint16{
		// .wrap_target
		// wait 0 pin 0         ; start bit edge
		pioWAIT | waitPin | 0,
		// set x, 15 [10]       ; 16 data bits, delay to mid first bit
		pioSET | setX | 15 | 10<<8,
		// bitloop:
		// in pins, 1           ; sample at bit centre
		pioIN | inPins | 1,
		// jmp x--, bitloop [6] ; 8 cycles per bit
		pioJMP | jmpXNZeroDec | 2 | 6<<8,
		// in pins, 1           ; sample the stop bit too
		pioIN | inPins | 1,
		// push block
		pioPUSH | 0x0020,
		// .wrap
	}
}

// Load at offset 0 for correct jump addresses
const receiverOrigin = 0

// cyclesPerBit is fixed by the delays baked into the program.
const cyclesPerBit = 8

// SensorReceiver owns one PIO state machine configured as a sensor
// line receiver.
type SensorReceiver struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
}

// NewSensorReceiver binds a receiver to a PIO block and state machine.
// pioNum: 0 for PIO0, 1 for PIO1; smNum: 0-3.
func NewSensorReceiver(pioNum, smNum uint8) *SensorReceiver {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}

	return &SensorReceiver{
		pio: pioHW,
		sm:  pioHW.StateMachine(smNum),
	}
}

// Init loads the program and starts receiving on the given pin at the
// given bit rate.
func (r *SensorReceiver) Init(pin machine.Pin, bitRate uint32) error {
	r.pin = pin

	r.sm.TryClaim()

	program := buildReceiverProgram()
	offset, err := r.pio.AddProgram(program, receiverOrigin)
	if err != nil {
		return err
	}
	r.offset = offset

	pin.Configure(machine.PinConfig{Mode: r.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetInPins(pin)

	// Shift right so the LSB-first bit order lands in FIFO order;
	// autopush stays off, the program pushes once per frame.
	cfg.SetInShift(true, false, 32)

	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// 8 state machine cycles per sensor bit
	div := machine.CPUFrequency() / (bitRate * cyclesPerBit)
	cfg.SetClkDivIntFrac(uint16(div), 0)

	r.sm.Init(offset, cfg)
	r.sm.SetPindirsConsecutive(pin, 1, false) // sensor line = input
	r.sm.SetEnabled(true)

	return nil
}

// Drain moves every completed frame from the RX FIFO into the word
// buffer. Called from the control loop, never from an interrupt.
func (r *SensorReceiver) Drain(buf *protocol.WordBuffer) {
	for !r.sm.IsRxFIFOEmpty() {
		raw := r.sm.RxGet()
		if raw>>31 == 0 {
			// Stop bit sampled low, the frame is corrupt.
			buf.AbortWord()
			continue
		}
		buf.CompleteWord(uint16(raw >> 15))
	}
}

// Stop halts the state machine and discards pending frames.
func (r *SensorReceiver) Stop() {
	r.sm.SetEnabled(false)
	r.sm.ClearFIFOs()
	r.sm.Restart()
}
