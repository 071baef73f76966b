// Package replay drives a filament monitor from recorded sensor events
// on the host. It exists for bench debugging: a capture taken with the
// sniffer dongle (or written by hand) can be fed through the exact
// monitor code that runs on the target, with a manual clock standing in
// for the hardware tick.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"magmon/core"
	"magmon/protocol"
)

// Transition records a change in the reported filament status.
type Transition struct {
	Millis uint32
	From   core.FilamentStatus
	To     core.FilamentStatus
}

// Session owns a monitor instance plus the simulated clock and print
// state it runs against.
type Session struct {
	buf    *protocol.WordBuffer
	clock  *core.ManualClock
	motion *core.PrintState
	mon    *core.MagnetMonitor

	lastStatus  core.FilamentStatus
	transitions []Transition
	ticks       int
}

// NewSession creates a session for the given monitor type and
// configuration.
func NewSession(monitorType uint8, cfg core.MonitorConfig) *Session {
	s := &Session{
		buf:        protocol.NewWordBuffer(),
		clock:      &core.ManualClock{},
		motion:     &core.PrintState{},
		lastStatus: core.StatusOK,
	}
	s.mon = core.NewMagnetMonitor(monitorType, s.buf, s.clock, s.motion)
	s.mon.Configure(cfg)
	return s
}

// Monitor exposes the monitor under replay for status queries.
func (s *Session) Monitor() *core.MagnetMonitor {
	return s.mon
}

// StartBit marks the leading edge of a sensor word, as the dongle's 'S'
// record does. The word itself follows via Word or FramingError.
func (s *Session) StartBit() {
	s.buf.NoteStartBit()
}

// Word completes a received 16-bit word.
func (s *Session) Word(w uint16) {
	s.buf.CompleteWord(w)
}

// FramingError aborts the word in flight.
func (s *Session) FramingError() {
	s.buf.AbortWord()
}

// Wait advances the simulated clock.
func (s *Session) Wait(ms uint32) {
	s.clock.Advance(ms)
}

// AdvanceTo moves the simulated clock to an absolute millisecond value.
// Live mode uses it to slave the session clock to wall time.
func (s *Session) AdvanceTo(ms uint32) {
	s.clock.Set(ms)
}

// SetPrinting flips the extruder printing state at the current time.
func (s *Session) SetPrinting(printing bool) {
	s.motion.SetPrinting(printing, s.clock.Millis())
}

// Tick runs one monitor check with the given commanded extrusion and
// records any status transition.
func (s *Session) Tick(extrusion float64) core.FilamentStatus {
	status := s.mon.Check(s.motion.IsPrinting(), true, s.clock.Millis(), extrusion)
	s.ticks++
	if status != s.lastStatus {
		s.transitions = append(s.transitions, Transition{
			Millis: s.clock.Millis(),
			From:   s.lastStatus,
			To:     status,
		})
		s.lastStatus = status
	}
	return status
}

// Status returns the status reported by the most recent Tick.
func (s *Session) Status() core.FilamentStatus {
	return s.lastStatus
}

// Transitions returns the status transitions seen so far.
func (s *Session) Transitions() []Transition {
	return s.transitions
}

// Ticks returns the number of checks run.
func (s *Session) Ticks() int {
	return s.ticks
}

// Run parses a scenario script and applies it to the session.
//
// Scenario format, one op per line ('#' starts a comment):
//
//	start            leading edge of a sensor word
//	word <hex>       complete a 16-bit word
//	frame            framing error, aborts the word in flight
//	tick <mm>        one monitor check with commanded extrusion
//	wait <ms>        advance the clock
//	print on|off     extruder printing state
func Run(r io.Reader, s *Session) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if err := applyOp(s, fields); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	return scanner.Err()
}

func applyOp(s *Session, fields []string) error {
	op := fields[0]

	arg := func() (string, error) {
		if len(fields) != 2 {
			return "", fmt.Errorf("%s takes exactly one argument", op)
		}
		return fields[1], nil
	}

	switch op {
	case "start":
		s.StartBit()

	case "word":
		a, err := arg()
		if err != nil {
			return err
		}
		w, err := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 16)
		if err != nil {
			return fmt.Errorf("bad word %q: %w", a, err)
		}
		s.Word(uint16(w))

	case "frame":
		s.FramingError()

	case "tick":
		a, err := arg()
		if err != nil {
			return err
		}
		mm, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("bad extrusion %q: %w", a, err)
		}
		s.Tick(mm)

	case "wait":
		a, err := arg()
		if err != nil {
			return err
		}
		ms, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return fmt.Errorf("bad wait %q: %w", a, err)
		}
		s.Wait(uint32(ms))

	case "print":
		a, err := arg()
		if err != nil {
			return err
		}
		switch a {
		case "on":
			s.SetPrinting(true)
		case "off":
			s.SetPrinting(false)
		default:
			return fmt.Errorf("print takes on or off, got %q", a)
		}

	default:
		return fmt.Errorf("unknown op %q", op)
	}

	return nil
}
