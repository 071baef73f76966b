//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareUptime reads the full 64-bit RP2040 hardware timer.
// The timer counts microseconds at 1MHz.
func GetHardwareUptime() uint64 {
	// Read both high and low parts
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		// If high didn't change, we got a consistent reading
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
		// Otherwise retry (rollover happened during read)
	}
}

// hardwareClock exposes the hardware timer as a millisecond clock. The
// monitor tolerates the uint32 wrap, which occurs after 49.7 days.
type hardwareClock struct{}

func (hardwareClock) Millis() uint32 {
	return uint32(GetHardwareUptime() / 1000)
}
