//go:build rp2040

package main

import (
	"machine"
	"sync/atomic"
	"time"

	"magmon/core"
	"magmon/protocol"
	"magmon/targets/pio"
)

const (
	sensorPin       = machine.GPIO2 // sensor data line
	extruderStepPin = machine.GPIO3 // step pulses tapped from the extruder driver
	ledPin          = machine.LED

	// Nominal bit clock of the sensor data line
	sensorBitRate = 1000

	// E steps per mm of the printer the board is tapped into
	extruderStepsPerMM = 420.0

	// The extruder counts as printing while step pulses keep arriving;
	// after this long without one it is idle.
	printingTimeoutMillis = 1000

	// How often the main loop prints the diagnostics line
	reportIntervalMillis = 10000
)

var (
	words   = protocol.NewWordBuffer()
	clock   hardwareClock
	motion  core.PrintState
	monitor *core.MagnetMonitor

	// Written from pin interrupts, read from the control loop
	stepCount       uint32
	startBitPending uint32
	startBitMillis  uint32
)

func main() {
	// Disable the watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	led := ledPin
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	receiver := pio.NewSensorReceiver(0, 0)
	if err := receiver.Init(sensorPin, sensorBitRate); err != nil {
		blinkForever(led)
	}

	monitor = core.NewMagnetMonitor(core.TypeRotatingMagnetWithSwitch, words, clock, &motion)
	cfg := core.DefaultMonitorConfig()
	cfg.ComparisonEnabled = true
	monitor.Configure(cfg)
	monitor.Debug().SetWriter(func(msg string) {
		println(msg)
	})

	// The PIO assembles whole words; this interrupt only exists to
	// timestamp the start-bit edge for extrusion sync.
	err = sensorPin.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		if atomic.LoadUint32(&startBitPending) == 0 {
			atomic.StoreUint32(&startBitMillis, clock.Millis())
			atomic.StoreUint32(&startBitPending, 1)
		}
	})
	if err != nil {
		blinkForever(led)
	}

	extruderStepPin.Configure(machine.PinConfig{Mode: machine.PinInput})
	err = extruderStepPin.SetInterrupt(machine.PinRising, func(machine.Pin) {
		atomic.AddUint32(&stepCount, 1)
	})
	if err != nil {
		blinkForever(led)
	}

	controlLoop(receiver, led)
}

// controlLoop runs the monitor at roughly 1kHz.
func controlLoop(receiver *pio.SensorReceiver, led machine.Pin) {
	var (
		lastStep       uint32
		lastStepMillis uint32
		lastReport     uint32
		lastStatus     = core.StatusOK
	)

	for {
		receiver.Drain(words)

		now := clock.Millis()

		steps := atomic.LoadUint32(&stepCount)
		delta := steps - lastStep
		lastStep = steps
		if delta != 0 {
			lastStepMillis = now
			motion.SetPrinting(true, now)
		} else if motion.IsPrinting() && now-lastStepMillis > printingTimeoutMillis {
			motion.SetPrinting(false, now)
		}

		fromCapture := false
		captureMillis := now
		if atomic.LoadUint32(&startBitPending) != 0 {
			captureMillis = atomic.LoadUint32(&startBitMillis)
			atomic.StoreUint32(&startBitPending, 0)
			fromCapture = true
		}

		status := monitor.Check(motion.IsPrinting(), fromCapture, captureMillis,
			float64(delta)/extruderStepsPerMM)
		if status != lastStatus {
			println("filament:", status.String())
			lastStatus = status
		}
		led.Set(status.AnyError())

		if now-lastReport >= reportIntervalMillis {
			println(monitor.Diagnostics(0))
			lastReport = now
		}

		// Yield to the scheduler until the next tick
		time.Sleep(1 * time.Millisecond)
	}
}

// blinkForever signals an unrecoverable init failure on the LED.
func blinkForever(led machine.Pin) {
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
