package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"magmon/host/logging"
	"magmon/host/replay"
	"magmon/host/serial"
	"magmon/host/sniffer"
)

var (
	configPath = flag.String("config", "", "TOML config file")
	scenario   = flag.String("replay", "", "Replay a recorded scenario file instead of going live")
	device     = flag.String("device", "/dev/ttyACM0", "Sniffer dongle serial device")
	baud       = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	debug      = flag.Bool("debug", false, "Enable monitor debug prints")
	logfile    = flag.String("logfile", "", "Rotating log file path")
)

func main() {
	flag.Parse()

	cfg := replay.DefaultConfig()
	if *configPath != "" {
		loaded, err := replay.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags override the config file.
	if *scenario != "" {
		cfg.Replay.Scenario = *scenario
	}
	if *debug {
		cfg.Replay.Debug = true
	}
	if *logfile != "" {
		cfg.Replay.Logfile = *logfile
	}

	level := logging.InfoLevel
	if cfg.Replay.Debug {
		level = logging.DebugLevel
	}
	logging.Init(level, cfg.Replay.Logfile)
	defer logging.Sync()

	session := replay.NewSession(cfg.Monitor.Type, cfg.MonitorConfig())
	if cfg.Replay.Debug {
		session.Monitor().Debug().SetWriter(func(msg string) {
			logging.Debugf("%s", msg)
		})
		session.Monitor().Debug().SetEnabled(true)
	}

	var err error
	if cfg.Replay.Scenario != "" {
		err = runReplay(session, cfg.Replay.Scenario)
	} else {
		err = runLive(session, *device, *baud)
	}
	if err != nil {
		logging.Errorf("%v", err)
		logging.Sync()
		os.Exit(1)
	}
}

func runReplay(session *replay.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()

	logging.Infof("replaying %s", path)
	if err := replay.Run(f, session); err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	for _, tr := range session.Transitions() {
		logging.Infof("t=%dms status %s -> %s", tr.Millis, tr.From, tr.To)
	}
	logging.Infof("%d checks, final status %s", session.Ticks(), session.Status())

	mon := session.Monitor()
	fmt.Println(mon.Report())
	fmt.Println(mon.Diagnostics(0))
	return nil
}

func runLive(session *replay.Session, device string, baud int) error {
	scfg := serial.DefaultConfig(device)
	scfg.Baud = baud
	scfg.ReadTimeout = 0 // block; a reader goroutine owns the port

	sn, err := sniffer.OpenWithConfig(scfg)
	if err != nil {
		return err
	}
	defer sn.Close()

	logging.Infof("listening on %s", device)

	records := make(chan sniffer.Record, 64)
	go func() {
		defer close(records)
		for {
			rec, err := sn.ReadRecord()
			if err != nil {
				logging.Errorf("dongle read: %v", err)
				return
			}
			records <- rec
		}
	}()

	start := time.Now()
	check := time.NewTicker(100 * time.Millisecond)
	defer check.Stop()
	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

	lastStatus := session.Status()
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			session.AdvanceTo(uint32(time.Since(start).Milliseconds()))
			switch rec.Kind {
			case sniffer.KindStartBit:
				session.StartBit()
			case sniffer.KindWord:
				session.Word(rec.Value)
			case sniffer.KindFraming:
				session.FramingError()
			}

		case <-check.C:
			session.AdvanceTo(uint32(time.Since(start).Milliseconds()))
			// No commanded extrusion on the bench; the session acts as a
			// live decoder and health view for the sensor line.
			if status := session.Tick(0); status != lastStatus {
				logging.Infof("status %s -> %s", lastStatus, status)
				lastStatus = status
			}

		case <-report.C:
			mon := session.Monitor()
			logging.Infof("pos %.1f deg, %s", mon.CurrentPosition(), mon.Diagnostics(0))
		}
	}
}
