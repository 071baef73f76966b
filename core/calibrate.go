package core

// monitorState is the calibration/comparison phase of a monitor. The only
// way back from comparing is a full reconfiguration.
type monitorState uint8

const (
	stateIdle monitorState = iota
	stateCalibrating
	stateComparing
)

func (s monitorState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCalibrating:
		return "calibrating"
	case stateComparing:
		return "comparing"
	}
	return "unknown"
}

// checkFilament consumes one flushed segment: it feeds the calibration
// totals and, once calibrated, compares the segment's movement ratio
// against the allowed range. amountCommanded is mm of extrusion,
// amountMeasured revolutions of the magnet.
func (m *MagnetMonitor) checkFilament(amountCommanded, amountMeasured float64, overdue bool) FilamentStatus {
	if !m.dataReceived {
		return StatusNoDataReceived
	}

	ret := StatusOK
	rawCommanded, rawMeasured := amountCommanded, amountMeasured

	switch m.state {
	case stateIdle, stateCalibrating:
		if m.state == stateIdle {
			m.state = stateCalibrating
			m.totalExtrusionCommanded = amountCommanded
			m.totalMovementMeasured = amountMeasured
		} else {
			m.totalExtrusionCommanded += amountCommanded
			m.totalMovementMeasured += amountMeasured
		}
		if m.totalExtrusionCommanded >= calibrationMinLength {
			// Enough data to trust the learned sensitivity. Latch the
			// rotation direction so later segments compare sign-corrected.
			m.backwards = m.totalMovementMeasured < 0
			if m.backwards {
				m.totalMovementMeasured = -m.totalMovementMeasured
			}
			ratio := m.totalMovementMeasured / m.totalExtrusionCommanded
			m.minMovementRatio = ratio
			m.maxMovementRatio = ratio
			if m.cfg.ComparisonEnabled {
				ret = m.compareRatio(ratio)
			}
			m.state = stateComparing
		}

	case stateComparing:
		m.totalExtrusionCommanded += amountCommanded
		if m.backwards {
			amountMeasured = -amountMeasured
		}
		m.totalMovementMeasured += amountMeasured
		ratio := amountMeasured / amountCommanded
		// The observed band only ever widens.
		if ratio > m.maxMovementRatio {
			m.maxMovementRatio = ratio
		} else if ratio < m.minMovementRatio {
			m.minMovementRatio = ratio
		}
		if m.cfg.ComparisonEnabled {
			ret = m.compareRatio(ratio)
		}
	}

	m.debug.RecordCheck(CheckEvent{
		Millis:    m.clock.Millis(),
		Commanded: rawCommanded,
		Measured:  rawMeasured,
		Overdue:   overdue,
		Status:    ret,
	})
	return ret
}

// compareRatio scales a revolutions-per-mm ratio by the configured
// sensitivity and tests it against the allowed movement range.
func (m *MagnetMonitor) compareRatio(ratio float64) FilamentStatus {
	ratio *= m.cfg.MmPerRev
	if ratio < m.cfg.MinMovementAllowed {
		return StatusTooLittleMovement
	}
	if ratio > m.cfg.MaxMovementAllowed {
		return StatusTooMuchMovement
	}
	return StatusOK
}
