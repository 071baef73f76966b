package core

import "magmon/protocol"

// handleIncomingData drains the capture front end and applies every word in
// arrival order, closing sync windows as position reports land.
func (m *MagnetMonitor) handleIncomingData() {
	for {
		val, res := m.capture.PollWord()
		if res == protocol.PollIncomplete {
			return
		}

		positionReport := false
		switch {
		case res != protocol.PollComplete:
			// Reception failed partway; whatever start bit we anchored on
			// belonged to a corrupt word.
			m.framingErrorCount++

		case m.version == 1:
			positionReport = m.applyLegacyWord(val)

		case !protocol.ParityOK(val):
			m.parityErrorCount++

		default:
			positionReport = m.applyWord(val)
		}

		if positionReport {
			m.applyPositionReport(val)
		}
		m.haveStartBitData = false
	}
}

// applyLegacyWord handles a word while still assuming a version 1 sensor.
// A version announcement promotes the protocol version for all later words.
func (m *MagnetMonitor) applyLegacyWord(val uint16) bool {
	switch {
	case protocol.IsV1Version(val):
		m.version = protocol.Payload(val)
		if m.switchOpenMask != 0 {
			// The switch-open bit moved between protocol versions.
			m.switchOpenMask = protocol.V2SwitchOpenMask
		}

	case val == protocol.V1ErrorWord:
		m.sensorError = true
		m.lastErrorCode = 0

	case protocol.IsV1Position(val):
		m.dataReceived = true
		m.sensorError = false
		return true
	}
	return false
}

// applyWord handles a parity-checked version 2+ word.
func (m *MagnetMonitor) applyWord(val uint16) bool {
	switch protocol.Classify(val) {
	case protocol.MsgPosition:
		m.dataReceived = true
		m.sensorError = false
		return true

	case protocol.MsgError:
		m.lastErrorCode = protocol.Payload(val)
		m.sensorError = m.lastErrorCode != 0

	case protocol.MsgInfo:
		switch protocol.ClassifyInfo(val) {
		case protocol.InfoVersion:
			m.version = protocol.Payload(val)
		case protocol.InfoMagnitude:
			m.magnitude = protocol.Payload(val)
		case protocol.InfoAgc:
			m.agc = protocol.Payload(val)
		}
	}
	return false
}

// applyPositionReport accumulates measured movement and, when a start-bit
// anchor is pending, closes the sync window it opened.
func (m *MagnetMonitor) applyPositionReport(val uint16) {
	movement := protocol.AngleDelta(m.sensorValue, val)
	m.movementMeasuredSinceLastSync += float64(movement) / protocol.AngleRange
	m.sensorValue = val
	m.lastMeasurementTime = m.clock.Millis()

	if !m.haveStartBitData {
		return
	}

	// The anchor ties everything commanded up to its capture instant to the
	// movement measured in this window.
	if m.synced {
		if m.cfg.CheckNonPrintingMoves ||
			(m.wasPrintingAtStartBit &&
				int32(m.lastSyncTime-m.motion.ExtruderPrintingSince()) >= syncDelayMillis) {
			m.extrusionCommandedThisSegment += m.extrusionCommandedAtCandidateStartBit
			m.movementMeasuredThisSegment += m.movementMeasuredSinceLastSync
		}
	}
	m.lastSyncTime = m.candidateStartBitTime
	m.extrusionCommandedSinceLastSync -= m.extrusionCommandedAtCandidateStartBit
	m.movementMeasuredSinceLastSync = 0
	m.synced = m.cfg.CheckNonPrintingMoves || m.wasPrintingAtStartBit
}
