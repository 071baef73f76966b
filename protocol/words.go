// Package protocol implements the Duet3D rotating magnet sensor wire protocol
package protocol

// The sensor reports position over a one-wire bit stream as 16-bit words.
// Three generations of sensor firmware are in the field:
//
// Version 1 sensor:
//
//	Data word:      0S00 00pp pppppppp    S = switch open, p = 10-bit position
//	Error word:     1000 0000 00000000
//
// Version 2 sensor:
//
//	Data word:      P00S 10pp pppppppp    S = switch open, p = 10-bit position
//	Error word:     P010 0000 0000eeee    eeee = error code
//	Version word:   P110 0000 vvvvvvvv    vvvvvvvv = sensor version, at least 2
//
// Version 3 firmware adds two info words:
//
//	Magnitude word: P110 0010 mmmmmmmm    mmmmmmmm = high 8 bits of magnitude
//	AGC word:       P110 0011 aaaaaaaa    aaaaaaaa = AGC setting
//
// P is an even parity bit over the whole word.
const (
	AngleMask  = 0x03FF // 10-bit magnet angle in every position word
	AngleRange = 1024

	PayloadMask = 0x00FF // low-byte payload of error/info words

	// Version 1 word layout
	V1ErrorWord       = 0x8000 // exact match, no payload
	V1SwitchOpenMask  = 0x4000
	V1PositionMask    = 0xBC00 // all of these bits clear in a v1 data word
	V1VersionMask     = 0x7F00
	V1VersionValue    = 0x6000 // with even parity and payload >= 2
	V1MinVersionValue = 2

	// Version 2+ word layout
	V2SwitchOpenMask      = 0x1000
	V2MessageTypeMask     = 0x6C00
	V2MessageTypePosition = 0x0800
	V2MessageTypeError    = 0x2000
	V2MessageTypeInfo     = 0x6000
	V2InfoTypeMask        = 0x0F00
	V2InfoTypeVersion     = 0x0000
	V3InfoTypeMagnitude   = 0x0200
	V3InfoTypeAgc         = 0x0300

	ParityBit = 0x8000
)

// MessageType classifies a version 2+ word.
type MessageType uint8

const (
	MsgUnknown MessageType = iota
	MsgPosition
	MsgError
	MsgInfo
)

// InfoType classifies the sub-type of a version 2+ info word.
type InfoType uint8

const (
	InfoUnknown InfoType = iota
	InfoVersion
	InfoMagnitude
	InfoAgc
)

// ParityOK reports whether a word passes the even-parity check. The two
// bytes are XOR-folded together and the result folded nibble to bit.
func ParityOK(word uint16) bool {
	b := uint8(word>>8) ^ uint8(word)
	b ^= b >> 4
	b ^= b >> 2
	b ^= b >> 1
	return b&1 == 0
}

// WithParity returns the word with its parity bit set so that ParityOK
// holds. Used when synthesizing version 2+ words for simulation and tests.
func WithParity(word uint16) uint16 {
	if !ParityOK(word) {
		word ^= ParityBit
	}
	return word
}

// Angle extracts the 10-bit magnet angle from a position word.
func Angle(word uint16) uint16 {
	return word & AngleMask
}

// Payload extracts the low-byte payload of an error, version or info word.
func Payload(word uint16) uint8 {
	return uint8(word & PayloadMask)
}

// Classify returns the message type of a version 2+ word. The caller is
// expected to have checked parity already.
func Classify(word uint16) MessageType {
	switch word & V2MessageTypeMask {
	case V2MessageTypePosition:
		return MsgPosition
	case V2MessageTypeError:
		return MsgError
	case V2MessageTypeInfo:
		return MsgInfo
	}
	return MsgUnknown
}

// ClassifyInfo returns the sub-type of a version 2+ info word.
func ClassifyInfo(word uint16) InfoType {
	switch word & V2InfoTypeMask {
	case V2InfoTypeVersion:
		return InfoVersion
	case V3InfoTypeMagnitude:
		return InfoMagnitude
	case V3InfoTypeAgc:
		return InfoAgc
	}
	return InfoUnknown
}

// IsV1Position reports whether a word is a valid version 1 data word.
func IsV1Position(word uint16) bool {
	return word&V1PositionMask == 0
}

// IsV1Version reports whether a word is a version announcement received
// while still assuming a version 1 sensor.
func IsV1Version(word uint16) bool {
	return ParityOK(word) && word&V1VersionMask == V1VersionValue &&
		Payload(word) >= V1MinVersionValue
}

// AngleDelta returns the signed shortest-path angle change between two
// position words, in the range -511..512. A wheel cannot move more than
// half a revolution between consecutive reports, so the shorter direction
// is always the real one.
func AngleDelta(prev, cur uint16) int32 {
	change := (cur - prev) & AngleMask
	if change <= AngleRange/2 {
		return int32(change)
	}
	return int32(change) - AngleRange
}

// Word constructors for the host simulator and tests. All version 2+ words
// come back with correct parity.

// PositionWord builds a version 2+ data word.
func PositionWord(angle uint16, switchOpen bool) uint16 {
	w := V2MessageTypePosition | (angle & AngleMask)
	if switchOpen {
		w |= V2SwitchOpenMask
	}
	return WithParity(w)
}

// ErrorWord builds a version 2+ error word.
func ErrorWord(code uint8) uint16 {
	return WithParity(V2MessageTypeError | uint16(code))
}

// VersionWord builds a version announcement word.
func VersionWord(version uint8) uint16 {
	return WithParity(V2MessageTypeInfo | V2InfoTypeVersion | uint16(version))
}

// MagnitudeWord builds a version 3 magnitude info word.
func MagnitudeWord(magnitude uint8) uint16 {
	return WithParity(V2MessageTypeInfo | V3InfoTypeMagnitude | uint16(magnitude))
}

// AgcWord builds a version 3 AGC info word.
func AgcWord(agc uint8) uint16 {
	return WithParity(V2MessageTypeInfo | V3InfoTypeAgc | uint16(agc))
}

// V1PositionWord builds a legacy data word.
func V1PositionWord(angle uint16, switchOpen bool) uint16 {
	w := angle & AngleMask
	if switchOpen {
		w |= V1SwitchOpenMask
	}
	return w
}
