package protocol

// PollResult is the outcome of polling the capture layer for one word.
type PollResult uint8

const (
	// PollIncomplete means no complete word is available yet.
	PollIncomplete PollResult = iota
	// PollComplete delivers a fully received 16-bit word.
	PollComplete
	// PollFramingError means reception of a word failed partway through.
	PollFramingError
)

// CaptureStats carries the error counters owned by the capture layer.
type CaptureStats struct {
	Overruns       uint32 // words dropped because the buffer was full
	PolarityErrors uint32 // line idle-state glitches seen by the receiver
}

// Capture is the polling contract with the bit-capture front end that turns
// sensor line transitions into 16-bit words. The front end owns its own
// buffering and is typically fed from an interrupt or a PIO FIFO; the
// monitor only ever pulls from it, once per control tick, so no locking is
// needed on the consumer side.
type Capture interface {
	// InitBuffer discards any buffered words and resets reception state.
	InitBuffer()

	// PollWord returns the next buffered word, or a framing-error
	// indication, or PollIncomplete when nothing is pending. Never blocks.
	PollWord() (uint16, PollResult)

	// IsAwaitingStartBit reports whether the front end is idle between
	// words. Only then is a start-bit timestamp a trustworthy sync anchor.
	IsAwaitingStartBit() bool

	// IsReceiving reports whether a word is currently being received.
	IsReceiving() bool

	// Stats returns the front end's own error counters.
	Stats() CaptureStats
}

// wordBufferSize must be a power of two. Words are short and polled every
// tick, so a small ring is plenty.
const wordBufferSize = 32

type wordEvent struct {
	word    uint16
	framing bool
}

// WordBuffer is a single-producer single-consumer Capture implementation.
// The producer side (an ISR, a PIO drain loop, or the host replay session)
// calls NoteStartBit/CompleteWord/AbortWord; the monitor polls the other
// end. Head and tail only ever advance, one side each, so the ring is safe
// without locks for one producer and one consumer.
type WordBuffer struct {
	events [wordBufferSize]wordEvent
	head   uint32 // consumer index
	tail   uint32 // producer index

	receiving bool

	overruns       uint32
	polarityErrors uint32
}

// NewWordBuffer returns an empty buffer in the awaiting-start-bit state.
func NewWordBuffer() *WordBuffer {
	return &WordBuffer{}
}

// InitBuffer discards buffered words and reception state. Error counters
// are kept; they are lifetime diagnostics.
func (b *WordBuffer) InitBuffer() {
	b.head = b.tail
	b.receiving = false
}

// PollWord implements Capture.
func (b *WordBuffer) PollWord() (uint16, PollResult) {
	if b.head == b.tail {
		return 0, PollIncomplete
	}
	ev := b.events[b.head%wordBufferSize]
	b.head++
	if ev.framing {
		return 0, PollFramingError
	}
	return ev.word, PollComplete
}

// IsAwaitingStartBit implements Capture.
func (b *WordBuffer) IsAwaitingStartBit() bool {
	return !b.receiving
}

// IsReceiving implements Capture.
func (b *WordBuffer) IsReceiving() bool {
	return b.receiving
}

// Stats implements Capture.
func (b *WordBuffer) Stats() CaptureStats {
	return CaptureStats{Overruns: b.overruns, PolarityErrors: b.polarityErrors}
}

// NoteStartBit marks the beginning of word reception. Producer side.
func (b *WordBuffer) NoteStartBit() {
	b.receiving = true
}

// CompleteWord enqueues a fully received word. Producer side.
func (b *WordBuffer) CompleteWord(word uint16) {
	b.push(wordEvent{word: word})
	b.receiving = false
}

// AbortWord enqueues a framing-error indication for a word whose reception
// failed. Producer side.
func (b *WordBuffer) AbortWord() {
	b.push(wordEvent{framing: true})
	b.receiving = false
}

// NotePolarityError counts a line polarity glitch. Producer side.
func (b *WordBuffer) NotePolarityError() {
	b.polarityErrors++
}

func (b *WordBuffer) push(ev wordEvent) {
	if b.tail-b.head >= wordBufferSize {
		b.overruns++
		return
	}
	b.events[b.tail%wordBufferSize] = ev
	b.tail++
}
