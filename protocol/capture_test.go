package protocol

import "testing"

func TestWordBufferPollOrder(t *testing.T) {
	b := NewWordBuffer()

	b.NoteStartBit()
	b.CompleteWord(0x0864)
	b.NoteStartBit()
	b.AbortWord()
	b.NoteStartBit()
	b.CompleteWord(0x0865)

	w, res := b.PollWord()
	if res != PollComplete || w != 0x0864 {
		t.Fatalf("first poll = (%04X, %d), want (0864, complete)", w, res)
	}
	if _, res = b.PollWord(); res != PollFramingError {
		t.Fatalf("second poll = %d, want framing error", res)
	}
	w, res = b.PollWord()
	if res != PollComplete || w != 0x0865 {
		t.Fatalf("third poll = (%04X, %d), want (0865, complete)", w, res)
	}
	if _, res = b.PollWord(); res != PollIncomplete {
		t.Fatalf("empty poll = %d, want incomplete", res)
	}
}

func TestWordBufferReceptionState(t *testing.T) {
	b := NewWordBuffer()
	if !b.IsAwaitingStartBit() || b.IsReceiving() {
		t.Fatal("new buffer should be awaiting a start bit")
	}

	b.NoteStartBit()
	if b.IsAwaitingStartBit() || !b.IsReceiving() {
		t.Fatal("buffer should be receiving after a start bit")
	}

	b.CompleteWord(0x1234)
	if !b.IsAwaitingStartBit() {
		t.Fatal("buffer should be idle after a completed word")
	}

	b.NoteStartBit()
	b.AbortWord()
	if !b.IsAwaitingStartBit() {
		t.Fatal("buffer should be idle after an aborted word")
	}
}

func TestWordBufferOverrun(t *testing.T) {
	b := NewWordBuffer()
	for i := 0; i < wordBufferSize+3; i++ {
		b.CompleteWord(uint16(i))
	}

	if got := b.Stats().Overruns; got != 3 {
		t.Fatalf("overruns = %d, want 3", got)
	}

	// The buffered words survive; the overflowing ones are dropped.
	for i := 0; i < wordBufferSize; i++ {
		w, res := b.PollWord()
		if res != PollComplete || w != uint16(i) {
			t.Fatalf("poll %d = (%04X, %d), want (%04X, complete)", i, w, res, i)
		}
	}
	if _, res := b.PollWord(); res != PollIncomplete {
		t.Fatal("buffer should be empty after draining")
	}
}

func TestWordBufferInitKeepsCounters(t *testing.T) {
	b := NewWordBuffer()
	b.NotePolarityError()
	b.NoteStartBit()
	b.CompleteWord(0x0001)

	b.InitBuffer()

	if _, res := b.PollWord(); res != PollIncomplete {
		t.Fatal("InitBuffer should discard buffered words")
	}
	if b.IsReceiving() {
		t.Fatal("InitBuffer should reset reception state")
	}
	if got := b.Stats().PolarityErrors; got != 1 {
		t.Fatalf("polarity errors = %d, want 1 after InitBuffer", got)
	}
}
