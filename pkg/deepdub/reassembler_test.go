package deepdub

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func audioFrame(seq uint64, payload []byte) *Frame {
	return &Frame{Tag: FrameAudioChunk, Seq: seq, HasSeq: true, Payload: payload}
}

func TestAssemblerDrainConcatenation(t *testing.T) {
	a := newAssembler()

	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for i, payload := range want {
		if err := a.accept(audioFrame(uint64(i), payload)); err != nil {
			t.Fatalf("accept(%d) = %v", i, err)
		}
	}
	a.finalize()

	var got [][]byte
	for chunk, err := range a.drain() {
		if err != nil {
			t.Fatalf("drain yielded error: %v", err)
		}
		got = append(got, chunk)
	}

	if len(got) != len(want) {
		t.Fatalf("drained %d chunks, want %d", len(got), len(want))
	}
	if !bytes.Equal(bytes.Join(got, nil), bytes.Join(want, nil)) {
		t.Errorf("drained %q, want %q", bytes.Join(got, nil), bytes.Join(want, nil))
	}
}

func TestAssemblerSequenceGap(t *testing.T) {
	a := newAssembler()

	for i := range uint64(4) {
		if err := a.accept(audioFrame(i, []byte{byte(i)})); err != nil {
			t.Fatalf("accept(%d) = %v", i, err)
		}
	}

	// Last accepted is 3; skipping to 5 must fail and leave the buffer alone.
	err := a.accept(audioFrame(5, []byte{5}))
	var oe *OrderingError
	if !errors.As(err, &oe) {
		t.Fatalf("accept(5) = %v, want *OrderingError", err)
	}
	if oe.Expected != 4 || oe.Got != 5 {
		t.Errorf("OrderingError = expected %d got %d, want expected 4 got 5", oe.Expected, oe.Got)
	}

	chunks, bytesTotal := a.stats()
	if chunks != 4 || bytesTotal != 4 {
		t.Errorf("stats after rejected chunk = (%d, %d), want (4, 4)", chunks, bytesTotal)
	}
	if a.nextSeq() != 4 {
		t.Errorf("nextSeq = %d, want 4", a.nextSeq())
	}
}

func TestAssemblerAcceptAfterFinalize(t *testing.T) {
	a := newAssembler()
	if err := a.accept(audioFrame(0, []byte("x"))); err != nil {
		t.Fatalf("accept = %v", err)
	}
	a.finalize()

	err := a.accept(audioFrame(1, []byte("y")))
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("accept after finalize = %v, want *ProtocolError", err)
	}
}

func TestAssemblerImplicitSequencing(t *testing.T) {
	a := newAssembler()

	// Frames without explicit sequence numbers are taken in arrival order.
	for _, payload := range []string{"a", "b", "c"} {
		if err := a.accept(&Frame{Tag: FrameAudioChunk, Payload: []byte(payload)}); err != nil {
			t.Fatalf("accept = %v", err)
		}
	}
	if a.nextSeq() != 3 {
		t.Errorf("nextSeq = %d, want 3", a.nextSeq())
	}
}

func TestAssemblerDrainBlocksUntilChunk(t *testing.T) {
	a := newAssembler()

	got := make(chan []byte, 1)
	go func() {
		for chunk, err := range a.drain() {
			if err != nil {
				return
			}
			got <- chunk
			return
		}
	}()

	// Give the drainer a moment to block, then feed it.
	time.Sleep(10 * time.Millisecond)
	if err := a.accept(audioFrame(0, []byte("late"))); err != nil {
		t.Fatalf("accept = %v", err)
	}

	select {
	case chunk := <-got:
		if string(chunk) != "late" {
			t.Errorf("drained %q, want %q", chunk, "late")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not yield after accept")
	}
}

func TestAssemblerFailDeliversBufferedThenError(t *testing.T) {
	a := newAssembler()
	if err := a.accept(audioFrame(0, []byte("kept"))); err != nil {
		t.Fatalf("accept = %v", err)
	}
	wantErr := &ConnectionError{Op: "receive", Err: errors.New("boom")}
	a.fail(wantErr)

	var chunks [][]byte
	var finalErr error
	for chunk, err := range a.drain() {
		if err != nil {
			finalErr = err
			break
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 1 || string(chunks[0]) != "kept" {
		t.Errorf("drained chunks = %q, want [kept]", chunks)
	}
	if !errors.Is(finalErr, wantErr) {
		t.Errorf("terminal error = %v, want %v", finalErr, wantErr)
	}
}

func TestAssemblerFinalizeWins(t *testing.T) {
	a := newAssembler()
	a.finalize()
	a.fail(errors.New("too late"))

	for _, err := range a.drain() {
		if err != nil {
			t.Fatalf("drain after finalize yielded error: %v", err)
		}
	}
}
