package deepdub

import (
	"iter"
	"sync"
)

// assembler accumulates ordered audio chunks into a forward-only stream.
//
// Chunks must arrive in strictly increasing sequence order starting at 0;
// a gap is data loss on the wire and is rejected with *OrderingError,
// leaving the buffer unchanged. Accept never blocks. Drain consumes
// chunks as they arrive and terminates after finalize or a terminal
// error, replaying nothing already consumed.
type assembler struct {
	mu        sync.Mutex
	queue     [][]byte
	next      uint64
	chunks    uint64
	bytes     int64
	finalized bool
	err       error

	notify   chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

func newAssembler() *assembler {
	return &assembler{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// accept appends an audio-chunk frame's payload at the position implied
// by its sequence number. Frames without an explicit sequence number are
// taken in arrival order.
func (a *assembler) accept(f *Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return &ProtocolError{Reason: "audio chunk after stream finalized"}
	}
	if a.err != nil {
		return a.err
	}
	if f.HasSeq && f.Seq != a.next {
		return &OrderingError{Expected: a.next, Got: f.Seq}
	}

	a.queue = append(a.queue, f.Payload)
	a.next++
	a.chunks++
	a.bytes += int64(len(f.Payload))

	select {
	case a.notify <- struct{}{}:
	default:
	}
	return nil
}

// finalize marks the stream complete. Buffered chunks remain drainable.
func (a *assembler) finalize() {
	a.mu.Lock()
	a.finalized = true
	a.mu.Unlock()
	a.doneOnce.Do(func() { close(a.done) })
}

// fail terminates the stream with err. Chunks accepted before the
// failure are still delivered, then err.
func (a *assembler) fail(err error) {
	a.mu.Lock()
	if a.err == nil && !a.finalized {
		a.err = err
	}
	a.mu.Unlock()
	a.doneOnce.Do(func() { close(a.done) })
}

// nextSeq returns the sequence number the assembler expects next.
func (a *assembler) nextSeq() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// stats returns the accepted chunk and byte counts.
func (a *assembler) stats() (chunks uint64, bytes int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chunks, a.bytes
}

// drain yields chunks in order as they become available. It blocks
// between chunks, ends after the final chunk once finalized, and ends
// with the terminal error if the stream failed.
func (a *assembler) drain() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			a.mu.Lock()
			if len(a.queue) > 0 {
				chunk := a.queue[0]
				a.queue = a.queue[1:]
				a.mu.Unlock()
				if !yield(chunk, nil) {
					return
				}
				continue
			}
			finalized, err := a.finalized, a.err
			a.mu.Unlock()

			if err != nil {
				yield(nil, err)
				return
			}
			if finalized {
				return
			}

			select {
			case <-a.notify:
			case <-a.done:
			}
		}
	}
}
