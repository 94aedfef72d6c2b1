package deepdub

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StreamService opens bidirectional streaming synthesis sessions.
type StreamService struct {
	client *Client
}

func newStreamService(c *Client) *StreamService {
	return &StreamService{client: c}
}

// StreamSession is one streaming synthesis generation's lifetime: a
// persistent websocket carrying text in and ordered audio chunks out.
//
// The session owns at most one live connection. Transient connection
// faults are retried with bounded exponential backoff; on reconnect only
// the stream configuration is re-sent and the server is asked to resume
// from the next undelivered chunk. Fatal errors park the session in
// StateErrored with the cause retained.
//
//	session, err := client.Stream.OpenSession(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	session.SendText(ctx, "Hello, world!")
//	for chunk, err := range session.Recv() {
//	    if err != nil {
//	        return err
//	    }
//	    // process chunk.Data
//	}
type StreamSession struct {
	client *Client
	cfg    *StreamConfig
	id     string

	stripWAVHeader bool

	asm *assembler

	mu           sync.Mutex
	codec        codec
	state        SessionState
	conn         *wsConn
	err          error
	lastActivity time.Time

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	slotOnce  sync.Once
}

// OpenSession opens a streaming synthesis session: it reserves a session
// slot, dials the streaming endpoint, sends the stream configuration and
// waits for the server's acknowledgment before returning.
//
// Transient dial failures are retried within the configured budget;
// *AuthError and *ProtocolError abort immediately.
func (s *StreamService) OpenSession(ctx context.Context, cfg *StreamConfig) (*StreamSession, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	if err := s.client.acquireSessionSlot(ctx); err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	session := &StreamSession{
		client:       s.client,
		cfg:          cfg,
		id:           uuid.New().String(),
		asm:          newAssembler(),
		state:        StateIdle,
		lastActivity: time.Now(),
		ctx:          sessCtx,
		cancel:       cancel,
	}

	// The service streams complete wav chunks; headerless is a
	// client-side strip of the fixed header from each chunk.
	if cfg.Format == FormatHeaderlessWAV {
		session.stripWAVHeader = true
		wireCfg := *cfg
		wireCfg.Format = FormatWAV
		session.cfg = &wireCfg
	}

	session.transition(StateConnecting)
	if err := session.connect(ctx, 0); err != nil {
		session.fatal(err)
		return nil, err
	}
	session.transition(StateStreaming)

	go session.run()

	return session, nil
}

// GenerationID returns the session's generation identifier.
func (s *StreamSession) GenerationID() string {
	return s.id
}

// State returns the session's lifecycle state.
func (s *StreamSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the fatal error for a session in StateErrored, nil otherwise.
func (s *StreamSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns the accepted audio chunk and byte counts plus the last
// activity timestamp.
func (s *StreamSession) Stats() (chunks uint64, bytes int64, lastActivity time.Time) {
	chunks, bytes = s.asm.stats()
	s.mu.Lock()
	lastActivity = s.lastActivity
	s.mu.Unlock()
	return chunks, bytes, lastActivity
}

// SendText streams a chunk of text into the synthesis session.
func (s *StreamSession) SendText(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state != StateStreaming {
		state := s.state
		err := s.err
		s.mu.Unlock()
		if err != nil {
			return err
		}
		return &ConnectionError{Op: "send", Err: errors.New("session is " + state.String())}
	}
	frame, err := s.codec.encodeText(text)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	conn := s.conn
	s.lastActivity = time.Now()
	s.mu.Unlock()

	return conn.send(frame)
}

// Recv returns an iterator over the session's audio chunks, in order.
// It blocks between chunks, ends after the final chunk of a completed
// generation, and otherwise ends with the session's terminal error.
// Chunks are delivered exactly once; the iterator is not restartable.
func (s *StreamSession) Recv() iter.Seq2[*AudioChunk, error] {
	return func(yield func(*AudioChunk, error) bool) {
		var delivered uint64
		for payload, err := range s.asm.drain() {
			if err != nil {
				yield(nil, err)
				return
			}
			chunk := &AudioChunk{
				Data:         payload,
				Seq:          delivered,
				GenerationID: s.id,
			}
			delivered++
			if !yield(chunk, nil) {
				return
			}
		}
		s.markDrained()
	}
}

// Close cancels the session: the connection is torn down immediately,
// any blocked receive unblocks, and the session transitions to
// StateClosed. Safe to call repeatedly; a completed session stays
// completed.
func (s *StreamSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		if !s.state.terminal() {
			s.state = StateClosed
		}
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		if conn != nil {
			conn.close()
		}
		s.asm.fail(context.Canceled)
		s.releaseSlot()
	})
	return nil
}

// transition moves the session to a new state if the lifecycle graph
// allows it, reporting whether the move happened.
func (s *StreamSession) transition(to SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !transitionValid(s.state, to) {
		return false
	}
	s.state = to
	return true
}

// markDrained finishes the Draining state once all chunks reached the caller.
func (s *StreamSession) markDrained() {
	if s.transition(StateClosed) {
		s.releaseSlot()
	}
}

func (s *StreamSession) releaseSlot() {
	s.slotOnce.Do(s.client.releaseSessionSlot)
}

// fatal parks the session in StateErrored with err attached, tearing
// down the connection and failing the reassembler so consumers observe
// the error instead of a partial stream.
func (s *StreamSession) fatal(err error) {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	if !s.state.terminal() {
		s.state = StateErrored
		s.err = err
	}
	s.mu.Unlock()

	if conn != nil {
		conn.close()
	}
	s.asm.fail(err)
	s.releaseSlot()
}

// connect dials, sends the stream configuration and waits for the
// acknowledgment, retrying transient faults per the backoff schedule.
// resumeFrom is non-zero on reconnects and asks the server to resume
// from that chunk sequence.
func (s *StreamSession) connect(ctx context.Context, resumeFrom uint64) error {
	bo := newBackoff(s.client.config.limits)
	var lastErr error

	for {
		delay, ok := bo.next()
		if !ok {
			return &UnrecoverableError{Attempts: bo.attempts(), Err: lastErr}
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			case <-s.ctx.Done():
				return context.Canceled
			}
		}

		conn, err := s.client.dialWS(ctx, s.client.config.streamingURL)
		if err != nil {
			if retryableConn(err) {
				lastErr = err
				continue
			}
			return err // AuthError and anything non-transient
		}

		ackErr := s.handshake(conn, resumeFrom)
		if ackErr == nil {
			s.mu.Lock()
			s.conn = conn
			s.lastActivity = time.Now()
			s.mu.Unlock()
			return nil
		}

		conn.close()
		if retryableConn(ackErr) || errors.Is(ackErr, ErrEndOfStream) {
			lastErr = ackErr
			continue
		}
		if resumeFrom > 0 {
			if _, ok := AsError(ackErr); ok {
				// The server refused to resume a partially delivered
				// generation; already-acknowledged audio cannot be
				// replayed, so the caller must restart.
				return &UnrecoverableError{Attempts: bo.attempts(), Err: ackErr}
			}
		}
		return ackErr
	}
}

// handshake sends stream-config on a fresh connection and consumes the
// acknowledgment frame.
func (s *StreamSession) handshake(conn *wsConn, resumeFrom uint64) error {
	s.mu.Lock()
	frame, err := s.codec.encodeInit(s.cfg, s.id, resumeFrom)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := conn.send(frame); err != nil {
		return err
	}

	data, err := conn.receive()
	if err != nil {
		return err
	}
	ack, err := decodeFrame(data)
	if err != nil {
		return err
	}
	switch ack.Tag {
	case FrameError:
		return frameError(ack)
	case FrameAudioChunk:
		// Server started streaming without a separate ack.
		return s.dispatch(ack)
	default:
		return nil
	}
}

// run is the session's inbound pump: one goroutine reading frames off
// the connection and feeding the reassembler until the generation
// completes, the session is cancelled, or a fatal error occurs.
func (s *StreamSession) run() {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return // cancelled
		}

		data, err := conn.receive()
		if err != nil {
			if s.ctx.Err() != nil || s.State().terminal() {
				return
			}
			if s.State() == StateDraining {
				// Generation already completed; the close is expected.
				conn.close()
				return
			}
			if errors.Is(err, ErrEndOfStream) || retryableConn(err) {
				if rerr := s.reconnect(); rerr != nil {
					s.fatal(rerr)
					return
				}
				continue
			}
			s.fatal(err)
			return
		}

		frame, err := decodeFrame(data)
		if err != nil {
			s.fatal(err)
			return
		}

		s.mu.Lock()
		s.lastActivity = time.Now()
		s.mu.Unlock()

		if err := s.dispatch(frame); err != nil {
			s.fatal(err)
			return
		}
		if frame.Final || frame.Tag == FrameError {
			return
		}
	}
}

// dispatch routes one inbound frame. Audio goes to the reassembler; a
// completion event finalizes the stream; unknown control events are
// ignored for forward compatibility.
func (s *StreamSession) dispatch(frame *Frame) error {
	switch frame.Tag {
	case FrameAudioChunk:
		if s.stripWAVHeader && len(frame.Payload) >= wavHeaderLen {
			stripped := *frame
			stripped.Payload = frame.Payload[wavHeaderLen:]
			frame = &stripped
		}
		if err := s.asm.accept(frame); err != nil {
			return err
		}
		if frame.Final {
			s.completeStream()
		}
		return nil

	case FrameControl:
		if frame.Final {
			s.completeStream()
		}
		return nil

	case FrameError:
		return frameError(frame)

	default:
		return nil
	}
}

// completeStream handles the server-sent completion event: the
// connection is released and buffered chunks drain to the caller.
func (s *StreamSession) completeStream() {
	s.transition(StateDraining)
	s.asm.finalize()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.close()
	}
}

// reconnect tears down the dead connection and re-establishes the
// session, re-sending only the stream configuration. The server resumes
// from the next undelivered chunk; already-acknowledged audio is never
// re-sent.
func (s *StreamSession) reconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.close()
	}

	if !s.transition(StateConnecting) {
		return context.Canceled
	}
	if err := s.connect(s.ctx, s.asm.nextSeq()); err != nil {
		return err
	}
	if !s.transition(StateStreaming) {
		return context.Canceled
	}
	return nil
}
