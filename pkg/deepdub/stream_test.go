package deepdub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

// fastLimits keeps reconnect tests quick.
var fastLimits = StreamLimits{
	MaxConnectAttempts: 4,
	BackoffBase:        time.Millisecond,
	BackoffMax:         5 * time.Millisecond,
}

func wsTestServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newStreamTestClient(t *testing.T, url string, limits StreamLimits) *Client {
	t.Helper()
	c, err := NewClient(
		WithAPIKey("test-key"),
		WithStreamingURL(url),
		WithStreamLimits(limits),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func writeWire(t *testing.T, conn *websocket.Conn, resp wireResponse) {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Errorf("marshal response: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Errorf("write response: %v", err)
	}
}

func writeChunk(t *testing.T, conn *websocket.Conn, gen string, index uint64, payload []byte) {
	t.Helper()
	idx := index
	writeWire(t, conn, wireResponse{
		GenerationID: gen,
		Index:        &idx,
		Data:         base64.StdEncoding.EncodeToString(payload),
	})
}

func readWire(t *testing.T, conn *websocket.Conn) (*wireRequest, bool) {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}
	var req wireRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Errorf("unmarshal request: %v", err)
		return nil, false
	}
	return &req, true
}

func collectChunks(s *StreamSession) ([][]byte, error) {
	var chunks [][]byte
	for chunk, err := range s.Recv() {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk.Data)
	}
	return chunks, nil
}

func TestStreamSessionHappyPath(t *testing.T) {
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", got)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		if init.Action != "stream-config" {
			t.Errorf("first action = %q, want stream-config", init.Action)
		}
		gen := init.GenerationID
		writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})

		text, ok := readWire(t, conn)
		if !ok {
			return
		}
		if text.Action != "stream-text" || text.Data == nil || text.Data.Text != "hello there" {
			t.Errorf("text frame = %+v, want stream-text hello there", text)
		}

		writeChunk(t, conn, gen, 0, []byte("foo"))
		writeChunk(t, conn, gen, 1, []byte("bar"))
		writeWire(t, conn, wireResponse{GenerationID: gen, IsFinished: true})
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer session.Close()

	if got := session.State(); got != StateStreaming {
		t.Errorf("state after open = %v, want StateStreaming", got)
	}
	if err := session.SendText(context.Background(), "hello there"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	chunks, err := collectChunks(session)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(chunks) != 2 || string(chunks[0]) != "foo" || string(chunks[1]) != "bar" {
		t.Errorf("chunks = %q, want [foo bar]", chunks)
	}

	if got := session.State(); got != StateClosed {
		t.Errorf("state after drain = %v, want StateClosed", got)
	}
	chunkCount, byteCount, _ := session.Stats()
	if chunkCount != 2 || byteCount != 6 {
		t.Errorf("stats = (%d, %d), want (2, 6)", chunkCount, byteCount)
	}
}

func TestStreamSessionRetriesTransientDialFailures(t *testing.T) {
	var dials atomic.Int32
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		writeWire(t, conn, wireResponse{GenerationID: init.GenerationID, Status: "ready"})
		writeWire(t, conn, wireResponse{GenerationID: init.GenerationID, IsFinished: true})
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession after transient failures: %v", err)
	}
	defer session.Close()

	if got := dials.Load(); got != 3 {
		t.Errorf("dial attempts = %d, want 3", got)
	}
	if _, err := collectChunks(session); err != nil {
		t.Errorf("Recv: %v", err)
	}
}

func TestStreamSessionExhaustsAttemptBudget(t *testing.T) {
	var dials atomic.Int32
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	limits := fastLimits
	limits.MaxConnectAttempts = 2
	c := newStreamTestClient(t, url, limits)

	_, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	var ue *UnrecoverableError
	if !errors.As(err, &ue) {
		t.Fatalf("OpenSession = %v, want *UnrecoverableError", err)
	}
	if ue.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", ue.Attempts)
	}
	var ce *ConnectionError
	if !errors.As(ue.Err, &ce) {
		t.Errorf("cause = %v, want *ConnectionError", ue.Err)
	}
	if got := dials.Load(); got != 2 {
		t.Errorf("dial attempts = %d, want 2", got)
	}
}

func TestStreamSessionAuthFailureDoesNotRetry(t *testing.T) {
	var dials atomic.Int32
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	c := newStreamTestClient(t, url, fastLimits)
	_, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("OpenSession = %v, want *AuthError", err)
	}
	if got := dials.Load(); got != 1 {
		t.Errorf("dial attempts = %d, want 1 (auth failures are fatal)", got)
	}
}

func TestStreamSessionCloseUnblocksRecv(t *testing.T) {
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		writeWire(t, conn, wireResponse{GenerationID: init.GenerationID, Status: "ready"})
		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	recvDone := make(chan error, 1)
	go func() {
		_, err := collectChunks(session)
		recvDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-recvDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Recv terminal error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
	if got := session.State(); got != StateClosed {
		t.Errorf("state = %v, want StateClosed", got)
	}
}

func TestStreamSessionSequenceGapIsFatal(t *testing.T) {
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		gen := init.GenerationID
		writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
		writeChunk(t, conn, gen, 0, []byte("first"))
		writeChunk(t, conn, gen, 2, []byte("skipped ahead"))
		conn.ReadMessage() // wait for the client to drop the connection
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer session.Close()

	chunks, err := collectChunks(session)
	var oe *OrderingError
	if !errors.As(err, &oe) {
		t.Fatalf("Recv terminal error = %v, want *OrderingError", err)
	}
	if oe.Expected != 1 || oe.Got != 2 {
		t.Errorf("OrderingError = expected %d got %d, want expected 1 got 2", oe.Expected, oe.Got)
	}
	if len(chunks) != 1 || string(chunks[0]) != "first" {
		t.Errorf("chunks before gap = %q, want [first]", chunks)
	}
	if got := session.State(); got != StateErrored {
		t.Errorf("state = %v, want StateErrored", got)
	}
	if !errors.As(session.Err(), &oe) {
		t.Errorf("Err() = %v, want *OrderingError", session.Err())
	}
}

func TestStreamSessionResumesAfterDrop(t *testing.T) {
	var conns atomic.Int32
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		gen := init.GenerationID

		switch conns.Add(1) {
		case 1:
			if init.Resume != nil {
				t.Errorf("fresh session sent resume = %+v", init.Resume)
			}
			writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
			writeChunk(t, conn, gen, 0, []byte("aaa"))
			// Drop without a close frame to simulate a network fault.
			conn.UnderlyingConn().Close()
		default:
			if init.Resume == nil || init.Resume.NextSeq != 1 {
				t.Errorf("reconnect resume = %+v, want nextSequence 1", init.Resume)
			}
			writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
			writeChunk(t, conn, gen, 1, []byte("bbb"))
			writeWire(t, conn, wireResponse{GenerationID: gen, IsFinished: true})
		}
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer session.Close()

	chunks, err := collectChunks(session)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	got := make([]string, len(chunks))
	for i, c := range chunks {
		got[i] = string(c)
	}
	if len(got) != 2 || got[0] != "aaa" || got[1] != "bbb" {
		t.Errorf("chunks = %v, want [aaa bbb]", got)
	}
	if conns.Load() < 2 {
		t.Errorf("connections = %d, want at least 2", conns.Load())
	}
}

func TestStreamSessionReconnectsAfterHeartbeatTimeout(t *testing.T) {
	hold := make(chan struct{})
	var conns atomic.Int32
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		gen := init.GenerationID

		switch conns.Add(1) {
		case 1:
			writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
			// Go deaf without closing: no reads means no pong replies,
			// so only the client's heartbeat can detect the stall.
			<-hold
		default:
			writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
			writeChunk(t, conn, gen, 0, []byte("after stall"))
			writeWire(t, conn, wireResponse{GenerationID: gen, IsFinished: true})
		}
	})
	t.Cleanup(func() { close(hold) })

	limits := fastLimits
	limits.HeartbeatInterval = 10 * time.Millisecond
	limits.HeartbeatTimeout = 40 * time.Millisecond
	c := newStreamTestClient(t, url, limits)

	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer session.Close()

	chunks, err := collectChunks(session)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(chunks) != 1 || string(chunks[0]) != "after stall" {
		t.Errorf("chunks = %q, want [after stall]", chunks)
	}
	if got := conns.Load(); got < 2 {
		t.Errorf("connections = %d, want at least 2 (missed pongs must force a redial)", got)
	}
	if got := session.State(); got != StateClosed {
		t.Errorf("state = %v, want StateClosed", got)
	}
}

func TestStreamSessionResumeRefusalIsFatal(t *testing.T) {
	var conns atomic.Int32
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		gen := init.GenerationID

		switch conns.Add(1) {
		case 1:
			writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
			writeChunk(t, conn, gen, 0, []byte("aaa"))
			conn.UnderlyingConn().Close()
		default:
			if init.Resume == nil || init.Resume.NextSeq != 1 {
				t.Errorf("reconnect resume = %+v, want nextSequence 1", init.Resume)
			}
			writeWire(t, conn, wireResponse{GenerationID: gen, Error: "generation expired", ErrorCode: "resume_rejected"})
		}
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer session.Close()

	chunks, err := collectChunks(session)
	if len(chunks) != 1 || string(chunks[0]) != "aaa" {
		t.Errorf("chunks before refusal = %q, want [aaa]", chunks)
	}

	// Delivered audio cannot be replayed, so a refused resume must not
	// restart the generation from scratch.
	var ue *UnrecoverableError
	if !errors.As(err, &ue) {
		t.Fatalf("Recv terminal error = %v, want *UnrecoverableError", err)
	}
	apiErr, ok := AsError(ue.Err)
	if !ok || apiErr.Code != "resume_rejected" {
		t.Errorf("cause = %v, want resume_rejected *Error", ue.Err)
	}
	if got := session.State(); got != StateErrored {
		t.Errorf("state = %v, want StateErrored", got)
	}
}

func TestStreamSessionHeaderlessStripsWAVHeader(t *testing.T) {
	pcm := []byte("raw pcm payload")
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		if init.Config == nil || init.Config.Format != FormatWAV {
			t.Errorf("wire format = %+v, want wav (headerless is client-side)", init.Config)
		}
		gen := init.GenerationID
		writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
		chunk := append(make([]byte, wavHeaderLen), pcm...)
		writeChunk(t, conn, gen, 0, chunk)
		writeWire(t, conn, wireResponse{GenerationID: gen, IsFinished: true})
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{
		VoicePromptID: "vp-1",
		Format:        FormatHeaderlessWAV,
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer session.Close()

	chunks, err := collectChunks(session)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(chunks) != 1 || string(chunks[0]) != string(pcm) {
		t.Errorf("chunks = %q, want [%q]", chunks, pcm)
	}
}

func TestStreamSessionsIndependent(t *testing.T) {
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		gen := init.GenerationID
		writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
		for i := range uint64(3) {
			writeChunk(t, conn, gen, i, []byte(gen+":"+string(rune('0'+i))))
		}
		writeWire(t, conn, wireResponse{GenerationID: gen, IsFinished: true})
	})

	c := newStreamTestClient(t, url, fastLimits)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
			if err != nil {
				t.Errorf("OpenSession: %v", err)
				return
			}
			defer session.Close()

			chunks, err := collectChunks(session)
			if err != nil {
				t.Errorf("Recv: %v", err)
				return
			}
			if len(chunks) != 3 {
				t.Errorf("chunks = %d, want 3", len(chunks))
			}
			for i, chunk := range chunks {
				want := session.GenerationID() + ":" + string(rune('0'+i))
				if string(chunk) != want {
					t.Errorf("chunk %d = %q, want %q (leaked across sessions)", i, chunk, want)
				}
			}
		}()
	}
	wg.Wait()
}

func TestStreamSessionSlotLimit(t *testing.T) {
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		writeWire(t, conn, wireResponse{GenerationID: init.GenerationID, Status: "ready"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	limits := fastLimits
	limits.MaxSessions = 1
	c := newStreamTestClient(t, url, limits)

	first, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Stream.OpenSession(ctx, &StreamConfig{VoicePromptID: "vp-1"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second OpenSession = %v, want context.DeadlineExceeded", err)
	}

	first.Close()

	second, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession after slot release: %v", err)
	}
	second.Close()
}

func TestStreamSessionSendAfterClose(t *testing.T) {
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		writeWire(t, conn, wireResponse{GenerationID: init.GenerationID, Status: "ready"})
		conn.ReadMessage()
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	session.Close()

	err = session.SendText(context.Background(), "too late")
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Errorf("SendText after Close = %v, want *ConnectionError", err)
	}
}

func TestStreamSessionServerError(t *testing.T) {
	url := wsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		init, ok := readWire(t, conn)
		if !ok {
			return
		}
		gen := init.GenerationID
		writeWire(t, conn, wireResponse{GenerationID: gen, Status: "ready"})
		writeWire(t, conn, wireResponse{GenerationID: gen, Error: "voice not found", ErrorCode: "invalid_voice"})
	})

	c := newStreamTestClient(t, url, fastLimits)
	session, err := c.Stream.OpenSession(context.Background(), &StreamConfig{VoicePromptID: "vp-1"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer session.Close()

	_, err = collectChunks(session)
	apiErr, ok := AsError(err)
	if !ok {
		t.Fatalf("Recv terminal error = %v, want *Error", err)
	}
	if apiErr.Code != "invalid_voice" {
		t.Errorf("code = %q, want invalid_voice", apiErr.Code)
	}
	if got := session.State(); got != StateErrored {
		t.Errorf("state = %v, want StateErrored", got)
	}
}
