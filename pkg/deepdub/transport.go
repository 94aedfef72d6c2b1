package deepdub

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn owns one live websocket connection. Writes are serialized;
// reads happen from a single goroutine per connection. Close is
// idempotent. A session never holds more than one open wsConn at a time;
// reconnects tear the old one down first.
type wsConn struct {
	conn *websocket.Conn

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// dialWS establishes a websocket connection with the client's auth
// headers. A rejected handshake maps to *AuthError; any other failure to
// *ConnectionError.
func (c *Client) dialWS(ctx context.Context, url string) (*wsConn, error) {
	conn, resp, err := c.config.dialer.DialContext(ctx, url, c.wsAuthHeaders())
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return nil, &AuthError{Status: resp.StatusCode, Message: string(body)}
			}
		}
		return nil, &ConnectionError{Op: "dial", Err: err}
	}

	wc := &wsConn{
		conn:              conn,
		heartbeatInterval: c.config.limits.HeartbeatInterval,
		heartbeatTimeout:  c.config.limits.HeartbeatTimeout,
		closed:            make(chan struct{}),
	}
	wc.startHeartbeat()
	return wc, nil
}

// startHeartbeat arms the keep-alive: periodic pings, and a read
// deadline that only a pong (or inbound traffic) extends. A missed pong
// makes the next read fail with a deadline error, surfaced as a
// *ConnectionError.
func (wc *wsConn) startHeartbeat() {
	wc.conn.SetReadDeadline(time.Now().Add(wc.heartbeatTimeout))
	wc.conn.SetPongHandler(func(string) error {
		return wc.conn.SetReadDeadline(time.Now().Add(wc.heartbeatTimeout))
	})

	go func() {
		ticker := time.NewTicker(wc.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-wc.closed:
				return
			case <-ticker.C:
				wc.writeMu.Lock()
				err := wc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wc.heartbeatInterval))
				wc.writeMu.Unlock()
				if err != nil {
					wc.close()
					return
				}
			}
		}
	}()
}

// send writes one frame's payload as a text message.
func (wc *wsConn) send(f *Frame) error {
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()

	select {
	case <-wc.closed:
		return &ConnectionError{Op: "send", Err: net.ErrClosed}
	default:
	}

	wc.conn.SetWriteDeadline(time.Now().Add(wc.heartbeatTimeout))
	if err := wc.conn.WriteMessage(websocket.TextMessage, f.Payload); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	return nil
}

// receive blocks until the next wire message arrives. A clean peer close
// returns ErrEndOfStream; a drop or missed heartbeat returns
// *ConnectionError.
func (wc *wsConn) receive() ([]byte, error) {
	_, data, err := wc.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrEndOfStream
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &ConnectionError{Op: "heartbeat", Err: err}
		}
		return nil, &ConnectionError{Op: "receive", Err: err}
	}
	wc.conn.SetReadDeadline(time.Now().Add(wc.heartbeatTimeout))
	return data, nil
}

// close releases the connection. Safe to call repeatedly and
// concurrently; later calls are no-ops.
func (wc *wsConn) close() {
	wc.closeOnce.Do(func() {
		close(wc.closed)
		wc.writeMu.Lock()
		wc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		wc.writeMu.Unlock()
		wc.conn.Close()
	})
}
