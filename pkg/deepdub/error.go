package deepdub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrEndOfStream reports that the peer closed the connection cleanly.
var ErrEndOfStream = errors.New("deepdub: end of stream")

// Error is a Deepdub API error carried in a REST response or wire frame.
type Error struct {
	// Code is the machine-readable error code, when the service supplies one.
	Code string `json:"errorCode,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"error"`

	// GenerationID identifies the generation the error belongs to.
	GenerationID string `json:"generationId,omitempty"`

	// HTTPStatus is the HTTP status code, for REST errors.
	HTTPStatus int `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("deepdub: %s (code=%s, http_status=%d)", e.Message, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("deepdub: %s (http_status=%d)", e.Message, e.HTTPStatus)
}

// IsAuthError reports whether the credentials were rejected.
func (e *Error) IsAuthError() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// IsRateLimit reports whether the request was throttled.
func (e *Error) IsRateLimit() bool {
	return e.HTTPStatus == http.StatusTooManyRequests
}

// IsInvalidParam reports whether the request was rejected as malformed.
func (e *Error) IsInvalidParam() bool {
	return e.HTTPStatus == http.StatusBadRequest
}

// IsServerError reports whether the failure was on the service side.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= http.StatusInternalServerError
}

// Retryable reports whether the request may be retried.
func (e *Error) Retryable() bool {
	return e.IsRateLimit() || e.IsServerError()
}

// AsError attempts to convert an error to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ConnectionError is a transport-level fault: dial failure, write fault,
// abnormal close, or a missed heartbeat. Connection errors are potentially
// transient; streaming sessions retry them within the configured budget.
type ConnectionError struct {
	Op  string // "dial", "send", "receive", "heartbeat"
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("deepdub: connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports credentials rejected during a websocket handshake.
// It is fatal and never retried.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("deepdub: authentication rejected (status=%d): %s", e.Status, e.Message)
}

// ProtocolError reports a malformed or out-of-contract frame. It is fatal
// for the current session and never retried.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deepdub: protocol: %s: %v", e.Reason, e.Err)
	}
	return "deepdub: protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// OrderingError reports an audio sequence gap. The server guarantees
// in-order delivery over one connection, so a gap means data loss; the
// reassembler rejects the chunk and the session fails.
type OrderingError struct {
	Expected uint64
	Got      uint64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("deepdub: audio chunk out of order: expected sequence %d, got %d", e.Expected, e.Got)
}

// UnrecoverableError reports that the reconnect budget was exhausted or
// the server refused to resume after a reconnect. The caller must restart
// the session from scratch.
type UnrecoverableError struct {
	Attempts int
	Err      error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("deepdub: session unrecoverable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UnrecoverableError) Unwrap() error { return e.Err }

// parseAPIError parses a non-2xx REST response body.
func parseAPIError(statusCode int, body []byte) error {
	var apiErr Error
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return &Error{
			Message:    string(body),
			HTTPStatus: statusCode,
		}
	}
	apiErr.HTTPStatus = statusCode
	return &apiErr
}

// retryableConn reports whether err is a transient connection fault.
func retryableConn(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// wrapError wraps an error with a message.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
