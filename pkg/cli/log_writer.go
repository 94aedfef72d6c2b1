package cli

import (
	"strings"

	"github.com/deepdub-ai/deepdub-go/pkg/buffer"
)

// LogWriter is an io.Writer that captures line-oriented progress output,
// keeping the most recent lines for transcript display. Streaming
// commands write session events into it and render the tail in a Frame.
type LogWriter struct {
	buf *buffer.RingBuffer[string]
}

// NewLogWriter creates a log writer retaining at most maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{buf: buffer.RingN[string](maxLines)}
}

// Write splits p on newlines and records each line.
func (w *LogWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		w.buf.Add(line)
	}
	return len(p), nil
}

// Lines returns the retained lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.buf.Bytes()
}
