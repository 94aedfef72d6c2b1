// Package buffer provides a thread-safe ring buffer holding the most
// recent elements of a stream. It backs the CLI's session transcript,
// where only the latest lines matter and older ones may be dropped.
package buffer
