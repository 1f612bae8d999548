// Package transport provides the thin, mechanical connection factories
// spec.md §4.6 and §6 describe: TCP, local domain socket, child process, and
// parent stdio. Each produces a Stream — a duplex byte stream plus whatever
// transport-specific resource (notably a child process handle) must be kept
// alive until the connection is closed.
package transport

import "io"

// Stream is a duplex byte stream bundled with its own teardown. Close
// releases transport-specific resources (closing a socket, or killing and
// reaping a child process).
type Stream struct {
	io.Reader
	io.Writer
	close func() error
}

// Close tears down the stream. It has no guard against repeated calls: each
// call runs the transport's teardown again, and Connection.Close (the root
// package) passes every call straight through.
func (s *Stream) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
