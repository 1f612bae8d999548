package transport

import "os"

// NewStdio wires the current process's own stdin/stdout as the
// MessagePack-RPC channel — used when this program is itself the child
// Neovim embeds (spec.md §6: "parent process over its own standard input
// and output"). Close is a no-op: the host process doesn't own its own
// stdio lifecycle.
func NewStdio() *Stream {
	return &Stream{Reader: os.Stdin, Writer: os.Stdout, close: func() error { return nil }}
}
