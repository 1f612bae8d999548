// Package nvimrpc is a client-side library for speaking the
// MessagePack-RPC dialect Neovim uses over a child process, a TCP socket, a
// local domain socket, or the host's own stdio. It wires together the core
// multiplexer in package rpc with the transport constructors in package
// transport, producing the (Requester, Connection) pair spec.md §4.6
// describes: dial or spawn, get back a caller handle and a loop the host
// schedules itself.
package nvimrpc

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"nvimrpc/rpc"
	"nvimrpc/transport"
)

// Origin distinguishes how a Connection's transport was obtained — the
// tagged variant spec.md §3 describes.
type Origin int

const (
	OriginTCP Origin = iota
	OriginUnix
	OriginChildProcess
	OriginStdio
)

func (o Origin) String() string {
	switch o {
	case OriginTCP:
		return "tcp"
	case OriginUnix:
		return "unix"
	case OriginChildProcess:
		return "child-process"
	case OriginStdio:
		return "stdio"
	default:
		return "unknown"
	}
}

// Connection bundles a Requester's I/O loop with whatever transport-specific
// resource must outlive individual calls — notably a child process handle,
// which is killed or reaped only when Close is called. Connection's
// lifetime bounds the transport: closing it closes the stream, which causes
// Serve to return.
type Connection struct {
	Origin Origin

	stream *transport.Stream
	cmd    *exec.Cmd // non-nil only when Origin == OriginChildProcess
	ep     *rpc.Endpoint
}

// Serve runs the connection's I/O loop until the stream fails or is closed.
// The host must schedule this (typically `go conn.Serve()`) before any
// response can be delivered — the Created → Running transition of
// spec.md §4.7.
func (c *Connection) Serve() error {
	return c.ep.Serve()
}

// Close tears down the transport. For a child process this kills and reaps
// it if it hasn't exited within the grace period; for a socket it simply
// closes the connection. Either way Serve's in-flight Decode unblocks with
// an error and the loop terminates.
func (c *Connection) Close() error {
	return c.stream.Close()
}

// Process returns the child process handle, or nil for any other Origin.
func (c *Connection) Process() *exec.Cmd {
	return c.cmd
}

func newConnection(origin Origin, stream *transport.Stream, cmd *exec.Cmd, handler rpc.Handler, logger *zap.Logger) (rpc.Requester, *Connection) {
	req, ep := rpc.NewEndpoint(stream, handler, logger)
	return req, &Connection{Origin: origin, stream: stream, cmd: cmd, ep: ep}
}

// Dial connects to Neovim's TCP RPC listener at address ("host:port").
func Dial(ctx context.Context, address string, handler rpc.Handler, logger *zap.Logger) (rpc.Requester, *Connection, error) {
	stream, err := transport.Dial(ctx, address)
	if err != nil {
		return rpc.Requester{}, nil, fmt.Errorf("nvimrpc: %w", err)
	}
	req, conn := newConnection(OriginTCP, stream, nil, handler, logger)
	return req, conn, nil
}

// NewChildProcess spawns path (with "--embed" injected) and connects over
// its stdin/stdout.
func NewChildProcess(path string, handler rpc.Handler, logger *zap.Logger) (rpc.Requester, *Connection, error) {
	stream, cmd, err := transport.NewChildProcess(path)
	if err != nil {
		return rpc.Requester{}, nil, fmt.Errorf("nvimrpc: %w", err)
	}
	req, conn := newConnection(OriginChildProcess, stream, cmd, handler, logger)
	return req, conn, nil
}

// NewChildProcessWithArgs spawns path with caller-supplied args, env, and
// working directory and connects over its stdin/stdout. No default
// argument is injected — the caller must include whatever flag makes the
// child speak MessagePack-RPC over stdio.
func NewChildProcessWithArgs(path string, args, env []string, dir string, handler rpc.Handler, logger *zap.Logger) (rpc.Requester, *Connection, error) {
	stream, cmd, err := transport.NewChildProcessWithArgs(path, args, env, dir)
	if err != nil {
		return rpc.Requester{}, nil, fmt.Errorf("nvimrpc: %w", err)
	}
	req, conn := newConnection(OriginChildProcess, stream, cmd, handler, logger)
	return req, conn, nil
}

// NewStdio wires this process's own stdin/stdout as the RPC channel, for
// when this program is itself the child Neovim embeds.
func NewStdio(handler rpc.Handler, logger *zap.Logger) (rpc.Requester, *Connection) {
	stream := transport.NewStdio()
	req, conn := newConnection(OriginStdio, stream, nil, handler, logger)
	return req, conn
}
