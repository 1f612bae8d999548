//go:build unix

package nvimrpc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nvimrpc/rpc"
	"nvimrpc/transport"
)

// DialUnix connects to Neovim's RPC listener at a local domain socket path.
// Absent on platforms without domain sockets.
func DialUnix(ctx context.Context, path string, handler rpc.Handler, logger *zap.Logger) (rpc.Requester, *Connection, error) {
	stream, err := transport.DialUnix(ctx, path)
	if err != nil {
		return rpc.Requester{}, nil, fmt.Errorf("nvimrpc: %w", err)
	}
	req, conn := newConnection(OriginUnix, stream, nil, handler, logger)
	return req, conn, nil
}
