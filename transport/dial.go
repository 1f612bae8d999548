package transport

import (
	"context"
	"fmt"
	"net"
)

// Dial connects to a TCP address ("host:port") and returns the resulting
// Stream. Grounded on the teacher's client.getTransport, which dials with
// net.Dial("tcp", addr) before wrapping the connection in a multiplexed
// transport — here the multiplexing lives one layer up, in rpc.Endpoint.
func Dial(ctx context.Context, address string) (*Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("nvimrpc/transport: dial %s: %w", address, err)
	}
	return &Stream{Reader: conn, Writer: conn, close: conn.Close}, nil
}
