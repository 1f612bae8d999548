//go:build unix

package transport

import (
	"context"
	"fmt"
	"net"
)

// DialUnix connects to a local domain socket at path. Present only on
// platforms with domain sockets, per spec.md §6's "absent on platforms
// without domain sockets" clause — enforced here with a build constraint
// rather than a runtime check.
func DialUnix(ctx context.Context, path string) (*Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("nvimrpc/transport: dial unix %s: %w", path, err)
	}
	return &Stream{Reader: conn, Writer: conn, close: conn.Close}, nil
}
