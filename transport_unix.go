package mqtt311

import (
	"context"
	"fmt"
	"net"
)

// UnixDialer connects to a broker listening on a Unix domain socket. The
// address is the socket path, such as /run/mosquitto/mqtt.sock.
type UnixDialer struct {
	// Dialer carries local settings such as the timeout. The zero value
	// relies on the context alone.
	Dialer net.Dialer
}

func NewUnixDialer() *UnixDialer {
	return &UnixDialer{}
}

func (d *UnixDialer) Dial(ctx context.Context, path string) (Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("unix socket %s: %w", path, err)
	}
	return conn, nil
}
