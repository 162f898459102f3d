package mqtt311

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// DefaultPort is the IANA registered port for unencrypted MQTT.
const DefaultPort = "1883"

// ErrUnsupportedScheme is returned for broker addresses with a scheme no
// dialer handles.
var ErrUnsupportedScheme = errors.New("unsupported address scheme")

// Conn is a byte stream to a broker. A Connection reads from it on one
// goroutine and writes to it on another.
type Conn interface {
	net.Conn
}

// Dialer establishes transports to brokers.
type Dialer interface {
	// Dial connects to the address with the given context.
	Dial(ctx context.Context, address string) (Conn, error)
}

// TCPDialer connects to brokers over TCP.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration
}

// Dial connects to the address.
func (d *TCPDialer) Dial(ctx context.Context, address string) (Conn, error) {
	var dialer net.Dialer
	if d.Timeout > 0 {
		dialer.Timeout = d.Timeout
	}
	return dialer.DialContext(ctx, "tcp", address)
}

// brokerAddress is a parsed broker address.
type brokerAddress struct {
	scheme string

	// target is what the dialer for scheme expects: host:port for tcp,
	// a URL for ws, a socket path for unix.
	target string
}

// parseAddress splits a broker address into the transport scheme and the
// dialer target. Addresses without a scheme are TCP host:port pairs.
//
//	localhost:1883          tcp, localhost:1883
//	mqtt://broker           tcp, broker:1883
//	ws://broker:8080/mqtt   ws,  ws://broker:8080/mqtt
//	unix:///run/mqtt.sock   unix, /run/mqtt.sock
func parseAddress(address string) (brokerAddress, error) {
	if !strings.Contains(address, "://") {
		if _, _, err := net.SplitHostPort(address); err != nil {
			return brokerAddress{}, fmt.Errorf("invalid broker address %q: %w", address, err)
		}
		return brokerAddress{scheme: "tcp", target: address}, nil
	}

	u, err := url.Parse(address)
	if err != nil {
		return brokerAddress{}, fmt.Errorf("invalid broker address %q: %w", address, err)
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		if u.Hostname() == "" {
			return brokerAddress{}, fmt.Errorf("invalid broker address %q: missing host", address)
		}
		port := u.Port()
		if port == "" {
			port = DefaultPort
		}
		return brokerAddress{scheme: "tcp", target: net.JoinHostPort(u.Hostname(), port)}, nil
	case "ws":
		return brokerAddress{scheme: "ws", target: address}, nil
	case "unix":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return brokerAddress{}, fmt.Errorf("invalid broker address %q: missing socket path", address)
		}
		return brokerAddress{scheme: "unix", target: path}, nil
	default:
		return brokerAddress{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}
