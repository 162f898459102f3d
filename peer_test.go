package mqtt311

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

// servePeer accepts one connection on a loopback listener and runs handler
// on it. The connection is closed when handler returns. The returned
// channel is closed after that.
func servePeer(t *testing.T, handler func(conn net.Conn)) (string, <-chan struct{}) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	done := make(chan struct{})
	go func() {
		defer close(done)

		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.SetDeadline(time.Now().Add(testTimeout))
		handler(conn)
	}()

	return listener.Addr().String(), done
}

// echoPeer writes back every byte it reads until the client closes.
func echoPeer(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			return
		}
	}
}

// readPeerPacket reads one packet on the broker side, or returns nil once
// the client is gone. Client packets such as CONNECT decode as
// *UnknownPacket.
func readPeerPacket(conn net.Conn) Packet {
	pkt, _, err := ReadPacket(conn, 0)
	if err != nil {
		return nil
	}
	return pkt
}

// writePeerPacket writes one packet from the broker side.
func writePeerPacket(conn net.Conn, pkt Packet) bool {
	_, err := WritePacket(conn, pkt)
	return err == nil
}

// waitDone fails the test if ch is not closed in time.
func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatal("timed out")
	}
}
