package mqtt311

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSubprotocol is the subprotocol MQTT 3.1.1 section 6 requires.
const WebSocketSubprotocol = "mqtt"

// ErrWebSocketTextMessage is returned when the broker sends a text message.
// MQTT control packets travel in binary messages only.
var ErrWebSocketTextMessage = errors.New("websocket: text message on MQTT stream")

// WSConn presents the binary messages of a WebSocket as one byte stream.
// A packet may span messages and a message may hold several packets, so
// message boundaries carry no meaning on read. Each Write is one message.
type WSConn struct {
	*websocket.Conn

	// message is the unread rest of the current binary message.
	message io.Reader
}

// Read reads from the current message, moving on to the next one when it
// is exhausted. Empty messages are skipped.
func (c *WSConn) Read(p []byte) (int, error) {
	for {
		if c.message == nil {
			kind, r, err := c.NextReader()
			if err != nil {
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				return 0, ErrWebSocketTextMessage
			}
			c.message = r
		}

		n, err := c.message.Read(p)
		if errors.Is(err, io.EOF) {
			c.message = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

// Write sends p as one binary message.
func (c *WSConn) Write(p []byte) (int, error) {
	if err := c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetDeadline sets the read and write deadlines.
func (c *WSConn) SetDeadline(t time.Time) error {
	return errors.Join(c.SetReadDeadline(t), c.SetWriteDeadline(t))
}

// WSDialer connects to brokers over WebSocket. The address is a ws:// URL.
type WSDialer struct {
	// Dialer performs the handshake. Nil uses websocket.DefaultDialer,
	// which does not ask for the mqtt subprotocol.
	Dialer *websocket.Dialer

	// Header is sent with the handshake request.
	Header http.Header
}

// NewWSDialer returns a dialer that requests the mqtt subprotocol.
func NewWSDialer() *WSDialer {
	return &WSDialer{
		Dialer: &websocket.Dialer{
			Subprotocols:     []string{WebSocketSubprotocol},
			HandshakeTimeout: DefaultConnectTimeout,
		},
	}
}

// Dial performs the WebSocket handshake with address.
func (d *WSDialer) Dial(ctx context.Context, address string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ws, resp, err := dialer.DialContext(ctx, address, d.Header)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}

	return &WSConn{Conn: ws}, nil
}
