package mqtt311

import (
	"errors"
	"fmt"
	"io"
)

// Packet is the interface that all MQTT control packets implement.
// Packets are values: the library never mutates a packet after it has
// been constructed or decoded.
type Packet interface {
	// Type returns the packet type.
	Type() PacketType

	// Encode writes the complete packet (fixed header, variable header and
	// payload) to the writer.
	// Returns the number of bytes written.
	Encode(w io.Writer) (int, error)
}

// decodablePacket is implemented by packets the client knows how to decode
// from an inbound frame.
type decodablePacket interface {
	Packet

	// decode fills the packet from the body of a frame. Bytes left in
	// fields afterwards make the frame malformed.
	decode(header FixedHeader, fields *fieldReader) error
}

// Packet errors.
var (
	ErrMalformedPacket = errors.New("malformed packet")
	ErrInvalidClientID = errors.New("invalid client identifier")
	ErrInvalidQoS      = errors.New("invalid QoS level")
)

// maxClientIDLength is the longest client identifier every MQTT 3.1.1
// server must accept (section 3.1.3.1).
const maxClientIDLength = 23

// ClientID is an optional MQTT client identifier.
// The zero value means no identifier: the broker assigns one and the
// CONNECT payload carries an empty string.
type ClientID struct {
	id  string
	set bool
}

// NewClientID returns a present client identifier. Call Validate to check it.
func NewClientID(id string) ClientID {
	return ClientID{id: id, set: true}
}

// Value returns the identifier and whether it is present.
func (c ClientID) Value() (string, bool) {
	return c.id, c.set
}

// IsSet reports whether the identifier is present.
func (c ClientID) IsSet() bool {
	return c.set
}

// String returns the identifier, or an empty string when absent.
func (c ClientID) String() string {
	return c.id
}

// Validate checks the identifier against the MQTT 3.1.1 portable subset:
// 1 to 23 ASCII letters and digits. An absent identifier is always valid.
func (c ClientID) Validate() error {
	if !c.set {
		return nil
	}

	if c.id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidClientID)
	}

	if len(c.id) > maxClientIDLength {
		return fmt.Errorf("%w: %d characters exceeds %d", ErrInvalidClientID, len(c.id), maxClientIDLength)
	}

	for i := range len(c.id) {
		if !isASCIIAlphanumeric(c.id[i]) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidClientID, c.id, c.id[i])
		}
	}

	return nil
}

func isASCIIAlphanumeric(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// writeFrame writes the fixed header for body followed by body itself.
func writeFrame(w io.Writer, packetType PacketType, flags byte, body []byte) (int, error) {
	if len(body) > maxVarint {
		return 0, ErrVarintTooLarge
	}

	header := FixedHeader{PacketType: packetType, Flags: flags, RemainingLength: uint32(len(body))}

	frame, err := header.appendTo(make([]byte, 0, header.Size()+len(body)))
	if err != nil {
		return 0, err
	}
	return w.Write(append(frame, body...))
}
