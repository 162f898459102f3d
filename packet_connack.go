package mqtt311

import (
	"fmt"
	"io"
	"strconv"
)

// ConnackReturnCode is the result of a connection attempt.
// MQTT v3.1.1 spec: Section 3.2.2.3
//
// Codes above 5 are reserved by the protocol; they are kept as-is and
// reported as unknown rather than rejected.
type ConnackReturnCode byte

// CONNACK return codes.
const (
	ConnackAccepted                    ConnackReturnCode = 0x00
	ConnackUnacceptableProtocolVersion ConnackReturnCode = 0x01
	ConnackIdentifierRejected          ConnackReturnCode = 0x02
	ConnackServerUnavailable           ConnackReturnCode = 0x03
	ConnackBadCredentials              ConnackReturnCode = 0x04
	ConnackNotAuthorized               ConnackReturnCode = 0x05
)

// Known reports whether the code is one of the codes defined by MQTT 3.1.1.
func (c ConnackReturnCode) Known() bool {
	return c <= ConnackNotAuthorized
}

// String returns the string representation of the return code.
func (c ConnackReturnCode) String() string {
	switch c {
	case ConnackAccepted:
		return "Accepted"
	case ConnackUnacceptableProtocolVersion:
		return "UnacceptableProtocolVersion"
	case ConnackIdentifierRejected:
		return "IdentifierRejected"
	case ConnackServerUnavailable:
		return "ServerUnavailable"
	case ConnackBadCredentials:
		return "BadCredentials"
	case ConnackNotAuthorized:
		return "NotAuthorized"
	default:
		return "Unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

// ConnackPacket represents an MQTT CONNACK packet.
// MQTT v3.1.1 spec: Section 3.2
type ConnackPacket struct {
	// Flags is the connect acknowledge flags byte. Bit 0 is session present.
	Flags byte

	// ReturnCode is the connection result.
	ReturnCode ConnackReturnCode
}

// Type returns the packet type.
func (p *ConnackPacket) Type() PacketType {
	return PacketCONNACK
}

// SessionPresent returns the session present flag.
func (p *ConnackPacket) SessionPresent() bool {
	return p.Flags&0x01 != 0
}

// Encode writes the packet to the writer.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) {
	return writeFrame(w, PacketCONNACK, flagsNone, []byte{p.Flags, byte(p.ReturnCode)})
}

// decode accepts any flags byte; only bit 0 has a meaning.
func (p *ConnackPacket) decode(_ FixedHeader, fields *fieldReader) error {
	body := fields.readRest()
	if len(body) != 2 {
		return fmt.Errorf("body is %d bytes, want 2", len(body))
	}

	p.Flags = body[0]
	p.ReturnCode = ConnackReturnCode(body[1])

	return nil
}
