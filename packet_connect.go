package mqtt311

import (
	"errors"
	"io"
)

// CONNECT packet constants.
const (
	protocolName  = "MQTT"
	protocolLevel = 4
)

// Connect flag bit positions.
const (
	connectFlagCleanSession = 0x02
	connectFlagPasswordFlag = 0x40
	connectFlagUsernameFlag = 0x80
)

// CONNECT packet errors.
var (
	ErrPasswordWithoutUsername = errors.New("password requires a username")
)

// ConnectPacket represents an MQTT CONNECT packet.
// MQTT v3.1.1 spec: Section 3.1
//
// Every CONNECT requests a clean session; the client keeps no session state.
type ConnectPacket struct {
	// ClientID is the optional client identifier.
	ClientID ClientID

	// KeepAlive is the keep alive interval in seconds.
	KeepAlive uint16

	// Username for authentication. Empty means not sent.
	Username string

	// Password for authentication. Nil means not sent.
	Password []byte
}

// NewConnectPacket builds a CONNECT packet, rejecting an invalid client identifier.
func NewConnectPacket(clientID ClientID, keepAlive uint16) (*ConnectPacket, error) {
	p := &ConnectPacket{
		ClientID:  clientID,
		KeepAlive: keepAlive,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType {
	return PacketCONNECT
}

// connectFlags returns the connect flags byte.
func (p *ConnectPacket) connectFlags() byte {
	flags := byte(connectFlagCleanSession)

	if p.Username != "" {
		flags |= connectFlagUsernameFlag
	}

	if p.Password != nil {
		flags |= connectFlagPasswordFlag
	}

	return flags
}

// Encode writes the packet to the writer.
func (p *ConnectPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	// Variable header: protocol name, level, flags, keep-alive.
	body := make([]byte, 0, 10+2+len(p.ClientID.String()))
	body, _ = appendString(body, protocolName)
	body = append(body, protocolLevel, p.connectFlags(), byte(p.KeepAlive>>8), byte(p.KeepAlive))

	// Payload fields appear in the order of their flags.
	body, err := appendString(body, p.ClientID.String())
	if err != nil {
		return 0, err
	}
	if p.Username != "" {
		if body, err = appendString(body, p.Username); err != nil {
			return 0, err
		}
	}
	if p.Password != nil {
		if body, err = appendBytes(body, p.Password); err != nil {
			return 0, err
		}
	}

	return writeFrame(w, PacketCONNECT, flagsNone, body)
}

// Validate validates the packet contents.
func (p *ConnectPacket) Validate() error {
	if err := p.ClientID.Validate(); err != nil {
		return err
	}

	// MQTT v3.1.1 spec: Section 3.1.2.9
	if p.Password != nil && p.Username == "" {
		return ErrPasswordWithoutUsername
	}

	return nil
}
