package mqtt311

import (
	"io"
	"strconv"
)

// SubackReturnCode is the per-filter result of a subscription.
// MQTT v3.1.1 spec: Section 3.9.3
type SubackReturnCode byte

// SUBACK return codes.
const (
	SubackGrantedQoS0 SubackReturnCode = 0x00
	SubackGrantedQoS1 SubackReturnCode = 0x01
	SubackGrantedQoS2 SubackReturnCode = 0x02
	SubackFailure     SubackReturnCode = 0x80
)

// Granted reports whether the subscription was accepted.
func (c SubackReturnCode) Granted() bool {
	return c <= SubackGrantedQoS2
}

// String returns the string representation of the return code.
func (c SubackReturnCode) String() string {
	switch c {
	case SubackGrantedQoS0:
		return "GrantedQoS0"
	case SubackGrantedQoS1:
		return "GrantedQoS1"
	case SubackGrantedQoS2:
		return "GrantedQoS2"
	case SubackFailure:
		return "Failure"
	default:
		return "Unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

// SubackPacket represents an MQTT SUBACK packet.
// MQTT v3.1.1 spec: Section 3.9
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []SubackReturnCode
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType { return PacketSUBACK }

// Encode writes the packet to the writer.
func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	body := make([]byte, 2, 2+len(p.ReturnCodes))
	body[0], body[1] = byte(p.PacketID>>8), byte(p.PacketID)
	for _, rc := range p.ReturnCodes {
		body = append(body, byte(rc))
	}

	return writeFrame(w, PacketSUBACK, flagsNone, body)
}

// decode needs the packet identifier and at least one return code.
func (p *SubackPacket) decode(_ FixedHeader, fields *fieldReader) error {
	id, err := fields.readUint16()
	if err != nil {
		return err
	}

	codes := fields.readRest()
	if len(codes) == 0 {
		return ErrNoSubscriptions
	}

	p.PacketID = id
	p.ReturnCodes = make([]SubackReturnCode, len(codes))
	for i, rc := range codes {
		p.ReturnCodes[i] = SubackReturnCode(rc)
	}

	return nil
}
