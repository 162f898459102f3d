package mqtt311

import "io"

// PingreqPacket represents an MQTT PINGREQ packet.
// MQTT v3.1.1 spec: Section 3.12
type PingreqPacket struct{}

// Type returns the packet type.
func (p *PingreqPacket) Type() PacketType { return PacketPINGREQ }

// Encode writes the packet to the writer.
func (p *PingreqPacket) Encode(w io.Writer) (int, error) {
	return writeFrame(w, PacketPINGREQ, flagsNone, nil)
}

// PingrespPacket represents an MQTT PINGRESP packet.
// MQTT v3.1.1 spec: Section 3.13
type PingrespPacket struct{}

// Type returns the packet type.
func (p *PingrespPacket) Type() PacketType { return PacketPINGRESP }

// Encode writes the packet to the writer.
func (p *PingrespPacket) Encode(w io.Writer) (int, error) {
	return writeFrame(w, PacketPINGRESP, flagsNone, nil)
}

func (p *PingrespPacket) decode(FixedHeader, *fieldReader) error {
	return nil
}

// DisconnectPacket represents an MQTT DISCONNECT packet.
// MQTT v3.1.1 spec: Section 3.14
type DisconnectPacket struct{}

// Type returns the packet type.
func (p *DisconnectPacket) Type() PacketType { return PacketDISCONNECT }

// Encode writes the packet to the writer.
func (p *DisconnectPacket) Encode(w io.Writer) (int, error) {
	return writeFrame(w, PacketDISCONNECT, flagsNone, nil)
}
