package mqtt311

import "io"

// UnknownPacket is a well-formed packet of a type the client does not
// decode. It keeps the complete frame so it can be re-encoded byte for byte.
type UnknownPacket struct {
	// PacketType is the upper nibble of the first byte.
	PacketType PacketType

	// Raw is the complete frame: fixed header, variable header and payload.
	Raw []byte
}

// Type returns the packet type.
func (p *UnknownPacket) Type() PacketType { return p.PacketType }

// Encode writes the original frame unchanged.
func (p *UnknownPacket) Encode(w io.Writer) (int, error) {
	return w.Write(p.Raw)
}
