package mqtt311

import (
	"fmt"
	"io"
)

// DecodePacket decodes a frame into a typed packet.
//
// CONNACK, SUBACK, PUBLISH and PINGRESP are decoded. Every other type,
// including reserved ones, becomes an *UnknownPacket that keeps the frame.
// A CONNACK with an unrecognised return code is still a valid CONNACK.
func DecodePacket(f Frame) (Packet, error) {
	header := FixedHeader{
		PacketType:      f.Type(),
		Flags:           f.Flags(),
		RemainingLength: f.RemainingLength,
	}

	var packet decodablePacket
	switch header.PacketType {
	case PacketCONNACK:
		packet = &ConnackPacket{}
	case PacketSUBACK:
		packet = &SubackPacket{}
	case PacketPUBLISH:
		packet = &PublishPacket{}
	case PacketPINGRESP:
		packet = &PingrespPacket{}
	default:
		return &UnknownPacket{PacketType: header.PacketType, Raw: f.Raw}, nil
	}

	fields := fieldReader{buf: f.Body()}
	if err := packet.decode(header, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedPacket, header.PacketType, err)
	}

	if fields.len() > 0 {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrMalformedPacket, header.PacketType, fields.len())
	}

	return packet, nil
}

// ReadPacket reads and decodes one complete packet from the reader.
// If maxSize is greater than 0, packets larger than maxSize return ErrPacketTooLarge.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, int, error) {
	frame, err := ReadFrame(r, maxSize)
	if err != nil {
		return nil, 0, err
	}

	packet, err := DecodePacket(frame)
	return packet, len(frame.Raw), err
}

// EncodePacket returns the complete wire encoding of the packet.
func EncodePacket(packet Packet) ([]byte, error) {
	buf := getBytesBuffer()
	defer putBytesBuffer(buf)

	if _, err := packet.Encode(buf); err != nil {
		return nil, err
	}

	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())

	return out, nil
}

// WritePacket encodes the packet and writes it with a single Write call,
// so message oriented transports carry one packet per message.
func WritePacket(w io.Writer, packet Packet) (int, error) {
	buf := getBytesBuffer()
	defer putBytesBuffer(buf)

	if _, err := packet.Encode(buf); err != nil {
		return 0, err
	}

	return w.Write(buf.Bytes())
}
