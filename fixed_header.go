package mqtt311

import (
	"errors"
	"io"
)

// PacketType is the upper nibble of the first byte of every packet.
type PacketType byte

// Control packet types, MQTT 3.1.1 section 2.2.1. 0 and 15 are reserved.
const (
	PacketReserved PacketType = iota
	PacketCONNECT
	PacketCONNACK
	PacketPUBLISH
	PacketPUBACK
	PacketPUBREC
	PacketPUBREL
	PacketPUBCOMP
	PacketSUBSCRIBE
	PacketSUBACK
	PacketUNSUBSCRIBE
	PacketUNSUBACK
	PacketPINGREQ
	PacketPINGRESP
	PacketDISCONNECT
	PacketReserved15
)

var packetTypeNames = [...]string{
	PacketCONNECT:     "CONNECT",
	PacketCONNACK:     "CONNACK",
	PacketPUBLISH:     "PUBLISH",
	PacketPUBACK:      "PUBACK",
	PacketPUBREC:      "PUBREC",
	PacketPUBREL:      "PUBREL",
	PacketPUBCOMP:     "PUBCOMP",
	PacketSUBSCRIBE:   "SUBSCRIBE",
	PacketSUBACK:      "SUBACK",
	PacketUNSUBSCRIBE: "UNSUBSCRIBE",
	PacketUNSUBACK:    "UNSUBACK",
	PacketPINGREQ:     "PINGREQ",
	PacketPINGRESP:    "PINGRESP",
	PacketDISCONNECT:  "DISCONNECT",
}

// String returns the packet name, or UNKNOWN for reserved and invalid types.
func (p PacketType) String() string {
	if int(p) < len(packetTypeNames) && packetTypeNames[p] != "" {
		return packetTypeNames[p]
	}
	return "UNKNOWN"
}

var (
	ErrInvalidPacketType  = errors.New("invalid packet type")
	ErrInvalidPacketFlags = errors.New("invalid packet flags")
)

// Flag nibbles, MQTT 3.1.1 section 2.2.2.
const (
	flagsNone      = 0x00
	flagsSubscribe = 0x02

	publishFlagRetain = 0x01
	publishFlagDUP    = 0x08
	publishQoSShift   = 1
	publishQoSMask    = 0x03
)

// FixedHeader is the first two to five bytes of a packet.
type FixedHeader struct {
	PacketType      PacketType
	Flags           byte
	RemainingLength uint32
}

// appendTo appends the encoded header to dst.
func (h *FixedHeader) appendTo(dst []byte) ([]byte, error) {
	if h.PacketType > PacketReserved15 {
		return dst, ErrInvalidPacketType
	}
	return AppendVarint(append(dst, byte(h.PacketType)<<4 | h.Flags&0x0F), h.RemainingLength)
}

// Encode writes the header to w and returns the number of bytes written.
func (h *FixedHeader) Encode(w io.Writer) (int, error) {
	var scratch [1 + maxVarintBytes]byte

	b, err := h.appendTo(scratch[:0])
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

// Decode reads a header from r without reading ahead and returns the
// number of bytes consumed. A stream ending inside the header yields
// io.ErrUnexpectedEOF, an empty stream io.EOF.
func (h *FixedHeader) Decode(r io.Reader) (int, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, err
	}

	length, n, err := DecodeVarint(r)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 1 + n, err
	}

	*h = FixedHeader{
		PacketType:      PacketType(first[0] >> 4),
		Flags:           first[0] & 0x0F,
		RemainingLength: length,
	}
	return 1 + n, nil
}

// Size is the encoded length of the header.
func (h *FixedHeader) Size() int {
	return 1 + VarintSize(h.RemainingLength)
}

// DUP, QoS and Retain read the PUBLISH flags.

func (h *FixedHeader) DUP() bool    { return h.Flags&publishFlagDUP != 0 }
func (h *FixedHeader) QoS() byte    { return (h.Flags >> publishQoSShift) & publishQoSMask }
func (h *FixedHeader) Retain() bool { return h.Flags&publishFlagRetain != 0 }
