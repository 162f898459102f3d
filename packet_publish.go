package mqtt311

import (
	"errors"
	"io"
)

// PUBLISH packet errors.
var (
	ErrTopicNameEmpty   = errors.New("topic name cannot be empty")
	ErrPacketIDRequired = errors.New("packet identifier required for QoS > 0")
)

// PublishPacket is an application message delivered by the broker.
// MQTT v3.1.1 spec: Section 3.3
//
// The client only subscribes at QoS 0, so deliveries need no
// acknowledgement. Encode exists for test peers.
type PublishPacket struct {
	Topic   string
	Payload []byte

	QoS    byte
	Retain bool
	DUP    bool

	// PacketID is present on the wire only when QoS > 0.
	PacketID uint16
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType { return PacketPUBLISH }

func (p *PublishPacket) headerFlags() byte {
	flags := p.QoS << publishQoSShift
	if p.Retain {
		flags |= publishFlagRetain
	}
	if p.DUP {
		flags |= publishFlagDUP
	}
	return flags
}

// Encode writes the packet to the writer.
func (p *PublishPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	body := make([]byte, 0, 2+len(p.Topic)+2+len(p.Payload))

	body, err := appendString(body, p.Topic)
	if err != nil {
		return 0, err
	}
	if p.QoS > 0 {
		body = append(body, byte(p.PacketID>>8), byte(p.PacketID))
	}
	body = append(body, p.Payload...)

	return writeFrame(w, PacketPUBLISH, p.headerFlags(), body)
}

func (p *PublishPacket) decode(header FixedHeader, fields *fieldReader) error {
	if header.QoS() > 2 {
		return ErrInvalidPacketFlags
	}

	p.QoS = header.QoS()
	p.Retain = header.Retain()
	p.DUP = header.DUP()

	var err error
	if p.Topic, err = fields.readString(); err != nil {
		return err
	}

	if p.QoS > 0 {
		if p.PacketID, err = fields.readUint16(); err != nil {
			return err
		}
	}

	p.Payload = fields.readRest()
	return nil
}

// Validate checks the packet before encoding.
func (p *PublishPacket) Validate() error {
	switch {
	case p.Topic == "":
		return ErrTopicNameEmpty
	case p.QoS > 2:
		return ErrInvalidQoS
	case p.QoS == 0 && p.DUP:
		return ErrInvalidPacketFlags
	case p.QoS > 0 && p.PacketID == 0:
		return ErrPacketIDRequired
	}
	return nil
}
