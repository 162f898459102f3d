package mqtt311

import (
	"errors"
	"fmt"
	"io"
)

// DefaultSubscribePacketID is the packet identifier used when a SUBSCRIBE
// packet does not set one. The client never has more than one SUBSCRIBE in
// flight, so a constant identifier is sufficient.
const DefaultSubscribePacketID uint16 = 1

var (
	ErrNoSubscriptions  = errors.New("subscribe requires at least one topic filter")
	ErrEmptyTopicFilter = errors.New("topic filter cannot be empty")
)

// Subscription represents a topic filter with its requested QoS.
// MQTT v3.1.1 spec: Section 3.8.3
type Subscription struct {
	TopicFilter string
	QoS         byte
}

// SubscribePacket represents an MQTT SUBSCRIBE packet.
// MQTT v3.1.1 spec: Section 3.8
type SubscribePacket struct {
	// PacketID is the packet identifier. Zero selects DefaultSubscribePacketID.
	PacketID      uint16
	Subscriptions []Subscription
}

// NewSubscribePacket builds a QoS 0 SUBSCRIBE for the given topic filters, in order.
func NewSubscribePacket(filters ...string) *SubscribePacket {
	subs := make([]Subscription, 0, len(filters))
	for _, f := range filters {
		subs = append(subs, Subscription{TopicFilter: f})
	}

	return &SubscribePacket{Subscriptions: subs}
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType { return PacketSUBSCRIBE }

// ID returns the packet identifier that goes on the wire.
func (p *SubscribePacket) ID() uint16 {
	if p.PacketID == 0 {
		return DefaultSubscribePacketID
	}
	return p.PacketID
}

// Encode writes the packet to the writer.
func (p *SubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	id := p.ID()
	body := []byte{byte(id >> 8), byte(id)}

	var err error
	for _, sub := range p.Subscriptions {
		if body, err = appendString(body, sub.TopicFilter); err != nil {
			return 0, fmt.Errorf("topic filter %.32q: %w", sub.TopicFilter, err)
		}
		body = append(body, sub.QoS)
	}

	return writeFrame(w, PacketSUBSCRIBE, flagsSubscribe, body)
}

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if len(p.Subscriptions) == 0 {
		return ErrNoSubscriptions
	}
	for _, sub := range p.Subscriptions {
		if sub.TopicFilter == "" {
			return ErrEmptyTopicFilter
		}
		if len(sub.TopicFilter) > maxUint16 {
			return ErrStringTooLong
		}
		if sub.QoS > 2 {
			return ErrInvalidQoS
		}
	}
	return nil
}
