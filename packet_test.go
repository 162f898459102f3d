package mqtt311

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeBytes reads exactly one packet from data.
func decodeBytes(t *testing.T, data []byte) Packet {
	t.Helper()

	r := bytes.NewReader(data)
	pkt, n, err := ReadPacket(r, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Zero(t, r.Len(), "packet must consume the whole input")

	return pkt
}

func TestClientIDValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      ClientID
		wantErr bool
	}{
		{"absent", ClientID{}, false},
		{"alphanumeric", NewClientID("abc123"), false},
		{"single character", NewClientID("a"), false},
		{"23 characters", NewClientID(strings.Repeat("a", 23)), false},
		{"empty", NewClientID(""), true},
		{"24 characters", NewClientID(strings.Repeat("a", 24)), true},
		{"space and punctuation", NewClientID("bad id!"), true},
		{"dash", NewClientID("client-1"), true},
		{"non-ASCII letter", NewClientID("clientü"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClientID)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClientIDValue(t *testing.T) {
	var absent ClientID
	id, ok := absent.Value()
	assert.False(t, ok)
	assert.False(t, absent.IsSet())
	assert.Empty(t, id)

	present := NewClientID("sensor01")
	id, ok = present.Value()
	assert.True(t, ok)
	assert.True(t, present.IsSet())
	assert.Equal(t, "sensor01", id)
	assert.Equal(t, "sensor01", present.String())
}

func TestControlPackets(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
		want   []byte
	}{
		{"PINGREQ", &PingreqPacket{}, []byte{0xC0, 0x00}},
		{"PINGRESP", &PingrespPacket{}, []byte{0xD0, 0x00}},
		{"DISCONNECT", &DisconnectPacket{}, []byte{0xE0, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePacket(tt.packet)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)
		})
	}
}

func TestPingrespDecode(t *testing.T) {
	pkt := decodeBytes(t, []byte{0xD0, 0x00})
	assert.IsType(t, &PingrespPacket{}, pkt)

	_, _, err := ReadPacket(bytes.NewReader([]byte{0xD0, 0x01, 0x00}), 0)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestUnknownPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  PacketType
	}{
		{"reserved type 0", []byte{0x00, 0x00}, PacketReserved},
		{"reserved type 15 with body", []byte{0xF3, 0x02, 0xAB, 0xCD}, PacketReserved15},
		{"PUBACK", []byte{0x40, 0x02, 0x00, 0x07}, PacketPUBACK},
		{"UNSUBACK", []byte{0xB0, 0x02, 0x00, 0x01}, PacketUNSUBACK},
		{"inbound CONNECT", []byte{0x10, 0x0C, 0x00, 0x04, 'M', 'Q', 'T', 'T', 0x04, 0x02, 0x00, 0x3C, 0x00, 0x00}, PacketCONNECT},
		{"inbound PINGREQ", []byte{0xC0, 0x00}, PacketPINGREQ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := decodeBytes(t, tt.input)

			unknown, ok := pkt.(*UnknownPacket)
			require.True(t, ok, "got %T", pkt)
			assert.Equal(t, tt.want, unknown.Type())
			assert.Equal(t, tt.input, unknown.Raw)

			data, err := EncodePacket(unknown)
			require.NoError(t, err)
			assert.Equal(t, tt.input, data)
		})
	}
}
