package mqtt311

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectPacketEncode(t *testing.T) {
	tests := []struct {
		name   string
		packet *ConnectPacket
		want   []byte
	}{
		{
			name:   "absent client id",
			packet: &ConnectPacket{KeepAlive: 60},
			want: []byte{
				0x10, 0x0C,
				0x00, 0x04, 'M', 'Q', 'T', 'T',
				0x04,
				0x02,
				0x00, 0x3C,
				0x00, 0x00,
			},
		},
		{
			name:   "client id",
			packet: &ConnectPacket{ClientID: NewClientID("abc123"), KeepAlive: 10},
			want: []byte{
				0x10, 0x12,
				0x00, 0x04, 'M', 'Q', 'T', 'T',
				0x04,
				0x02,
				0x00, 0x0A,
				0x00, 0x06, 'a', 'b', 'c', '1', '2', '3',
			},
		},
		{
			name: "username and password",
			packet: &ConnectPacket{
				ClientID: NewClientID("c1"),
				Username: "test",
				Password: []byte("pw"),
			},
			want: []byte{
				0x10, 0x18,
				0x00, 0x04, 'M', 'Q', 'T', 'T',
				0x04,
				0xC2,
				0x00, 0x00,
				0x00, 0x02, 'c', '1',
				0x00, 0x04, 't', 'e', 's', 't',
				0x00, 0x02, 'p', 'w',
			},
		},
		{
			name:   "username only",
			packet: &ConnectPacket{Username: "u", KeepAlive: 0xFFFF},
			want: []byte{
				0x10, 0x0F,
				0x00, 0x04, 'M', 'Q', 'T', 'T',
				0x04,
				0x82,
				0xFF, 0xFF,
				0x00, 0x00,
				0x00, 0x01, 'u',
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			n, err := tt.packet.Encode(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.Bytes())
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func TestNewConnectPacket(t *testing.T) {
	tests := []struct {
		name    string
		id      ClientID
		wantErr bool
	}{
		{"absent", ClientID{}, false},
		{"valid", NewClientID("abc123"), false},
		{"empty", NewClientID(""), true},
		{"too long", NewClientID(strings.Repeat("x", 24)), true},
		{"invalid characters", NewClientID("bad id!"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewConnectPacket(tt.id, 60)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClientID)
				assert.Nil(t, p)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.id, p.ClientID)
			assert.Equal(t, uint16(60), p.KeepAlive)
			assert.Equal(t, PacketCONNECT, p.Type())
		})
	}
}

func TestConnectPacketEncodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		packet  *ConnectPacket
		wantErr error
	}{
		{
			name:    "invalid client id",
			packet:  &ConnectPacket{ClientID: NewClientID("no/slashes")},
			wantErr: ErrInvalidClientID,
		},
		{
			name:    "password without username",
			packet:  &ConnectPacket{Password: []byte("secret")},
			wantErr: ErrPasswordWithoutUsername,
		},
		{
			name:    "username too long",
			packet:  &ConnectPacket{Username: strings.Repeat("u", 65536)},
			wantErr: ErrStringTooLong,
		},
		{
			name:    "password too long",
			packet:  &ConnectPacket{Username: "u", Password: make([]byte, 65536)},
			wantErr: ErrStringTooLong,
		},
		{
			name:    "username with null",
			packet:  &ConnectPacket{Username: "u\x00"},
			wantErr: ErrInvalidUTF8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			_, err := tt.packet.Encode(&buf)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, buf.Len(), "no partial packet is written")
		})
	}
}

func TestConnectPacketDecodesAsUnknown(t *testing.T) {
	p, err := NewConnectPacket(NewClientID("abc"), 30)
	require.NoError(t, err)

	data, err := EncodePacket(p)
	require.NoError(t, err)

	pkt := decodeBytes(t, data)
	unknown, ok := pkt.(*UnknownPacket)
	require.True(t, ok)
	assert.Equal(t, PacketCONNECT, unknown.Type())
	assert.Equal(t, data, unknown.Raw)
}
