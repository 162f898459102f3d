package mqtt311

import (
	"bytes"
	"io"
	"runtime"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameReaderBackToBack(t *testing.T) {
	connack := []byte{0x20, 0x02, 0x00, 0x00}
	publish := []byte{0x30, 0x07, 0x00, 0x03, 'a', '/', 'b', 'h', 'i'}
	stream := append(append([]byte{}, connack...), publish...)

	readers := map[string]func(io.Reader) io.Reader{
		"all at once":   func(r io.Reader) io.Reader { return r },
		"one byte":      iotest.OneByteReader,
		"half reads":    iotest.HalfReader,
		"data with EOF": iotest.DataErrReader,
	}

	for name, wrap := range readers {
		t.Run(name, func(t *testing.T) {
			fr := NewFrameReader(wrap(bytes.NewReader(stream)), 0)

			first, err := fr.Next()
			require.NoError(t, err)
			assert.Equal(t, connack, first.Raw)
			assert.Equal(t, PacketCONNACK, first.Type())
			assert.Equal(t, []byte{0x00, 0x00}, first.Body())

			second, err := fr.Next()
			require.NoError(t, err)
			assert.Equal(t, publish, second.Raw)
			assert.Equal(t, PacketPUBLISH, second.Type())
			assert.Equal(t, uint32(7), second.RemainingLength)

			_, err = fr.Next()
			assert.ErrorIs(t, err, io.EOF)
			assert.NotErrorIs(t, err, ErrTruncatedFrame)
		})
	}
}

func TestFrameReaderDoesNotReadAhead(t *testing.T) {
	stream := bytes.NewReader([]byte{0xC0, 0x00, 0xD0, 0x00})

	frame, err := ReadFrame(stream, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC0, 0x00}, frame.Raw)
	assert.Equal(t, 2, stream.Len(), "the next frame stays in the stream")
}

func TestFrameReaderMultiByteLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 200)
	data, err := EncodePacket(&PublishPacket{Topic: "t", Payload: payload})
	require.NoError(t, err)

	frame, err := ReadFrame(iotest.OneByteReader(bytes.NewReader(data)), 0)
	require.NoError(t, err)
	assert.Equal(t, data, frame.Raw)
	assert.Equal(t, uint32(203), frame.RemainingLength)
	assert.Len(t, frame.Body(), 203)
}

func TestFrameReaderTruncated(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"after header byte", []byte{0x20}},
		{"inside remaining length", []byte{0x30, 0x80}},
		{"inside body", []byte{0x20, 0x02, 0x00}},
		{"empty body read", []byte{0x30, 0x05}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.input), 0)
			assert.ErrorIs(t, err, ErrTruncatedFrame)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		})
	}
}

func TestFrameReaderMalformedLength(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x30, 0x80, 0x80, 0x80, 0x80, 0x01}), 0)
	assert.ErrorIs(t, err, ErrVarintMalformed)
}

func TestFrameReaderTooLarge(t *testing.T) {
	// Remaining length 321, body never sent
	_, err := ReadFrame(bytes.NewReader([]byte{0x30, 0xC1, 0x02}), 320)
	assert.ErrorIs(t, err, ErrPacketTooLarge)

	frame, err := ReadFrame(bytes.NewReader(append([]byte{0x30, 0xC1, 0x02}, make([]byte, 321)...)), 321)
	require.NoError(t, err)
	assert.Equal(t, uint32(321), frame.RemainingLength)
}

func TestFrameReaderAnnouncedLengthDoesNotAllocate(t *testing.T) {
	// The header announces 256 MiB, only a few body bytes follow.
	stream := []byte{0x30, 0xFF, 0xFF, 0xFF, 0x7F, 0x00, 0x01, 't'}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	_, err := ReadFrame(bytes.NewReader(stream), 0)

	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, ErrTruncatedFrame)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20),
		"memory must follow the bytes received, not the announced length")
}

func TestFrameFlags(t *testing.T) {
	frame := Frame{Header: 0x82}
	assert.Equal(t, PacketSUBSCRIBE, frame.Type())
	assert.Equal(t, byte(0x02), frame.Flags())
}
