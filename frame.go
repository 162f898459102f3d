package mqtt311

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Frame errors.
var (
	ErrTruncatedFrame = errors.New("stream ended inside a packet")
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")
)

// frameReadChunk caps the body space reserved before any body byte arrives.
const frameReadChunk = 64 * 1024

// Frame is one complete packet as it appeared on the wire. Its boundary is
// known only from the remaining length in the fixed header.
type Frame struct {
	// Header is the first byte: packet type and flags.
	Header byte

	// RemainingLength is the decoded remaining length.
	RemainingLength uint32

	// Raw is the complete frame, including the fixed header.
	Raw []byte
}

// Type returns the packet type of the frame.
func (f Frame) Type() PacketType {
	return PacketType(f.Header >> 4)
}

// Flags returns the type specific flags of the frame.
func (f Frame) Flags() byte {
	return f.Header & 0x0F
}

// Body returns the variable header and payload.
func (f Frame) Body() []byte {
	return f.Raw[len(f.Raw)-int(f.RemainingLength):]
}

// FrameReader splits a byte stream into frames. It knows nothing about
// packet bodies and never reads past the end of the current frame, so the
// same stream can be handed to another reader between frames.
type FrameReader struct {
	r       io.Reader
	maxSize uint32
}

// NewFrameReader returns a reader of frames from r.
// If maxSize is greater than 0, frames with a larger remaining length fail
// with ErrPacketTooLarge.
func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{r: r, maxSize: maxSize}
}

// ReadFrame reads one frame from r. See FrameReader.Next.
func ReadFrame(r io.Reader, maxSize uint32) (Frame, error) {
	return NewFrameReader(r, maxSize).Next()
}

// Next reads exactly one frame.
//
// It returns io.EOF if the stream ends cleanly before a frame starts, and
// ErrTruncatedFrame if it ends anywhere inside a frame. Any error leaves
// the stream at an undefined position and must be treated as fatal.
//
// The body is read in pieces, so memory grows with the bytes that actually
// arrive rather than with the length the header announces.
func (fr *FrameReader) Next() (Frame, error) {
	var raw bytes.Buffer
	raw.Grow(1 + maxVarintBytes)

	// The header decoder reads byte by byte; the tee keeps the exact bytes
	// so unknown packets can be reproduced unchanged.
	var header FixedHeader
	if _, err := header.Decode(io.TeeReader(fr.r, &raw)); err != nil {
		switch {
		case errors.Is(err, io.EOF) && raw.Len() == 0:
			return Frame{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return Frame{}, fmt.Errorf("%w: %w", ErrTruncatedFrame, err)
		default:
			return Frame{}, err
		}
	}

	if fr.maxSize > 0 && header.RemainingLength > fr.maxSize {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, header.RemainingLength, fr.maxSize)
	}

	raw.Grow(min(int(header.RemainingLength), frameReadChunk))

	if _, err := io.CopyN(&raw, fr.r, int64(header.RemainingLength)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, fmt.Errorf("%w: %w", ErrTruncatedFrame, err)
	}

	return Frame{
		Header:          raw.Bytes()[0],
		RemainingLength: header.RemainingLength,
		Raw:             raw.Bytes(),
	}, nil
}
