package mqtt311

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Encoding errors.
var (
	ErrStringTooLong   = errors.New("field exceeds 65535 bytes")
	ErrInvalidUTF8     = errors.New("string is not well-formed UTF-8")
	ErrVarintTooLarge  = errors.New("remaining length exceeds 268435455")
	ErrVarintMalformed = errors.New("malformed remaining length")
)

const (
	maxUint16      = 65535
	maxVarint      = 1<<28 - 1
	maxVarintBytes = 4
)

// checkString applies MQTT 3.1.1 section 1.5.3: at most 65535 bytes of
// UTF-8 with no U+0000.
func checkString(s string) error {
	if len(s) > maxUint16 {
		return ErrStringTooLong
	}
	if !utf8.ValidString(s) || strings.IndexByte(s, 0) >= 0 {
		return ErrInvalidUTF8
	}
	return nil
}

// appendString appends s with its two byte length prefix.
func appendString(dst []byte, s string) ([]byte, error) {
	if err := checkString(s); err != nil {
		return dst, err
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...), nil
}

// appendBytes appends data with its two byte length prefix.
func appendBytes(dst, data []byte) ([]byte, error) {
	if len(data) > maxUint16 {
		return dst, ErrStringTooLong
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(data)))
	return append(dst, data...), nil
}

// fieldReader consumes the variable header and payload of a received
// frame. Reads past the end fail with io.ErrUnexpectedEOF.
type fieldReader struct {
	buf []byte
}

func (r *fieldReader) len() int {
	return len(r.buf)
}

func (r *fieldReader) readUint16() (uint16, error) {
	if len(r.buf) < 2 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint16(r.buf)
	r.buf = r.buf[2:]
	return v, nil
}

func (r *fieldReader) readString() (string, error) {
	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	if len(r.buf) < int(n) {
		return "", io.ErrUnexpectedEOF
	}

	s := string(r.buf[:n])
	r.buf = r.buf[n:]

	if err := checkString(s); err != nil {
		return "", err
	}
	return s, nil
}

// readRest returns everything not consumed yet, or nil when nothing is left.
func (r *fieldReader) readRest() []byte {
	if len(r.buf) == 0 {
		return nil
	}
	rest := r.buf
	r.buf = nil
	return rest
}

// AppendVarint appends the remaining length encoding of value to dst:
// seven bits per byte, least significant group first, high bit set on
// every byte but the last.
func AppendVarint(dst []byte, value uint32) ([]byte, error) {
	if value > maxVarint {
		return dst, fmt.Errorf("%w: %d", ErrVarintTooLarge, value)
	}

	for value >= 0x80 {
		dst = append(dst, byte(value)|0x80)
		value >>= 7
	}
	return append(dst, byte(value)), nil
}

// EncodeVarint returns the remaining length encoding of value.
// Zero encodes as a single byte.
func EncodeVarint(value uint32) ([]byte, error) {
	out, err := AppendVarint(make([]byte, 0, maxVarintBytes), value)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeVarint reads a remaining length from r one byte at a time, so it
// never consumes bytes past the end of the encoded value. It returns the
// value and the number of bytes consumed. A fourth byte with the
// continuation bit set is ErrVarintMalformed.
func DecodeVarint(r io.Reader) (uint32, int, error) {
	var (
		value uint32
		b     [1]byte
	)

	for n := 0; n < maxVarintBytes; n++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, n, err
		}

		value |= uint32(b[0]&0x7F) << (7 * n)
		if b[0]&0x80 == 0 {
			return value, n + 1, nil
		}
	}

	return 0, maxVarintBytes, ErrVarintMalformed
}

// VarintSize returns how many bytes EncodeVarint produces for value.
func VarintSize(value uint32) int {
	size := 1
	for value >= 0x80 && size < maxVarintBytes {
		value >>= 7
		size++
	}
	return size
}
