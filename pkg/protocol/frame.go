package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout, all integers little-endian:
//
//	[8 bytes] length N of the encoded message (uint64)
//	[N bytes] protobuf-encoded UMessage
//
// The 8-byte prefix matches peers that write a native size_t on 64-bit hosts.
const (
	LengthPrefixSize = 8

	// DefaultMaxFrameSize bounds a single message body (16 MiB).
	DefaultMaxFrameSize = 16 << 20
)

// ErrFrameTooLarge is returned when a frame's declared length exceeds the limit.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// EncodeFrame returns prefix and body of m as one buffer.
func EncodeFrame(m *Message) ([]byte, error) {
	body, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, LengthPrefixSize+len(body))
	binary.LittleEndian.PutUint64(out[:LengthPrefixSize], uint64(len(body)))
	copy(out[LengthPrefixSize:], body)
	return out, nil
}

// WriteFrame writes the length prefix and then the body. The two writes are
// not atomic; callers sharing w must serialize.
func WriteFrame(w io.Writer, body []byte) error {
	var hdr [LengthPrefixSize]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("write frame body: %w", err)
		}
	}
	return nil
}

// ReadFrame reads exactly one frame body from r. maxSize <= 0 selects
// DefaultMaxFrameSize. A clean end of stream before the prefix yields io.EOF;
// a stream that ends mid-frame yields io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	var hdr [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(hdr[:])
	if n > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}
	body := make([]byte, int(n))
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}

// DecodeFrame parses a single frame from buf and returns the message and the
// number of bytes consumed.
func DecodeFrame(buf []byte, maxSize int) (*Message, int, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	if len(buf) < LengthPrefixSize {
		return nil, 0, io.ErrUnexpectedEOF
	}
	n := binary.LittleEndian.Uint64(buf[:LengthPrefixSize])
	if n > uint64(maxSize) {
		return nil, 0, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}
	end := LengthPrefixSize + int(n)
	if end > len(buf) {
		return nil, 0, io.ErrUnexpectedEOF
	}
	var m Message
	if err := m.UnmarshalBinary(buf[LengthPrefixSize:end]); err != nil {
		return nil, 0, err
	}
	return &m, end, nil
}
