package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := sampleMessage()
	body, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := binary.LittleEndian.Uint64(buf.Bytes()[:LengthPrefixSize]); got != uint64(len(body)) {
		t.Fatalf("prefix %d, want %d", got, len(body))
	}
	for i := 0; i < 2; i++ {
		got, err := ReadFrame(&buf, 0)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("frame %d mismatch", i)
		}
	}
	if _, err := ReadFrame(&buf, 0); err != io.EOF {
		t.Fatalf("want io.EOF at end, got %v", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	var hdr [LengthPrefixSize]byte
	binary.LittleEndian.PutUint64(hdr[:], 1<<40)
	_, err := ReadFrame(bytes.NewReader(hdr[:]), 1024)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("want ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteFrame(&buf, []byte("0123456789"))
	short := buf.Bytes()[:buf.Len()-3]
	_, err := ReadFrame(bytes.NewReader(short), 0)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("want ErrUnexpectedEOF, got %v", err)
	}
}

func TestDecodeFrame(t *testing.T) {
	in := sampleMessage()
	frame, err := EncodeFrame(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	stream := append(append([]byte{}, frame...), frame[:4]...)
	m, n, err := DecodeFrame(stream, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(frame) || m.Topic() != in.Topic() {
		t.Fatalf("consumed %d of %d, topic %v", n, len(frame), m.Topic())
	}
	if _, _, err := DecodeFrame(stream[n:], 0); err != io.ErrUnexpectedEOF {
		t.Fatalf("partial: want ErrUnexpectedEOF, got %v", err)
	}
}
