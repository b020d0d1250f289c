package protocol

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"upsock/pkg/protocol/codec"
)

func TestEncodeDecodePayloadJSON(t *testing.T) {
	reg := codec.NewRegistry()
	in := map[string]any{"x": 1, "y": "z"}
	b, err := EncodePayload(reg, FormatJSON, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out map[string]any
	if err := DecodePayload(reg, FormatJSON, b, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["y"] != "z" {
		t.Fatalf("value mismatch: %#v", out)
	}
}

func TestEncodeDecodePayloadCBOR(t *testing.T) {
	// CBOR is not preloaded; CodecFor falls back to a fresh codec.
	reg := codec.NewRegistry()
	buf := bytes.Repeat([]byte{0xAA}, 16)
	b, err := EncodePayload(reg, FormatCBOR, map[string]any{"buf": buf})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out map[string]any
	if err := DecodePayload(reg, FormatCBOR, b, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out["buf"].([]byte), buf) {
		t.Fatalf("value mismatch: %#v", out)
	}
}

func TestEncodeDecodePayloadProto(t *testing.T) {
	reg := codec.NewRegistry()
	s, err := structpb.NewStruct(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	m, err := NewPublishWithBody(MustParseURI("//test.app/18002/1/8001"), FormatProtobuf, s, reg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out structpb.Struct
	if err := DecodeMessageBody(m, &out, reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Fields["k"].GetStringValue() != "v" {
		t.Fatalf("value mismatch")
	}
}

func TestEncodePayloadRaw(t *testing.T) {
	b, err := EncodePayload(nil, FormatText, "hello")
	if err != nil || string(b) != "hello" {
		t.Fatalf("text: %q %v", b, err)
	}
	b, err = EncodePayload(nil, FormatRaw, []byte{1, 2})
	if err != nil || len(b) != 2 {
		t.Fatalf("raw: %v %v", b, err)
	}
	if _, err := EncodePayload(nil, FormatRaw, 3); err == nil {
		t.Fatalf("expected error for int raw payload")
	}
	if err := DecodePayload(nil, FormatSomeIP, nil, new(any)); err == nil {
		t.Fatalf("expected error for format without codec")
	}
}
