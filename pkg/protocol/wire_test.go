package protocol

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

func sampleMessage() *Message {
	sink := MustParseURI("//svc-b/20/1/0")
	m := NewPublish(MustParseURI("//svc-a/10/1/8001"), FormatText, []byte("hello"))
	m.Attributes.Sink = &sink
	m.Attributes.TTL = 1500
	return m
}

func TestMessageRoundTrip(t *testing.T) {
	in := sampleMessage()
	b, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Message
	if err := out.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Attributes.ID != in.Attributes.ID || out.Topic() != in.Topic() {
		t.Fatalf("attributes mismatch: %+v vs %+v", out.Attributes, in.Attributes)
	}
	if out.Attributes.Sink == nil || *out.Attributes.Sink != *in.Attributes.Sink {
		t.Fatalf("sink mismatch: %+v", out.Attributes.Sink)
	}
	if out.Attributes.Type != MessageTypePublish || out.Attributes.Priority != PriorityCS1 ||
		out.Attributes.TTL != 1500 || out.Attributes.PayloadFormat != FormatText {
		t.Fatalf("scalar mismatch: %+v", out.Attributes)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("payload mismatch: %q", out.Payload)
	}
	again, _ := out.MarshalBinary()
	if !bytes.Equal(again, b) {
		t.Fatalf("re-encoding differs")
	}
}

func TestMessageSkipsUnknownFields(t *testing.T) {
	b, _ := sampleMessage().MarshalBinary()
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 100, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)
	var out Message
	if err := out.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal with unknown fields: %v", err)
	}
	if string(out.Payload) != "hello" {
		t.Fatalf("payload mismatch: %q", out.Payload)
	}
}

func TestMessageMalformed(t *testing.T) {
	var m Message
	if err := m.UnmarshalBinary([]byte{0x0a, 0x05, 0x01}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("truncated: want ErrMalformed, got %v", err)
	}
	// payload sent as varint
	bad := protowire.AppendTag(nil, fieldMsgPayload, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 1)
	if err := m.UnmarshalBinary(bad); !errors.Is(err, ErrMalformed) {
		t.Fatalf("wire type: want ErrMalformed, got %v", err)
	}
}

func TestNewUUIDOrdered(t *testing.T) {
	a, b := NewUUID(), NewUUID()
	if a.IsZero() || a == b {
		t.Fatalf("ids not unique: %v %v", a, b)
	}
	if b.MSB <= a.MSB {
		t.Fatalf("ids not increasing: %x then %x", a.MSB, b.MSB)
	}
	if (a.MSB>>12)&0xf != 8 || a.LSB>>62 != 0b10 {
		t.Fatalf("version/variant bits wrong: %v", a)
	}
	if d := time.Since(a.Time()); d < 0 || d > time.Minute {
		t.Fatalf("embedded time %v is %v away from now", a.Time(), d)
	}
}

func TestResponseCarriesRequestID(t *testing.T) {
	method := MustParseURI("//test_rpc.app/1/1/1")
	client := MustParseURI("//svc-a/10/1/0")
	req := NewRequest(method, client, FormatRaw, []byte{0})
	rsp := NewResponse(req, FormatRaw, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if rsp.Attributes.Type != MessageTypeResponse || rsp.Attributes.ReqID != req.Attributes.ID {
		t.Fatalf("response attributes: %+v", rsp.Attributes)
	}
	if rsp.Attributes.ID == req.Attributes.ID || rsp.Topic() != method {
		t.Fatalf("response id/topic: %+v", rsp.Attributes)
	}
	rsp.Attributes.Sink.ResourceID = 7
	if req.Attributes.Sink.ResourceID != 0 {
		t.Fatalf("response shares sink with request")
	}

	b, err := rsp.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Message
	if err := out.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Attributes.ReqID != req.Attributes.ID || out.Attributes.Type != MessageTypeResponse {
		t.Fatalf("decoded response: %+v", out.Attributes)
	}
}

func TestCloneIsDeep(t *testing.T) {
	in := sampleMessage()
	c := in.Clone()
	c.Payload[0] = 'J'
	c.Attributes.Sink.Authority = "other"
	if string(in.Payload) != "hello" || in.Attributes.Sink.Authority != "svc-b" {
		t.Fatalf("clone aliases original: %+v %q", in.Attributes.Sink, in.Payload)
	}
}
