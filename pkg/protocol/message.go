package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// UUID is a 128-bit message identifier split as in the uProtocol UUID type.
type UUID struct {
	MSB uint64
	LSB uint64
}

// IsZero reports whether the id was never set.
func (id UUID) IsZero() bool { return id.MSB == 0 && id.LSB == 0 }

// Time returns the millisecond timestamp embedded by NewUUID.
func (id UUID) Time() time.Time { return time.UnixMilli(int64(id.MSB >> 16)) }

func (id UUID) String() string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], id.MSB)
	binary.BigEndian.PutUint64(b[8:16], id.LSB)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

var uuidGen struct {
	mu      sync.Mutex
	lastMS  uint64
	counter uint64
}

// NewUUID returns a time-ordered UUIDv8: 48-bit unix millis, version 8, a
// 12-bit per-millisecond counter, RFC 4122 variant and 62 random bits.
func NewUUID() UUID {
	ms := uint64(time.Now().UnixMilli()) & (1<<48 - 1)
	uuidGen.mu.Lock()
	if ms <= uuidGen.lastMS {
		ms = uuidGen.lastMS
		if uuidGen.counter < 0xfff {
			uuidGen.counter++
		}
	} else {
		uuidGen.lastMS = ms
		uuidGen.counter = 0
	}
	cnt := uuidGen.counter
	uuidGen.mu.Unlock()

	var rnd [8]byte
	_, _ = rand.Read(rnd[:])
	lsb := binary.BigEndian.Uint64(rnd[:])
	lsb = lsb&^(uint64(0b11)<<62) | uint64(0b10)<<62
	return UUID{MSB: ms<<16 | 0x8<<12 | cnt, LSB: lsb}
}

// Attributes is the message metadata. Source is the topic used for dispatch.
type Attributes struct {
	ID            UUID
	Type          MessageType
	Source        UUri
	Sink          *UUri
	Priority      Priority
	TTL           uint32 // milliseconds, 0 = no expiry
	ReqID         UUID   // id of the request a response answers
	PayloadFormat PayloadFormat
}

// Message is one unit carried by a frame: attributes plus opaque payload.
type Message struct {
	Attributes Attributes
	Payload    []byte
}

// NewPublish builds a publish message for topic with a fresh id.
func NewPublish(topic UUri, format PayloadFormat, payload []byte) *Message {
	return &Message{
		Attributes: Attributes{
			ID:            NewUUID(),
			Type:          MessageTypePublish,
			Source:        topic,
			Priority:      PriorityCS1,
			PayloadFormat: format,
		},
		Payload: payload,
	}
}

// NewNotification builds a notification from source addressed to sink.
func NewNotification(source, sink UUri, format PayloadFormat, payload []byte) *Message {
	m := NewPublish(source, format, payload)
	m.Attributes.Type = MessageTypeNotification
	m.Attributes.Sink = &sink
	return m
}

// NewRequest builds a request for method. The reply is expected on method
// as well, addressed to replyTo.
func NewRequest(method, replyTo UUri, format PayloadFormat, payload []byte) *Message {
	m := NewNotification(method, replyTo, format, payload)
	m.Attributes.Type = MessageTypeRequest
	return m
}

// NewResponse answers req. Source and sink are copied from the request and
// ReqID carries the request id.
func NewResponse(req *Message, format PayloadFormat, payload []byte) *Message {
	r := req.Clone()
	r.Attributes.ID = NewUUID()
	r.Attributes.Type = MessageTypeResponse
	r.Attributes.ReqID = req.Attributes.ID
	r.Attributes.PayloadFormat = format
	r.Payload = payload
	return r
}

// Topic returns the dispatch topic of m.
func (m *Message) Topic() UUri { return m.Attributes.Source }

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	c := *m
	if m.Attributes.Sink != nil {
		s := *m.Attributes.Sink
		c.Attributes.Sink = &s
	}
	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}
	return &c
}
