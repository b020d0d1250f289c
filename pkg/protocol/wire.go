package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when a message body cannot be decoded.
var ErrMalformed = errors.New("protocol: malformed message")

// Field numbers of the uProtocol v1 messages we encode.
const (
	fieldMsgAttributes protowire.Number = 1
	fieldMsgPayload    protowire.Number = 2

	fieldAttrID            protowire.Number = 1
	fieldAttrType          protowire.Number = 2
	fieldAttrSource        protowire.Number = 3
	fieldAttrSink          protowire.Number = 4
	fieldAttrPriority      protowire.Number = 5
	fieldAttrTTL           protowire.Number = 6
	fieldAttrReqID         protowire.Number = 9
	fieldAttrPayloadFormat protowire.Number = 12

	fieldURIAuthority  protowire.Number = 1
	fieldURIUEID       protowire.Number = 2
	fieldURIUEVersion  protowire.Number = 3
	fieldURIResourceID protowire.Number = 4

	fieldUUIDMSB protowire.Number = 1
	fieldUUIDLSB protowire.Number = 2
)

// MarshalBinary encodes m as a protobuf UMessage. The output is
// deterministic: fields are written in number order and zero scalars are
// omitted, as proto3 does.
func (m *Message) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("protocol: nil message")
	}
	attrs := appendAttributes(nil, &m.Attributes)
	b := make([]byte, 0, len(attrs)+len(m.Payload)+16)
	b = protowire.AppendTag(b, fieldMsgAttributes, protowire.BytesType)
	b = protowire.AppendBytes(b, attrs)
	if len(m.Payload) > 0 {
		b = protowire.AppendTag(b, fieldMsgPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Payload)
	}
	return b, nil
}

// UnmarshalBinary decodes a protobuf UMessage into m. Unknown fields are skipped.
func (m *Message) UnmarshalBinary(b []byte) error {
	*m = Message{}
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldMsgAttributes:
			if typ != protowire.BytesType {
				return wireTypeErr("attributes", typ)
			}
			return m.Attributes.unmarshal(v)
		case fieldMsgPayload:
			if typ != protowire.BytesType {
				return wireTypeErr("payload", typ)
			}
			m.Payload = append([]byte(nil), v...)
		}
		return nil
	})
}

func appendAttributes(b []byte, a *Attributes) []byte {
	if !a.ID.IsZero() {
		b = protowire.AppendTag(b, fieldAttrID, protowire.BytesType)
		b = protowire.AppendBytes(b, appendUUID(nil, a.ID))
	}
	b = appendEnum(b, fieldAttrType, int32(a.Type))
	if !a.Source.IsZero() {
		b = protowire.AppendTag(b, fieldAttrSource, protowire.BytesType)
		b = protowire.AppendBytes(b, appendURI(nil, a.Source))
	}
	if a.Sink != nil {
		b = protowire.AppendTag(b, fieldAttrSink, protowire.BytesType)
		b = protowire.AppendBytes(b, appendURI(nil, *a.Sink))
	}
	b = appendEnum(b, fieldAttrPriority, int32(a.Priority))
	if a.TTL != 0 {
		b = protowire.AppendTag(b, fieldAttrTTL, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(a.TTL))
	}
	if !a.ReqID.IsZero() {
		b = protowire.AppendTag(b, fieldAttrReqID, protowire.BytesType)
		b = protowire.AppendBytes(b, appendUUID(nil, a.ReqID))
	}
	b = appendEnum(b, fieldAttrPayloadFormat, int32(a.PayloadFormat))
	return b
}

func (a *Attributes) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldAttrID:
			if typ != protowire.BytesType {
				return wireTypeErr("id", typ)
			}
			return a.ID.unmarshal(v)
		case fieldAttrType:
			if typ != protowire.VarintType {
				return wireTypeErr("type", typ)
			}
			a.Type = MessageType(int32(x))
		case fieldAttrSource:
			if typ != protowire.BytesType {
				return wireTypeErr("source", typ)
			}
			return a.Source.unmarshal(v)
		case fieldAttrSink:
			if typ != protowire.BytesType {
				return wireTypeErr("sink", typ)
			}
			var sink UUri
			if err := sink.unmarshal(v); err != nil {
				return err
			}
			a.Sink = &sink
		case fieldAttrPriority:
			if typ != protowire.VarintType {
				return wireTypeErr("priority", typ)
			}
			a.Priority = Priority(int32(x))
		case fieldAttrTTL:
			if typ != protowire.VarintType {
				return wireTypeErr("ttl", typ)
			}
			a.TTL = uint32(x)
		case fieldAttrReqID:
			if typ != protowire.BytesType {
				return wireTypeErr("reqid", typ)
			}
			return a.ReqID.unmarshal(v)
		case fieldAttrPayloadFormat:
			if typ != protowire.VarintType {
				return wireTypeErr("payload_format", typ)
			}
			a.PayloadFormat = PayloadFormat(int32(x))
		}
		return nil
	})
}

func appendURI(b []byte, u UUri) []byte {
	if u.Authority != "" {
		b = protowire.AppendTag(b, fieldURIAuthority, protowire.BytesType)
		b = protowire.AppendString(b, u.Authority)
	}
	b = appendUint(b, fieldURIUEID, u.UEID)
	b = appendUint(b, fieldURIUEVersion, u.UEVersionMajor)
	b = appendUint(b, fieldURIResourceID, u.ResourceID)
	return b
}

func (u *UUri) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldURIAuthority:
			if typ != protowire.BytesType {
				return wireTypeErr("authority_name", typ)
			}
			u.Authority = string(v)
		case fieldURIUEID, fieldURIUEVersion, fieldURIResourceID:
			if typ != protowire.VarintType {
				return wireTypeErr("uri number", typ)
			}
			switch num {
			case fieldURIUEID:
				u.UEID = uint32(x)
			case fieldURIUEVersion:
				u.UEVersionMajor = uint32(x)
			default:
				u.ResourceID = uint32(x)
			}
		}
		return nil
	})
}

func appendUUID(b []byte, id UUID) []byte {
	b = protowire.AppendTag(b, fieldUUIDMSB, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, id.MSB)
	b = protowire.AppendTag(b, fieldUUIDLSB, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, id.LSB)
	return b
}

func (id *UUID) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fieldUUIDMSB, fieldUUIDLSB:
			if typ != protowire.Fixed64Type {
				return wireTypeErr("uuid", typ)
			}
			if num == fieldUUIDMSB {
				id.MSB = x
			} else {
				id.LSB = x
			}
		}
		return nil
	})
}

func appendEnum(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendUint(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// walk iterates the fields of one protobuf message. Varint and fixed values
// are passed in x, length-delimited values in v.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		var (
			v []byte
			x uint64
		)
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			x, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var x32 uint32
			x32, n = protowire.ConsumeFixed32(b)
			x = uint64(x32)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

func wireTypeErr(field string, typ protowire.Type) error {
	return fmt.Errorf("%w: field %s has wire type %d", ErrMalformed, field, typ)
}
