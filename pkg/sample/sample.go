// Package sample holds the demo publisher and subscriber: the publisher
// emits the current time, a random number and a counter on three topics; the
// subscriber decodes whatever arrives on them.
package sample

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"upsock/pkg/config"
	"upsock/pkg/identity"
	"upsock/pkg/protocol"
	"upsock/pkg/protocol/codec"
)

// Resource ids of the demo topics.
const (
	ResourceTime    = 0x8001
	ResourceRandom  = 0x8002
	ResourceCounter = 0x8003
)

// Topics are the three demo topics.
type Topics struct {
	Time    protocol.UUri
	Random  protocol.UUri
	Counter protocol.UUri
}

// TopicsFor derives the demo topics from the publisher's identity.
func TopicsFor(c config.IdentityConfig) Topics {
	return Topics{
		Time:    identity.Topic(c, ResourceTime),
		Random:  identity.Topic(c, ResourceRandom),
		Counter: identity.Topic(c, ResourceCounter),
	}
}

// Name returns the short name of topic, or "" if it is not a demo topic.
func (t Topics) Name(topic protocol.UUri) string {
	switch topic {
	case t.Time:
		return "time"
	case t.Random:
		return "random"
	case t.Counter:
		return "counter"
	}
	return ""
}

// All returns the topics in publish order.
func (t Topics) All() []protocol.UUri { return []protocol.UUri{t.Time, t.Random, t.Counter} }

// Reading is one decoded sample.
type Reading struct {
	Topic protocol.UUri
	Name  string
	Value uint64
}

// EncodeValue encodes v for format. Raw payloads are little-endian integers
// of width bytes (8, 4 or 1); structured formats carry {"value": v}.
func EncodeValue(reg *codec.Registry, f protocol.PayloadFormat, v uint64, width int) ([]byte, error) {
	switch f {
	case protocol.FormatRaw, protocol.FormatUnspecified:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b[:width], nil
	case protocol.FormatText:
		return []byte(strconv.FormatUint(v, 10)), nil
	case protocol.FormatProtobuf:
		// google.protobuf.Struct numbers are doubles
		return protocol.EncodePayload(reg, f, map[string]any{"value": float64(v)})
	default:
		return protocol.EncodePayload(reg, f, map[string]any{"value": v})
	}
}

// DecodeValue reverses EncodeValue.
func DecodeValue(reg *codec.Registry, f protocol.PayloadFormat, payload []byte) (uint64, error) {
	switch f {
	case protocol.FormatRaw, protocol.FormatUnspecified:
		if len(payload) > 8 {
			return 0, fmt.Errorf("raw value is %d bytes", len(payload))
		}
		var b [8]byte
		copy(b[:], payload)
		return binary.LittleEndian.Uint64(b[:]), nil
	case protocol.FormatText:
		return strconv.ParseUint(string(payload), 10, 64)
	}
	var m map[string]any
	if err := protocol.DecodePayload(reg, f, payload, &m); err != nil {
		return 0, err
	}
	switch n := m["value"].(type) {
	case uint64:
		return n, nil
	case int64:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	case json.Number:
		return strconv.ParseUint(n.String(), 10, 64)
	default:
		return 0, fmt.Errorf("payload has no numeric value: %T", m["value"])
	}
}
