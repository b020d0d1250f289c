package protocol

import "upsock/pkg/protocol/codec"

// NewPublishWithBody encodes v according to format and returns a publish
// message for topic carrying it.
func NewPublishWithBody(topic UUri, format PayloadFormat, v any, reg *codec.Registry) (*Message, error) {
	b, err := EncodePayload(reg, format, v)
	if err != nil {
		return nil, err
	}
	return NewPublish(topic, format, b), nil
}

// DecodeMessageBody decodes the payload of m into v using the format
// recorded in its attributes.
func DecodeMessageBody(m *Message, v any, reg *codec.Registry) error {
	return DecodePayload(reg, m.Attributes.PayloadFormat, m.Payload, v)
}
