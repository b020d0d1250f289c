package protocol

import (
	"fmt"

	"upsock/pkg/protocol/codec"
)

// CodecFor returns the codec that decodes payloads of format f.
func CodecFor(r *codec.Registry, f PayloadFormat) (codec.Codec, error) {
	switch f {
	case FormatJSON:
		if c := r.Get(ContentJSON); c != nil {
			return c, nil
		}
		return codec.JSON(), nil
	case FormatCBOR:
		if c := r.Get(ContentCBOR); c != nil {
			return c, nil
		}
		return codec.CBOR()
	case FormatProtobuf:
		if c := r.Get(ContentProto); c != nil {
			return c, nil
		}
		return codec.Proto(), nil
	default:
		return nil, fmt.Errorf("no codec for payload format %d", f)
	}
}

// EncodePayload serializes v using the codec for f. Raw and text formats
// accept []byte or string as-is.
func EncodePayload(r *codec.Registry, f PayloadFormat, v any) ([]byte, error) {
	switch f {
	case FormatRaw, FormatText, FormatUnspecified:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		default:
			return nil, fmt.Errorf("payload format %d needs []byte or string, got %T", f, v)
		}
	}
	c, err := CodecFor(r, f)
	if err != nil {
		return nil, err
	}
	return c.Marshal(v)
}

// DecodePayload decodes data of format f into v.
func DecodePayload(r *codec.Registry, f PayloadFormat, data []byte, v any) error {
	c, err := CodecFor(r, f)
	if err != nil {
		return err
	}
	return c.Unmarshal(data, v)
}
