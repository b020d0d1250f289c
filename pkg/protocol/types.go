package protocol

// MessageType classifies a message (mirrors uProtocol UMessageType).
type MessageType int32

const (
	MessageTypeUnspecified MessageType = iota
	MessageTypePublish                 // topic publication
	MessageTypeRequest                 // rpc request
	MessageTypeResponse                // rpc response
	MessageTypeNotification            // point-to-point notification
)

func (t MessageType) String() string {
	switch t {
	case MessageTypePublish:
		return "publish"
	case MessageTypeRequest:
		return "request"
	case MessageTypeResponse:
		return "response"
	case MessageTypeNotification:
		return "notification"
	default:
		return "unspecified"
	}
}

// Priority is the uProtocol class of service, CS0 (lowest) .. CS6.
type Priority int32

const (
	PriorityUnspecified Priority = iota
	PriorityCS0
	PriorityCS1
	PriorityCS2
	PriorityCS3
	PriorityCS4
	PriorityCS5
	PriorityCS6
)

func (p Priority) String() string {
	if p < PriorityCS0 || p > PriorityCS6 {
		return "unspecified"
	}
	return "CS" + string(rune('0'+int(p-PriorityCS0)))
}

// PayloadFormat hints how Message.Payload is encoded. The transport never
// interprets the payload; codecs in protocol/codec use this to pick a decoder.
type PayloadFormat int32

const (
	FormatUnspecified PayloadFormat = iota
	FormatProtobufAny
	FormatJSON
	FormatProtobuf
	FormatRaw
	FormatSomeIP
	FormatSomeIPTLV
	FormatText
	FormatShm
	FormatCBOR PayloadFormat = 100 // local extension, not a uProtocol value
)

// Content types for the formats we can decode.
const (
	ContentUnknown = "application/octet-stream"
	ContentCBOR    = "application/cbor"
	ContentJSON    = "application/json"
	ContentProto   = "application/x-protobuf"
	ContentText    = "text/plain"
)

func (f PayloadFormat) String() string {
	switch f {
	case FormatJSON:
		return ContentJSON
	case FormatCBOR:
		return ContentCBOR
	case FormatProtobuf, FormatProtobufAny:
		return ContentProto
	case FormatText:
		return ContentText
	default:
		return ContentUnknown
	}
}

// ParseFormat maps a config-friendly name to a PayloadFormat.
func ParseFormat(name string) (PayloadFormat, bool) {
	switch name {
	case "", "raw":
		return FormatRaw, true
	case "json":
		return FormatJSON, true
	case "cbor":
		return FormatCBOR, true
	case "proto", "protobuf":
		return FormatProtobuf, true
	case "text":
		return FormatText, true
	default:
		return FormatUnspecified, false
	}
}
