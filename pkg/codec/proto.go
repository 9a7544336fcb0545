package codec

import (
	"github.com/wiremux/wiremux/pkg/schema"
)

type protoCodec struct{}

// Proto returns the proto3 binary codec. Content-Type:
// application/x-protobuf.
func Proto() Codec { return protoCodec{} }

func (protoCodec) ContentType() string { return ContentTypeBinary }

func (protoCodec) Marshal(msg schema.Message) ([]byte, error) {
	return msg.MarshalWire()
}

func (protoCodec) Unmarshal(data []byte, msg schema.Message) error {
	return msg.UnmarshalWire(data)
}
