package codec

import (
	"encoding/json"

	"github.com/wiremux/wiremux/pkg/schema"
)

type jsonCodec struct{}

// JSON returns the JSON codec. Field names follow the canonical schema's
// snake_case struct tags. Content-Type: application/json.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string { return ContentTypeJSON }

func (jsonCodec) Marshal(msg schema.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg schema.Message) error {
	return json.Unmarshal(data, msg)
}
