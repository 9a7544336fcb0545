// Package codec provides encoding classification and the two message codecs
// used on the wire: proto3 binary and JSON. The detector is the only place
// that decides which encoding a request carries; everything downstream works
// against the Codec interface.
package codec

import (
	"mime"
	"net/http"

	"github.com/wiremux/wiremux/pkg/schema"
)

// Media types understood by the detector and emitted by the codecs.
const (
	ContentTypeBinary = "application/x-protobuf"
	ContentTypeJSON   = "application/json"
)

// Encoding classifies the wire encoding of a request or response body.
type Encoding int

const (
	// Text is the JSON encoding. It is the fail-open default: missing,
	// malformed, or unrecognized content types all classify as Text since
	// JSON is the self-describing format.
	Text Encoding = iota

	// Binary is the compact proto3 wire encoding.
	Binary
)

// String returns the encoding name for logging and metric labels.
func (e Encoding) String() string {
	if e == Binary {
		return "binary"
	}
	return "text"
}

// Detect classifies a request by its Content-Type header. It is O(1),
// side-effect free, and never inspects the body, so it is safe to run
// before any buffering decision is made.
func Detect(h http.Header) Encoding {
	ct := h.Get("Content-Type")
	if ct == "" {
		return Text
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return Text
	}
	// ParseMediaType lowercases the media type, so this match is
	// case-insensitive and ignores parameters such as charset.
	if mediaType == ContentTypeBinary {
		return Binary
	}
	return Text
}

// Codec marshals canonical messages to and from one wire encoding.
// Implementations must be deterministic and safe for concurrent use.
type Codec interface {
	ContentType() string
	Marshal(msg schema.Message) ([]byte, error)
	Unmarshal(data []byte, msg schema.Message) error
}

// ForEncoding returns the codec for an encoding tag.
func ForEncoding(e Encoding) Codec {
	if e == Binary {
		return Proto()
	}
	return JSON()
}

// Registry maps content types to codecs. The translation layer only ever
// classifies Binary/Text, but embedders can register additional codecs for
// their own endpoints.
type Registry struct {
	byType map[string]Codec
}

// NewRegistry constructs a registry preloaded with the built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(JSON())
	r.Register(Proto())
	return r
}

// Register adds a codec, replacing any existing codec for the same
// content type.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns the codec for a content type, or nil if none is registered.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }
