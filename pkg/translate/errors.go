// Package translate implements the transparent protocol translation layer.
// Two interchangeable strategies are provided: an Interceptor that wraps a
// whole request/response exchange and rewrites it in place, and a
// ShadowTable that derives one binary sibling route per registered route at
// startup and redirects binary traffic to it.
package translate

import "fmt"

// DecodeError reports a request body that does not parse under the resolved
// input schema. It is a client error (400): bad bytes from the caller.
type DecodeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("translate: decoding request for %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying codec error.
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a handler response that cannot be represented under
// its declared output schema. It is a server error (500): the handler broke
// its own contract, which monitoring must be able to tell apart from bad
// client input.
type EncodeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("translate: encoding response for %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying codec error.
func (e *EncodeError) Unwrap() error { return e.Err }
