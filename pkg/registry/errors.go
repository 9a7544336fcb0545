package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError lets a business handler control the exact status code and
// message of its error response. Any other handler error is treated as an
// internal server error by the dispatch layer.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates an HTTPError with the given status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message}
}

// ErrorStatus maps a handler error to the status code and message to send.
// HTTPError values keep their own status and message; anything else is an
// internal server error.
func ErrorStatus(err error) (int, string) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, httpErr.Message
	}
	return http.StatusInternalServerError, "Handler error"
}
