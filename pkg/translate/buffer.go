package translate

import (
	"bytes"
	"net/http"
)

// bufferedResponseWriter captures the downstream handler's entire response
// without forwarding any of it. The head (status + headers) must be held
// back because re-encoding the body invalidates Content-Length; the caller
// releases head and body together once the new body is known.
type bufferedResponseWriter struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

// Header returns the captured header map.
func (b *bufferedResponseWriter) Header() http.Header { return b.header }

// WriteHeader records the status without emitting it.
func (b *bufferedResponseWriter) WriteHeader(statusCode int) {
	if b.wroteHeader {
		return
	}
	b.status = statusCode
	b.wroteHeader = true
}

// Write buffers the body bytes.
func (b *bufferedResponseWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}

// Flush is deliberately a no-op: the whole point of this writer is that
// nothing reaches the client until the head has been rewritten.
func (b *bufferedResponseWriter) Flush() {}

// Status returns the captured status code.
func (b *bufferedResponseWriter) Status() int { return b.status }

// replayTo emits the captured response unchanged: headers, then status,
// then body, preserving the single head-then-body event shape of an
// untranslated exchange.
func (b *bufferedResponseWriter) replayTo(w http.ResponseWriter) error {
	copyHeader(w.Header(), b.header)
	w.WriteHeader(b.status)
	_, err := w.Write(b.body.Bytes())
	return err
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
