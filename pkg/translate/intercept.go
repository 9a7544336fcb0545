package translate

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/wiremux/wiremux/pkg/codec"
	"github.com/wiremux/wiremux/pkg/metrics"
	"github.com/wiremux/wiremux/pkg/middleware"
	"github.com/wiremux/wiremux/pkg/registry"
)

// Interceptor is the in-place translation strategy. It wraps the whole
// request/response exchange: binary requests are decoded, re-encoded as
// JSON, and dispatched down the unchanged JSON path; the JSON response is
// captured, decoded against the declared output schema, and re-encoded as
// binary before anything reaches the client. Text requests pass through
// untouched with no buffering cost.
type Interceptor struct {
	registry  *registry.Registry
	logger    *zap.Logger
	collector *metrics.Collector
}

// NewInterceptor creates an Interceptor over the given route registry.
// A nil logger falls back to a no-op logger; a nil collector disables
// metrics.
func NewInterceptor(reg *registry.Registry, logger *zap.Logger, collector *metrics.Collector) *Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interceptor{
		registry:  reg,
		logger:    logger.Named("intercept"),
		collector: collector,
	}
}

// Wrap returns a handler that translates binary exchanges around next.
// The downstream handler never observes that translation occurred.
func (t *Interceptor) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if codec.Detect(r.Header) != codec.Binary {
			next.ServeHTTP(w, r)
			return
		}
		t.translate(w, r, next)
	})
}

func (t *Interceptor) translate(w http.ResponseWriter, r *http.Request, next http.Handler) {
	traceID := middleware.TraceIDFromRequest(r)
	enc := codec.Binary.String()

	// Resolve before any decode attempt so unknown paths fail cheaply.
	route, err := t.registry.Resolve(r.URL.Path)
	if err != nil {
		t.collector.Translation(enc, metrics.OutcomeNotFound)
		t.logger.Warn("No route for binary request",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.WriteJSONError(w, http.StatusNotFound, "Not Found", traceID)
		return
	}

	// Drain the inbound stream completely; decoding a partial buffer is
	// never attempted.
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		// Client went away (or the body was capped) mid-drain. The handler
		// is never invoked and no response is written for aborts.
		t.collector.Translation(enc, metrics.OutcomeAborted)
		if err.Error() == "http: request body too large" {
			middleware.WriteJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", traceID)
			return
		}
		t.logger.Warn("Request body drain failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		return
	}

	in := route.NewInput()
	if err := codec.Proto().Unmarshal(body, in); err != nil {
		derr := &DecodeError{Path: route.Path, Err: err}
		t.collector.Translation(enc, metrics.OutcomeDecodeError)
		t.logger.Warn("Failed to decode binary request body",
			zap.String("path", route.Path),
			zap.Error(derr),
		)
		middleware.WriteJSONError(w, http.StatusBadRequest, "Failed to decode request body", traceID)
		return
	}

	jsonBody, err := codec.JSON().Marshal(in)
	if err != nil {
		t.collector.Translation(enc, metrics.OutcomeDecodeError)
		t.logger.Error("Failed to re-encode request as JSON",
			zap.String("path", route.Path),
			zap.Error(err),
		)
		middleware.WriteJSONError(w, http.StatusInternalServerError, "Internal Server Error", traceID)
		return
	}

	// Substitute the JSON body and rewrite the request head in place. The
	// stale Content-Length must not survive the re-encode.
	r.Body = io.NopCloser(bytes.NewReader(jsonBody))
	r.ContentLength = int64(len(jsonBody))
	r.Header.Set("Content-Type", codec.ContentTypeJSON)
	r.Header.Set("Content-Length", strconv.Itoa(len(jsonBody)))

	bw := newBufferedResponseWriter()
	next.ServeHTTP(bw, r)

	if bw.Status() < 200 || bw.Status() >= 300 {
		// Error responses already carry the JSON error envelope; replay
		// them verbatim rather than forcing them through the output schema.
		t.collector.Translation(enc, metrics.OutcomeOK)
		if err := bw.replayTo(w); err != nil {
			t.logger.Warn("Failed to replay response", zap.Error(err))
		}
		return
	}

	out := route.NewOutput()
	if err := codec.JSON().Unmarshal(bw.body.Bytes(), out); err != nil {
		// The handler produced a body its declared schema cannot represent.
		// That is a bug in the handler, not a client error.
		eerr := &EncodeError{Path: route.Path, Err: err}
		t.collector.Translation(enc, metrics.OutcomeEncodeError)
		t.logger.Error("Handler response violates its declared schema",
			zap.String("path", route.Path),
			zap.Error(eerr),
		)
		middleware.WriteJSONError(w, http.StatusInternalServerError, "Internal Server Error", traceID)
		return
	}

	wireBody, err := codec.Proto().Marshal(out)
	if err != nil {
		t.collector.Translation(enc, metrics.OutcomeEncodeError)
		t.logger.Error("Failed to encode binary response",
			zap.String("path", route.Path),
			zap.Error(&EncodeError{Path: route.Path, Err: err}),
		)
		middleware.WriteJSONError(w, http.StatusInternalServerError, "Internal Server Error", traceID)
		return
	}

	// Two-phase emit: the held head is corrected now that the new body
	// length is known, then head and body go out together.
	copyHeader(w.Header(), bw.header)
	w.Header().Set("Content-Type", codec.ContentTypeBinary)
	w.Header().Set("Content-Length", strconv.Itoa(len(wireBody)))
	w.WriteHeader(bw.Status())
	if _, err := w.Write(wireBody); err != nil {
		t.logger.Warn("Failed to write translated response", zap.Error(err))
		return
	}
	t.collector.Translation(enc, metrics.OutcomeOK)
}
