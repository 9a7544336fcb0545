package translate

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/wiremux/wiremux/pkg/codec"
	"github.com/wiremux/wiremux/pkg/metrics"
	"github.com/wiremux/wiremux/pkg/middleware"
	"github.com/wiremux/wiremux/pkg/registry"
)

// ShadowSuffix is appended to a route's path to form its binary sibling.
const ShadowSuffix = ".pb"

// ShadowTable is the route-doubling translation strategy. At startup it
// derives one sibling route per registered route; the sibling decodes the
// binary request itself, calls the same handler reference directly, and
// returns already-encoded binary bytes, so no response buffering or header
// rewriting is ever needed. The table is read-only after construction and
// safe for unsynchronized concurrent reads.
type ShadowTable struct {
	handlers map[string]http.HandlerFunc // shadow path -> handler
	shadow   map[string]string           // original path -> shadow path
	logger   *zap.Logger
	coll     *metrics.Collector
}

// NewShadowTable builds the table from every route in the registry.
func NewShadowTable(reg *registry.Registry, logger *zap.Logger, collector *metrics.Collector) *ShadowTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &ShadowTable{
		handlers: make(map[string]http.HandlerFunc),
		shadow:   make(map[string]string),
		logger:   logger.Named("shadow"),
		coll:     collector,
	}
	for _, rt := range reg.Routes() {
		shadowPath := rt.Path + ShadowSuffix
		t.handlers[shadowPath] = t.handlerFor(rt)
		t.shadow[rt.Path] = shadowPath
		t.logger.Debug("shadow route derived",
			zap.String("path", rt.Path),
			zap.String("shadow", shadowPath),
		)
	}
	return t
}

// Handlers returns the shadow handlers keyed by shadow path, for
// registration alongside (never replacing) the original routes.
func (t *ShadowTable) Handlers() map[string]http.HandlerFunc {
	out := make(map[string]http.HandlerFunc, len(t.handlers))
	for p, h := range t.handlers {
		out[p] = h
	}
	return out
}

// ShadowPath returns the sibling path for an original path, if one exists.
func (t *ShadowTable) ShadowPath(path string) (string, bool) {
	p, ok := t.shadow[path]
	return p, ok
}

// Rewriter returns the redirect step that runs ahead of normal routing:
// binary-classified requests to a known path have their path rewritten to
// the shadow sibling; everything else is left untouched and routing
// proceeds normally.
func (t *ShadowTable) Rewriter() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if codec.Detect(r.Header) == codec.Binary {
				if shadowPath, ok := t.shadow[r.URL.Path]; ok {
					r.URL.Path = shadowPath
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (t *ShadowTable) handlerFor(rt *registry.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := middleware.TraceIDFromRequest(r)
		enc := codec.Binary.String()

		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			t.coll.Translation(enc, metrics.OutcomeAborted)
			if err.Error() == "http: request body too large" {
				middleware.WriteJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", traceID)
				return
			}
			t.logger.Warn("Request body drain failed",
				zap.String("path", rt.Path),
				zap.Error(err),
			)
			return
		}

		in := rt.NewInput()
		if err := codec.Proto().Unmarshal(body, in); err != nil {
			t.coll.Translation(enc, metrics.OutcomeDecodeError)
			t.logger.Warn("Failed to decode binary request body",
				zap.String("path", rt.Path),
				zap.Error(&DecodeError{Path: rt.Path, Err: err}),
			)
			middleware.WriteJSONError(w, http.StatusBadRequest, "Failed to decode request body", traceID)
			return
		}

		out, err := rt.Invoke(r, in)
		if err != nil {
			t.coll.Translation(enc, metrics.OutcomeEncodeError)
			status, message := registry.ErrorStatus(err)
			t.logger.Error("Handler error",
				zap.String("path", rt.Path),
				zap.Error(err),
			)
			middleware.WriteJSONError(w, status, message, traceID)
			return
		}

		wireBody, err := codec.Proto().Marshal(out)
		if err != nil {
			t.coll.Translation(enc, metrics.OutcomeEncodeError)
			t.logger.Error("Failed to encode binary response",
				zap.String("path", rt.Path),
				zap.Error(&EncodeError{Path: rt.Path, Err: err}),
			)
			middleware.WriteJSONError(w, http.StatusInternalServerError, "Internal Server Error", traceID)
			return
		}

		w.Header().Set("Content-Type", codec.ContentTypeBinary)
		w.Header().Set("Content-Length", strconv.Itoa(len(wireBody)))
		if _, err := w.Write(wireBody); err != nil {
			t.logger.Warn("Failed to write binary response", zap.Error(err))
			return
		}
		t.coll.Translation(enc, metrics.OutcomeOK)
	}
}
