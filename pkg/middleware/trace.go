package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// traceIDKey is a private context key type to avoid collisions.
type traceIDKey struct{}

// IDGenerator produces trace IDs from a buffered channel of precomputed
// UUIDs so the hot path never waits on UUID generation under normal load.
type IDGenerator struct {
	idChan   chan string
	initOnce sync.Once
}

// NewIDGenerator creates a generator with the given buffer size.
func NewIDGenerator(bufferSize int) *IDGenerator {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	g := &IDGenerator{idChan: make(chan string, bufferSize)}
	g.initOnce.Do(func() {
		go g.fill()
	})
	return g
}

func (g *IDGenerator) fill() {
	for {
		g.idChan <- uuid.New().String()
	}
}

// Next returns the next trace ID, falling back to direct generation if the
// buffer is momentarily empty.
func (g *IDGenerator) Next() string {
	select {
	case id := <-g.idChan:
		return id
	default:
		return uuid.New().String()
	}
}

// Trace assigns each request a trace ID, stores it in the request context,
// and echoes it back in the X-Trace-ID response header. An incoming
// X-Trace-ID header is honored so IDs propagate across services.
func Trace(gen *IDGenerator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = gen.Next()
			}
			w.Header().Set("X-Trace-ID", traceID)
			ctx := WithTraceID(r.Context(), traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithTraceID stores a trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID, or "" when none is set.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// TraceIDFromRequest is a convenience wrapper over TraceIDFromContext.
func TraceIDFromRequest(r *http.Request) string {
	return TraceIDFromContext(r.Context())
}
