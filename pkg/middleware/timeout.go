package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Timeout bounds each request with a context deadline. If the handler is
// still running when the deadline expires and has not started writing, a
// 408 is written; if the handler already won the race, the timeout is only
// logged. The handler runs on its own goroutine so the response writer must
// be serialized, which lockedWriter takes care of.
func Timeout(d time.Duration, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			r = r.WithContext(ctx)

			lw := &lockedWriter{ResponseWriter: w}

			done := make(chan struct{})
			panicChan := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- p
					}
					close(done)
				}()
				next.ServeHTTP(lw, r)
			}()

			select {
			case <-done:
				select {
				case p := <-panicChan:
					// Re-panic on the request goroutine so Recovery sees it.
					panic(p)
				default:
				}
			case <-ctx.Done():
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("timeout", d),
				}
				if traceID := TraceIDFromRequest(r); traceID != "" {
					fields = append(fields, zap.String("trace_id", traceID))
				}
				logger.Error("Request timed out", fields...)

				lw.mu.Lock()
				lw.timedOut.Store(true)
				if !lw.wrote.Swap(true) {
					WriteJSONError(lw.ResponseWriter, http.StatusRequestTimeout, "Request Timeout", TraceIDFromRequest(r))
				}
				lw.mu.Unlock()
			}
		})
	}
}

// lockedWriter serializes writes between the handler goroutine and the
// timeout path. Once the timeout response has gone out, anything the late
// handler still produces is discarded.
type lockedWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	wrote    atomic.Bool
	timedOut atomic.Bool
}

func (lw *lockedWriter) Header() http.Header {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.ResponseWriter.Header()
}

func (lw *lockedWriter) WriteHeader(statusCode int) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.timedOut.Load() {
		return
	}
	if !lw.wrote.Swap(true) {
		lw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (lw *lockedWriter) Write(b []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.timedOut.Load() {
		return len(b), nil
	}
	lw.wrote.Store(true)
	return lw.ResponseWriter.Write(b)
}
