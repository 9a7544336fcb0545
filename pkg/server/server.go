// Package server wires the route registry, the translation layer, and the
// ambient middleware stack into one http.Handler with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wiremux/wiremux/pkg/codec"
	"github.com/wiremux/wiremux/pkg/metrics"
	"github.com/wiremux/wiremux/pkg/middleware"
	"github.com/wiremux/wiremux/pkg/registry"
	"github.com/wiremux/wiremux/pkg/translate"
)

// Strategy selects how binary traffic is translated.
type Strategy int

const (
	// StrategyIntercept wraps each exchange and rewrites it in place.
	StrategyIntercept Strategy = iota

	// StrategyShadow derives a binary sibling route per registered route
	// and redirects binary traffic to it ahead of routing.
	StrategyShadow
)

// String returns the strategy name used in configuration and logs.
func (s Strategy) String() string {
	if s == StrategyShadow {
		return "shadow"
	}
	return "intercept"
}

// ParseStrategy parses a strategy name from configuration.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "intercept":
		return StrategyIntercept, nil
	case "shadow":
		return StrategyShadow, nil
	default:
		return StrategyIntercept, fmt.Errorf("server: unknown strategy %q", name)
	}
}

// Config holds the server-wide settings.
type Config struct {
	Logger             *zap.Logger   // logger for all server operations; nil falls back to a production logger
	Strategy           Strategy      // translation strategy, defaults to StrategyIntercept
	GlobalTimeout      time.Duration // per-request deadline, 0 disables
	GlobalMaxBodySize  int64         // request body cap in bytes, 0 disables
	RateLimitPerSecond int           // per-client rate limit, 0 disables
	TraceIDBufferSize  int           // trace ID generator buffer, 0 disables trace IDs
	EnableMetrics      bool          // register Prometheus collectors and serve GET /metrics
	MetricsRegisterer  prometheus.Registerer
	MetricsNamespace   string
	DB                 *gorm.DB // optional; enables the per-request transaction middleware
}

// Server dispatches requests for one immutable route registry. It
// implements http.Handler.
type Server struct {
	config    Config
	logger    *zap.Logger
	registry  *registry.Registry
	router    *httprouter.Router
	collector *metrics.Collector
	handler   http.Handler

	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// New builds a Server for the given registry. The registry must already be
// built; schema problems therefore can never reach request handling.
func New(cfg Config, reg *registry.Registry) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("server: registry must not be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}
	logger = logger.Named("wiremux")

	s := &Server{
		config:   cfg,
		logger:   logger,
		registry: reg,
		router:   httprouter.New(),
	}
	s.router.NotFound = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowed = http.HandlerFunc(s.methodNotAllowed)

	if cfg.EnableMetrics {
		registerer := cfg.MetricsRegisterer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		namespace := cfg.MetricsNamespace
		if namespace == "" {
			namespace = "wiremux"
		}
		s.collector = metrics.NewCollector(registerer, namespace)
		if gatherer, ok := registerer.(prometheus.Gatherer); ok {
			s.router.Handler(http.MethodGet, "/metrics", metrics.Handler(gatherer))
		}
	}

	for _, rt := range reg.Routes() {
		s.router.Handler(http.MethodPost, rt.Path, s.nativeHandler(rt))
	}

	var h http.Handler = s.router
	switch cfg.Strategy {
	case StrategyShadow:
		table := translate.NewShadowTable(reg, logger, s.collector)
		for path, sh := range table.Handlers() {
			s.router.Handler(http.MethodPost, path, sh)
		}
		h = table.Rewriter()(h)
	default:
		h = translate.NewInterceptor(reg, logger, s.collector).Wrap(h)
	}

	mws := []middleware.Middleware{middleware.Recovery(logger)}
	if cfg.TraceIDBufferSize > 0 {
		mws = append(mws, middleware.Trace(middleware.NewIDGenerator(cfg.TraceIDBufferSize)))
	}
	mws = append(mws, middleware.Logging(logger))
	if s.collector != nil {
		mws = append(mws, s.durationMiddleware())
	}
	if cfg.RateLimitPerSecond > 0 {
		mws = append(mws, middleware.NewRateLimiter(cfg.RateLimitPerSecond, logger).Middleware())
	}
	if cfg.DB != nil {
		mws = append(mws, middleware.DBSession(cfg.DB, logger))
	}
	if cfg.GlobalTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.GlobalTimeout, logger))
	}
	if cfg.GlobalMaxBodySize > 0 {
		mws = append(mws, middleware.MaxBodySize(cfg.GlobalMaxBodySize))
	}
	s.handler = middleware.Chain(mws...)(h)

	logger.Info("server initialized",
		zap.String("strategy", cfg.Strategy.String()),
		zap.Int("routes", reg.Len()),
	)
	return s, nil
}

// ServeHTTP implements http.Handler. In-flight requests are tracked so
// Shutdown can drain them; new requests during shutdown get 503.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.shutdownMu.RLock()
	down := s.shutdown
	s.shutdownMu.RUnlock()
	if down {
		middleware.WriteJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "")
		return
	}

	s.handler.ServeHTTP(w, r)
}

// Shutdown stops accepting new requests and waits for in-flight requests
// to complete or the context to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nativeHandler is the JSON dispatch path for one route: decode the JSON
// body into the declared input schema, invoke the handler, encode the
// result as JSON. Binary traffic never reaches it directly; the translation
// layer feeds it JSON either way.
func (s *Server) nativeHandler(rt *registry.Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := middleware.TraceIDFromRequest(r)

		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			if err.Error() == "http: request body too large" {
				middleware.WriteJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", traceID)
				return
			}
			s.logger.Warn("Request body drain failed",
				zap.String("path", rt.Path),
				zap.Error(err),
			)
			return
		}

		in := rt.NewInput()
		if err := codec.JSON().Unmarshal(body, in); err != nil {
			s.logger.Warn("Failed to decode request body",
				zap.String("path", rt.Path),
				zap.Error(err),
			)
			middleware.WriteJSONError(w, http.StatusBadRequest, "Failed to decode request body", traceID)
			return
		}

		out, err := rt.Invoke(r, in)
		if err != nil {
			status, message := registry.ErrorStatus(err)
			s.logger.Error("Handler error",
				zap.String("path", rt.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
			middleware.WriteJSONError(w, status, message, traceID)
			return
		}

		data, err := codec.JSON().Marshal(out)
		if err != nil {
			s.logger.Error("Failed to encode response",
				zap.String("path", rt.Path),
				zap.Error(err),
			)
			middleware.WriteJSONError(w, http.StatusInternalServerError, "Failed to encode response", traceID)
			return
		}

		w.Header().Set("Content-Type", codec.ContentTypeJSON)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if _, err := w.Write(data); err != nil {
			s.logger.Warn("Failed to write response",
				zap.String("path", rt.Path),
				zap.Error(err),
			)
		}
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSONError(w, http.StatusNotFound, "Not Found", middleware.TraceIDFromRequest(r))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed", middleware.TraceIDFromRequest(r))
}

// durationMiddleware observes wall time per exchange, labeled by the
// encoding the caller used (detected before any translation rewrites the
// request head).
func (s *Server) durationMiddleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enc := codec.Detect(r.Header)
			start := time.Now()
			next.ServeHTTP(w, r)
			s.collector.ObserveDuration(enc.String(), time.Since(start))
		})
	}
}
