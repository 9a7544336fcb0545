// Package registry maps route paths to business handlers and their declared
// canonical input and output schemas. The association is built exactly once
// at startup via a Builder; the resulting Registry is immutable and safe for
// unsynchronized concurrent reads, so nothing is ever re-derived per request.
package registry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wiremux/wiremux/pkg/schema"
)

// ErrRouteNotFound is returned by Resolve for paths with no registered
// handler.
var ErrRouteNotFound = errors.New("registry: no handler registered for path")

// SchemaError reports a handler whose declared input or output type is not
// a canonical message. It is a startup failure, never surfaced per request.
type SchemaError struct {
	Path string
	Kind string // "input" or "output"
	Type string // Go type name of the offending declaration
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("registry: route %q: %s type %s is not a canonical message", e.Path, e.Kind, e.Type)
}

// Handler is the type-erased form of a business handler: canonical input
// in, canonical output out. Typed handlers are wrapped into this shape by
// Add at registration time.
type Handler func(r *http.Request, in schema.Message) (schema.Message, error)

// Route describes one registered endpoint: its path, factories for the
// declared input and output schemas, and the handler itself. Routes are
// owned by the Registry and immutable after Build.
type Route struct {
	Path string

	// NewInput and NewOutput allocate fresh instances of the declared
	// schemas for decoding. Factories avoid reflection on the request path.
	NewInput  func() schema.Message
	NewOutput func() schema.Message

	// Invoke runs the business handler against a decoded input.
	Invoke Handler
}

// Builder accumulates route registrations and validation failures. Schema
// violations are collected rather than returned from Add so that every
// offending route is reported in one Build error.
type Builder struct {
	logger *zap.Logger
	routes map[string]*Route
	order  []string
	errs   []error
}

// NewBuilder creates a Builder. A nil logger falls back to a no-op logger.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		logger: logger.Named("registry"),
		routes: make(map[string]*Route),
	}
}

// Add registers a typed handler for a path. It is a standalone function
// rather than a Builder method because Go methods cannot have type
// parameters. The newIn and newOut factories create instances of the
// declared request and response types; the factory pattern keeps the
// request path free of reflection.
//
// Both declared types must implement schema.Message. Violations are
// recorded and surfaced by Build as SchemaError values naming the route,
// so a bad registration can never be deferred to the first request.
func Add[In any, Out any](
	b *Builder,
	path string,
	handler func(r *http.Request, in In) (Out, error),
	newIn func() In,
	newOut func() Out,
) {
	if path == "" || !strings.HasPrefix(path, "/") {
		b.errs = append(b.errs, fmt.Errorf("registry: route path %q must begin with %q", path, "/"))
		return
	}
	if _, dup := b.routes[path]; dup {
		b.errs = append(b.errs, fmt.Errorf("registry: route %q registered twice", path))
		return
	}
	if handler == nil || newIn == nil || newOut == nil {
		b.errs = append(b.errs, fmt.Errorf("registry: route %q: handler and factories must be non-nil", path))
		return
	}

	bad := false
	if _, ok := any(newIn()).(schema.Message); !ok {
		b.errs = append(b.errs, &SchemaError{Path: path, Kind: "input", Type: fmt.Sprintf("%T", newIn())})
		bad = true
	}
	if _, ok := any(newOut()).(schema.Message); !ok {
		b.errs = append(b.errs, &SchemaError{Path: path, Kind: "output", Type: fmt.Sprintf("%T", newOut())})
		bad = true
	}
	if bad {
		return
	}

	b.routes[path] = &Route{
		Path:      path,
		NewInput:  func() schema.Message { return any(newIn()).(schema.Message) },
		NewOutput: func() schema.Message { return any(newOut()).(schema.Message) },
		Invoke: func(r *http.Request, in schema.Message) (schema.Message, error) {
			out, err := handler(r, in.(In))
			if err != nil {
				return nil, err
			}
			return any(out).(schema.Message), nil
		},
	}
	b.order = append(b.order, path)
	b.logger.Debug("route registered",
		zap.String("path", path),
		zap.String("input", fmt.Sprintf("%T", newIn())),
		zap.String("output", fmt.Sprintf("%T", newOut())),
	)
}

// Build validates the accumulated registrations and returns the immutable
// Registry. Any schema or registration failure aborts the build; the
// returned error aggregates every recorded problem.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, multierr.Combine(b.errs...)
	}
	routes := make(map[string]*Route, len(b.routes))
	order := make([]string, len(b.order))
	for p, rt := range b.routes {
		routes[p] = rt
	}
	copy(order, b.order)
	return &Registry{routes: routes, order: order}, nil
}

// Registry is the read-only route table. It is constructed once at startup
// and then shared freely across request goroutines.
type Registry struct {
	routes map[string]*Route
	order  []string
}

// Resolve returns the route descriptor for a path, or ErrRouteNotFound.
func (r *Registry) Resolve(path string) (*Route, error) {
	rt, ok := r.routes[path]
	if !ok {
		return nil, ErrRouteNotFound
	}
	return rt, nil
}

// Routes returns all registered routes in registration order.
func (r *Registry) Routes() []*Route {
	out := make([]*Route, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.routes[p])
	}
	return out
}

// Len returns the number of registered routes.
func (r *Registry) Len() int { return len(r.routes) }
