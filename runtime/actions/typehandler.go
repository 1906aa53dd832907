package actions

import (
	"fmt"
	"sync"
)

type (
	// TypeHandler supplies per-type hooks for prompt guidance and argument
	// coercion. Handlers keep the resolver domain-agnostic: an embedded SQL
	// parameter, for example, is parsed and validated by a SQL handler
	// registered under its DSL identifier, not by the resolver.
	TypeHandler interface {
		// TypeID returns the canonical type identifier this handler serves.
		TypeID() string

		// SchemaGuidance returns an optional prompt fragment describing how
		// the model should render values of this type. The boolean reports
		// whether guidance exists.
		SchemaGuidance(p ParameterDescriptor) (string, bool)

		// Coerce converts the raw JSON-decoded value into the runtime value
		// handed to the action handler. A returned error marks the value as
		// invalid for the parameter.
		Coerce(p ParameterDescriptor, raw any) (any, error)
	}

	// HandlerRegistry stores type handlers keyed by type identifier. It is
	// read-mostly: handlers register at bootstrap and lookups happen on
	// every resolution.
	HandlerRegistry struct {
		mu       sync.RWMutex
		handlers map[string]TypeHandler
	}

	// HandlerFuncs builds a TypeHandler from plain functions. Either
	// function may be nil; a nil Guidance yields no prompt fragment and a
	// nil CoerceFunc passes raw values through unchanged.
	HandlerFuncs struct {
		ID         string
		Guidance   func(p ParameterDescriptor) (string, bool)
		CoerceFunc func(p ParameterDescriptor, raw any) (any, error)
	}
)

// TypeID returns the handler's type identifier.
func (h HandlerFuncs) TypeID() string { return h.ID }

// SchemaGuidance invokes the wrapped guidance function if present.
func (h HandlerFuncs) SchemaGuidance(p ParameterDescriptor) (string, bool) {
	if h.Guidance == nil {
		return "", false
	}
	return h.Guidance(p)
}

// Coerce invokes the wrapped coercion function if present, else returns the
// raw value unchanged.
func (h HandlerFuncs) Coerce(p ParameterDescriptor, raw any) (any, error) {
	if h.CoerceFunc == nil {
		return raw, nil
	}
	return h.CoerceFunc(p, raw)
}

// NewHandlerRegistry returns a registry seeded with the given handlers.
func NewHandlerRegistry(handlers ...TypeHandler) (*HandlerRegistry, error) {
	r := &HandlerRegistry{handlers: make(map[string]TypeHandler)}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a handler. Duplicate type identifiers are rejected.
func (r *HandlerRegistry) Register(h TypeHandler) error {
	if h == nil || h.TypeID() == "" {
		return fmt.Errorf("actions: type handler requires a type ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.TypeID()]; exists {
		return fmt.Errorf("actions: duplicate type handler %q", h.TypeID())
	}
	r.handlers[h.TypeID()] = h
	return nil
}

// Lookup returns the handler registered under id.
func (r *HandlerRegistry) Lookup(id string) (TypeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// ForParameter returns the handler that coerces the given parameter: the
// DSL-specific handler when the parameter carries a DslID, otherwise the
// handler registered for the parameter type.
func (r *HandlerRegistry) ForParameter(p ParameterDescriptor) (TypeHandler, bool) {
	if p.DslID != "" {
		return r.Lookup(p.DslID)
	}
	return r.Lookup(p.Type)
}

// defaultHandlers is the process-wide registry populated by handler packages
// at init time. Planner builders fall back to it when no explicit handler
// registry is supplied, mirroring a service-lookup discovery mechanism.
var defaultHandlers = &HandlerRegistry{handlers: make(map[string]TypeHandler)}

// RegisterTypeHandler adds a handler to the process-wide default registry.
// Intended for init-time registration by type handler packages; duplicate
// registrations panic because they indicate conflicting packages.
func RegisterTypeHandler(h TypeHandler) {
	if err := defaultHandlers.Register(h); err != nil {
		panic(err)
	}
}

// DefaultHandlers returns the process-wide handler registry.
func DefaultHandlers() *HandlerRegistry {
	return defaultHandlers
}
