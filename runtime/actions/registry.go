package actions

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

type (
	// HandlerFunc is the runtime callable bound to an action. Arguments
	// arrive in descriptor parameter order; optional parameters that were
	// absent from the plan are nil. The action context is injected by the
	// executor and is never visible to the LLM.
	HandlerFunc func(ctx context.Context, actx *Context, args []any) (any, error)

	// Action pairs a descriptor with its handler for registration.
	Action struct {
		Descriptor ActionDescriptor
		Handler    HandlerFunc
	}

	// Binding joins a registered descriptor to its callable. Bindings are
	// created by the registry and treated as opaque by plan steps.
	Binding struct {
		desc    ActionDescriptor
		handler HandlerFunc
	}

	// Registry stores registered actions keyed by ID. Registration happens
	// at bootstrap; the registry freezes on the first catalog read so that
	// late writes surface as configuration errors instead of racing with
	// plan formulation.
	Registry struct {
		mu      sync.RWMutex
		actions map[string]*Binding
		frozen  bool
	}
)

// Descriptor returns a deep copy of the bound descriptor.
func (b *Binding) Descriptor() ActionDescriptor {
	return b.desc.Clone()
}

// ID returns the bound action identifier.
func (b *Binding) ID() string {
	return b.desc.ID
}

// ContextKey returns the context slot the executor stores the action's
// return value under; empty means the return value is discarded.
func (b *Binding) ContextKey() string {
	return b.desc.ContextKey
}

// NewRegistry returns an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]*Binding)}
}

// Register validates and adds the action. It returns an error for a missing
// ID or handler, a duplicate ID, an invalid parameter constraint, or when
// the registry is already frozen. Registering the same descriptor twice is
// rejected like any other duplicate: registration is not additive.
func (r *Registry) Register(a Action) error {
	if a.Descriptor.ID == "" {
		return fmt.Errorf("actions: action ID is required")
	}
	if a.Handler == nil {
		return fmt.Errorf("actions: action %q: handler is required", a.Descriptor.ID)
	}
	desc := a.Descriptor.Clone()
	seen := make(map[string]struct{}, len(desc.Parameters))
	for i := range desc.Parameters {
		p := &desc.Parameters[i]
		if p.Name == "" {
			return fmt.Errorf("actions: action %q: parameter %d has no name", desc.ID, i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("actions: action %q: duplicate parameter %q", desc.ID, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Type == "" {
			p.Type = TypeString
		}
		if len(p.AllowedValues) > 0 && p.AllowedRegex != "" {
			return fmt.Errorf("actions: action %q: parameter %q declares both allowed values and a regex", desc.ID, p.Name)
		}
		if p.AllowedRegex != "" {
			if _, err := regexp.Compile(p.AllowedRegex); err != nil {
				return fmt.Errorf("actions: action %q: parameter %q: invalid regex: %w", desc.ID, p.Name, err)
			}
		}
		// Enumerated types advertise their constants as the allowed set.
		if len(p.Enum) > 0 && len(p.AllowedValues) == 0 {
			p.AllowedValues = append([]string(nil), p.Enum...)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("actions: registry is frozen; register action %q before the first plan is formulated", desc.ID)
	}
	if _, exists := r.actions[desc.ID]; exists {
		return fmt.Errorf("actions: duplicate action ID %q", desc.ID)
	}
	r.actions[desc.ID] = &Binding{desc: desc, handler: a.Handler}
	return nil
}

// List returns deep copies of all registered descriptors sorted by ID and
// freezes the registry.
func (r *Registry) List() []ActionDescriptor {
	r.mu.Lock()
	r.frozen = true
	out := make([]ActionDescriptor, 0, len(r.actions))
	for _, b := range r.actions {
		out = append(out, b.desc.Clone())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the sorted registered action identifiers and freezes the
// registry.
func (r *Registry) IDs() []string {
	descs := r.List()
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}
	return ids
}

// Find returns the binding for the given action ID. The boolean reports
// whether the action is registered. Find freezes the registry.
func (r *Registry) Find(id string) (*Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	b, ok := r.actions[id]
	return b, ok
}

// Dispatch invokes the bound handler with the given positional arguments and
// action context.
func (r *Registry) Dispatch(ctx context.Context, b *Binding, args []any, actx *Context) (any, error) {
	if b == nil || b.handler == nil {
		return nil, fmt.Errorf("actions: dispatch on nil binding")
	}
	return b.handler(ctx, actx, args)
}
