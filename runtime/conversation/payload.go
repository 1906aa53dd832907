package conversation

import (
	"encoding/json"
	"fmt"
)

type (
	// PayloadType describes one working-context payload domain: how to
	// materialize the typed value from JSON and how to upgrade older
	// payload versions.
	PayloadType struct {
		// ContextType is the identifier stored in
		// WorkingContext.ContextType.
		ContextType string

		// Version is the current payload schema version.
		Version int

		// Decode materializes the typed value from the (post-upgrade)
		// payload JSON. Nil leaves the raw JSON tree in place.
		Decode func(data []byte) (any, error)

		// Upgrades maps a payload version v to the transform producing
		// version v+1 of the payload tree.
		Upgrades map[int]func(tree map[string]any) (map[string]any, error)
	}

	// PayloadRegistry knows how to materialize polymorphic working-context
	// payloads during blob decoding. Types register at bootstrap.
	PayloadRegistry struct {
		types map[string]PayloadType
	}
)

// NewPayloadRegistry returns a registry seeded with the given types.
func NewPayloadRegistry(types ...PayloadType) (*PayloadRegistry, error) {
	r := &PayloadRegistry{types: make(map[string]PayloadType)}
	for _, t := range types {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a payload type. Duplicate context types are rejected.
func (r *PayloadRegistry) Register(t PayloadType) error {
	if t.ContextType == "" {
		return fmt.Errorf("conversation: payload type requires a context type")
	}
	if _, exists := r.types[t.ContextType]; exists {
		return fmt.Errorf("conversation: duplicate payload type %q", t.ContextType)
	}
	r.types[t.ContextType] = t
	return nil
}

// materialize upgrades and decodes the working context payload in place.
// Unregistered context types pass through untouched: the raw JSON tree
// stays in Payload.
func (r *PayloadRegistry) materialize(wc *WorkingContext) error {
	if wc == nil || r == nil {
		return nil
	}
	t, ok := r.types[wc.ContextType]
	if !ok {
		return nil
	}
	if wc.Version > t.Version {
		return &MigrationError{Reason: fmt.Sprintf(
			"working context %q has payload version %d, newer than supported %d",
			wc.ContextType, wc.Version, t.Version)}
	}
	tree, treeOK := wc.Payload.(map[string]any)
	for v := wc.Version; v < t.Version; v++ {
		up, ok := t.Upgrades[v]
		if !ok {
			return &MigrationError{Reason: fmt.Sprintf(
				"no upgrade for working context %q payload from version %d", wc.ContextType, v)}
		}
		if !treeOK {
			return &MigrationError{Reason: fmt.Sprintf(
				"working context %q payload is not an object, cannot upgrade", wc.ContextType)}
		}
		next, err := up(tree)
		if err != nil {
			return &MigrationError{Reason: fmt.Sprintf(
				"upgrade of working context %q payload from version %d failed: %v", wc.ContextType, v, err)}
		}
		tree = next
	}
	if treeOK {
		wc.Payload = tree
	}
	wc.Version = t.Version
	if t.Decode != nil {
		b, err := json.Marshal(wc.Payload)
		if err != nil {
			return fmt.Errorf("conversation: encode working context %q payload: %w", wc.ContextType, err)
		}
		typed, err := t.Decode(b)
		if err != nil {
			return fmt.Errorf("conversation: decode working context %q payload: %w", wc.ContextType, err)
		}
		wc.Payload = typed
	}
	return nil
}
