package actions

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaHandler is a TypeHandler that validates object-typed parameter values
// against a compiled JSON Schema before handing them to the action. An
// optional decode function converts the validated JSON tree into a typed
// value; without one the raw map is passed through.
type SchemaHandler struct {
	id       string
	guidance string
	schema   *jsonschema.Schema
	decode   func([]byte) (any, error)
}

// SchemaHandlerOptions configures NewSchemaHandler.
type SchemaHandlerOptions struct {
	// TypeID is the identifier parameters reference via Type or DslID.
	TypeID string

	// Schema is the JSON Schema document (draft 2020-12) the raw value must
	// satisfy.
	Schema []byte

	// Guidance is an optional prompt fragment describing the expected value
	// shape to the model. When empty, the compact schema itself is rendered.
	Guidance string

	// Decode optionally converts the validated JSON bytes into the typed
	// runtime value delivered to action handlers.
	Decode func([]byte) (any, error)
}

// NewSchemaHandler compiles the schema and returns the handler.
func NewSchemaHandler(opts SchemaHandlerOptions) (*SchemaHandler, error) {
	if opts.TypeID == "" {
		return nil, fmt.Errorf("actions: schema handler requires a type ID")
	}
	if len(opts.Schema) == 0 {
		return nil, fmt.Errorf("actions: schema handler %q requires a schema", opts.TypeID)
	}
	var doc any
	if err := json.Unmarshal(opts.Schema, &doc); err != nil {
		return nil, fmt.Errorf("actions: schema handler %q: invalid schema JSON: %w", opts.TypeID, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("actions: schema handler %q: add schema resource: %w", opts.TypeID, err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("actions: schema handler %q: compile schema: %w", opts.TypeID, err)
	}
	guidance := opts.Guidance
	if guidance == "" {
		compact, err := json.Marshal(doc)
		if err == nil {
			guidance = fmt.Sprintf("Values of type %q must satisfy this JSON Schema: %s", opts.TypeID, compact)
		}
	}
	return &SchemaHandler{
		id:       opts.TypeID,
		guidance: guidance,
		schema:   schema,
		decode:   opts.Decode,
	}, nil
}

// TypeID returns the handler's type identifier.
func (h *SchemaHandler) TypeID() string { return h.id }

// SchemaGuidance returns the prompt fragment describing the expected shape.
func (h *SchemaHandler) SchemaGuidance(ParameterDescriptor) (string, bool) {
	return h.guidance, h.guidance != ""
}

// Coerce validates raw against the schema and, when a decoder is configured,
// converts it into the typed runtime value.
func (h *SchemaHandler) Coerce(p ParameterDescriptor, raw any) (any, error) {
	if err := h.schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%s does not satisfy the %q schema: %w", p.Name, h.id, err)
	}
	if h.decode == nil {
		return raw, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: encode for %q decoder: %w", p.Name, h.id, err)
	}
	v, err := h.decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: decode as %q: %w", p.Name, h.id, err)
	}
	return v, nil
}
