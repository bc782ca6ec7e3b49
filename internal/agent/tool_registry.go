package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/outpostrun/conductor/pkg/models"
)

// ParamType is the reduced type-tag vocabulary a tool parameter schema is
// built from: the registry derives this from the underlying function's Go
// type, not from runtime introspection of call arguments.
type ParamType string

const (
	ParamInt     ParamType = "int"
	ParamFloat   ParamType = "float"
	ParamString  ParamType = "string"
	ParamBool    ParamType = "bool"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
)

// ParamSpec describes one parameter of a registered tool.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
}

// ToolDescriptor is the typed, provider-agnostic description of a tool:
// name, natural-language description, and a parameter schema derived from
// the underlying function's signature.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  []ParamSpec
	Async       bool
}

// Schema renders the descriptor as a JSON-Schema object in the shape the
// provider abstraction expects for tool_schemas.
func (d ToolDescriptor) Schema() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	var required []string
	for _, p := range d.Parameters {
		prop := map[string]any{"type": jsonSchemaType(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonSchemaType(t ParamType) string {
	switch t {
	case ParamInt:
		return "integer"
	case ParamFloat:
		return "number"
	case ParamBool:
		return "boolean"
	case ParamArray:
		return "array"
	case ParamObject:
		return "object"
	default:
		return "string"
	}
}

// ToolFunc is a tool's implementation: the receiver, if any, is captured by
// the closure at registration time rather than auto-bound the way a
// descriptor-protocol language would do it.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// RegisteredTool pairs a descriptor with its implementation.
type RegisteredTool struct {
	Descriptor ToolDescriptor
	Fn         ToolFunc
}

// Registry is a name-keyed map of registered tools. Registration happens
// at startup; after that, concurrent Execute calls are safe because every
// invocation validates its own arguments and tools hold no
// registry-visible state.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*RegisteredTool
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*RegisteredTool)}
}

// Register adds a tool, replacing any existing registration under the same
// name. Replacement, rather than rejection, was chosen for determinism
// (registering the same name always yields the latest definition).
func (r *Registry) Register(tool *RegisteredTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Descriptor.Name] = tool
}

// RegisterFunc is a convenience wrapper around Register for callers that
// already have a ToolDescriptor and implementation in hand.
func (r *Registry) RegisterFunc(desc ToolDescriptor, fn ToolFunc) {
	r.Register(&RegisteredTool{Descriptor: desc, Fn: fn})
}

// Unregister removes a tool by name; it is a no-op if the name is absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (*RegisteredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len reports how many tools are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ListDescriptors returns descriptors for every registered tool, sorted by
// name for deterministic provider-facing schema ordering.
func (r *Registry) ListDescriptors() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListSchemas returns the JSON-schema objects in the shape the provider
// abstraction expects, or nil if the registry is empty (callers use this
// to decide whether to send tool_schemas at all).
func (r *Registry) ListSchemas() []map[string]any {
	descs := r.ListDescriptors()
	if len(descs) == 0 {
		return nil
	}
	out := make([]map[string]any, len(descs))
	for i, d := range descs {
		out[i] = map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.Schema(),
			},
		}
	}
	return out
}

// Execute validates argsJSON against the named tool's schema, coerces it
// into a plain argument map, and invokes the tool. Validation and runtime
// failures are both reported as a *ToolError wrapped in the returned
// error; the returned ToolResult is always safe to surface to the model
// even when err is non-nil (Content carries an error-prefixed message).
func (r *Registry) Execute(ctx context.Context, name string, argsJSON json.RawMessage) (*models.ToolResult, error) {
	t, ok := r.Get(name)
	if !ok {
		cause := fmt.Errorf("%w: %s", ErrToolNotFound, name)
		return errorResult(name, cause), &ToolError{Name: name, Cause: cause}
	}

	args, err := coerceArgs(t.Descriptor, argsJSON)
	if err != nil {
		return errorResult(name, err), &ToolError{Name: name, Cause: err}
	}

	content, err := t.Fn(ctx, args)
	if err != nil {
		return errorResult(name, err), &ToolError{Name: name, Cause: err}
	}
	return &models.ToolResult{Name: name, Content: content, Success: true}, nil
}

func errorResult(name string, cause error) *models.ToolResult {
	return &models.ToolResult{
		Name:    name,
		Content: "Error: " + cause.Error(),
		Error:   cause.Error(),
		Success: false,
	}
}

// coerceArgs validates the raw argument object against the descriptor's
// JSON schema, then type-converts each recognized field per its ParamSpec.
func coerceArgs(desc ToolDescriptor, argsJSON json.RawMessage) (map[string]any, error) {
	if len(argsJSON) == 0 {
		argsJSON = json.RawMessage(`{}`)
	}

	schemaBytes, err := json.Marshal(desc.Schema())
	if err == nil {
		if compiled, cerr := compileSchema(schemaBytes); cerr == nil {
			var generic any
			if uerr := json.Unmarshal(argsJSON, &generic); uerr == nil {
				if verr := compiled.Validate(generic); verr != nil {
					return nil, fmt.Errorf("argument validation failed: %w", verr)
				}
			}
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(argsJSON, &raw); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	out := make(map[string]any, len(desc.Parameters))
	for _, p := range desc.Parameters {
		v, present := raw[p.Name]
		if !present {
			if p.Required {
				return nil, fmt.Errorf("missing required argument %q", p.Name)
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		coerced, err := coerceValue(p, v)
		if err != nil {
			return nil, err
		}
		out[p.Name] = coerced
	}
	return out, nil
}

func compileSchema(schemaBytes []byte) (*jsonschema.Schema, error) {
	const uri = "mem://tool.schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(uri, strings.NewReader(string(schemaBytes))); err != nil {
		return nil, err
	}
	return c.Compile(uri)
}

func coerceValue(p ParamSpec, v any) (any, error) {
	switch p.Type {
	case ParamInt:
		switch n := v.(type) {
		case float64:
			return int(n), nil
		case int:
			return n, nil
		default:
			return nil, fmt.Errorf("argument %q must be an integer", p.Name)
		}
	case ParamFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("argument %q must be a number", p.Name)
		}
	case ParamBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a boolean", p.Name)
		}
		return b, nil
	case ParamString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a string", p.Name)
		}
		return s, nil
	default: // object, array: pass through as decoded
		return v, nil
	}
}

// DescribeFunc derives a ToolDescriptor from a Go struct type used as the
// argument shape, mirroring how the source language derives a schema from
// a function's typed signature via runtime introspection. Field order
// follows declaration order; a field is required unless it is a pointer or
// carries an `asc:"omitempty"` tag.
func DescribeFunc(name, description string, argsType reflect.Type) ToolDescriptor {
	desc := ToolDescriptor{Name: name, Description: description}
	if argsType.Kind() == reflect.Ptr {
		argsType = argsType.Elem()
	}
	for i := 0; i < argsType.NumField(); i++ {
		f := argsType.Field(i)
		tag := f.Tag.Get("json")
		fieldName := f.Name
		required := true
		if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					required = false
				}
			}
		}
		desc.Parameters = append(desc.Parameters, ParamSpec{
			Name:        fieldName,
			Type:        goKindToParamType(f.Type),
			Description: f.Tag.Get("description"),
			Required:    required && f.Type.Kind() != reflect.Ptr,
		})
	}
	return desc
}

func goKindToParamType(t reflect.Type) ParamType {
	switch t.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return ParamInt
	case reflect.Float32, reflect.Float64:
		return ParamFloat
	case reflect.Bool:
		return ParamBool
	case reflect.Slice, reflect.Array:
		return ParamArray
	case reflect.Map, reflect.Struct:
		return ParamObject
	default:
		return ParamString
	}
}
