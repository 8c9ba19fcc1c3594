// Package funcschema derives tool schemas from Go types. A schema couples a
// tool name with a JSON schema for its arguments and an incremental parser
// that turns the streamed argument text into a typed Go value, satisfying
// the engine's Schema capability.
package funcschema

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/casualjim/restream"
	"github.com/casualjim/restream/pkg/stdx"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition carries the configurable part of a schema.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
}

// Option configures a schema definition.
type Option = opts.Option[Definition]

// Name overrides the schema's tool name.
var Name = opts.ForName[Definition, string]("Name")

// Description sets the human-readable tool description.
var Description = opts.ForName[Definition, string]("Description")

// Parameters names the positional parameters of a function schema, in
// order. Unnamed parameters fall back to param0..paramN.
func Parameters(parameters ...string) Option {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// StructSchema parses tool call arguments into a value of type O.
type StructSchema[O any] struct {
	def    Definition
	schema *jsonschema.Schema
}

// Struct builds a schema for the tool named name whose arguments unmarshal
// into O. O is typically a struct with json tags, but any type goccy can
// decode works, scalars included.
func Struct[O any](name string, options ...Option) (*StructSchema[O], error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("funcschema: schema name is required")
	}

	def := Definition{Name: name}
	if err := opts.Apply(&def, options); err != nil {
		return nil, err
	}

	schema := reflector.ReflectFromType(reflect.TypeFor[O]())
	schema.Version = ""
	if def.Description != "" {
		schema.Description = def.Description
	}

	return &StructSchema[O]{def: def, schema: schema}, nil
}

// MustStruct is Struct, panicking on error.
func MustStruct[O any](name string, options ...Option) *StructSchema[O] {
	return stdx.Must1(Struct[O](name, options...))
}

// Name returns the tool name this schema answers to.
func (s *StructSchema[O]) Name() string { return s.def.Name }

// Description returns the tool description.
func (s *StructSchema[O]) Description() string { return s.def.Description }

// JSONSchema returns the argument schema for advertising the tool to a
// provider.
func (s *StructSchema[O]) JSONSchema() *jsonschema.Schema { return s.schema }

// Parse drains the argument stream and decodes the accumulated JSON into O.
// Malformed or mistyped payloads are validation errors; a failure of the
// stream itself is returned as-is.
func (s *StructSchema[O]) Parse(ctx context.Context, args *restream.TextStream) (O, error) {
	var out O
	raw, err := args.String(ctx)
	if err != nil {
		return out, err
	}
	if raw == "" && s.schema.Type == "object" {
		// providers send empty argument text for zero-parameter tools
		raw = "{}"
	}
	if !gjson.Valid(raw) {
		return out, fmt.Errorf("funcschema: tool %s arguments are not valid json: %q", s.def.Name, raw)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("funcschema: tool %s arguments do not match schema: %w", s.def.Name, err)
	}
	return out, nil
}

// FuncSchema derives a tool schema from a function signature. Arguments
// parse into a name-keyed map ordered like the function's parameters.
type FuncSchema struct {
	def    Definition
	schema *jsonschema.Schema
	params []string
}

// ForFunc reflects fn's parameters into the argument schema. The tool name
// defaults to the function's name.
func ForFunc(fn any, options ...Option) (*FuncSchema, error) {
	val := reflect.ValueOf(fn)
	if !val.IsValid() || val.Kind() != reflect.Func {
		return nil, fmt.Errorf("funcschema: provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = functionName(val)
	}

	typ := val.Type()
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
	if def.Description != "" {
		schema.Description = def.Description
	}

	var required []string
	for i := 0; i < typ.NumIn(); i++ {
		paramName := fmt.Sprintf("param%d", i)
		if def.Parameters != nil {
			if p, ok := def.Parameters[paramName]; ok {
				paramName = p
			}
		}

		propSchema := reflector.ReflectFromType(typ.In(i))
		propSchema.Version = ""
		schema.Properties.Set(paramName, propSchema)
		required = append(required, paramName)
	}
	if len(required) > 0 {
		schema.Required = required
	}

	return &FuncSchema{def: def, schema: schema, params: required}, nil
}

// MustForFunc is ForFunc, panicking on error.
func MustForFunc(fn any, options ...Option) *FuncSchema {
	return stdx.Must1(ForFunc(fn, options...))
}

// Name returns the tool name this schema answers to.
func (s *FuncSchema) Name() string { return s.def.Name }

// Description returns the tool description.
func (s *FuncSchema) Description() string { return s.def.Description }

// JSONSchema returns the argument schema for advertising the tool to a
// provider.
func (s *FuncSchema) JSONSchema() *jsonschema.Schema { return s.schema }

// Parse drains the argument stream and decodes the accumulated JSON object
// into a map keyed by parameter name.
func (s *FuncSchema) Parse(ctx context.Context, args *restream.TextStream) (map[string]any, error) {
	raw, err := args.String(ctx)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		raw = "{}"
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("funcschema: tool %s arguments are not valid json: %q", s.def.Name, raw)
	}
	out := make(map[string]any, len(s.params))
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("funcschema: tool %s arguments do not match schema: %w", s.def.Name, err)
	}
	return out, nil
}

func functionName(val reflect.Value) string {
	typ := val.Type()
	if typ.Name() != "" {
		return typ.String()
	}
	if fn := runtime.FuncForPC(val.Pointer()); fn != nil {
		name := fn.Name()
		if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
			name = name[lastDot+1:]
		}
		return strings.TrimSuffix(name, "-fm")
	}
	return typ.String()
}
