package funcschema

import (
	"context"

	"github.com/casualjim/restream"
	"github.com/casualjim/restream/internal/registry"
)

var global = registry.New[restream.Schema[any]]()

// Register adds a schema to the process-wide registry. Registering a name
// twice shadows the earlier schema.
func Register(schema restream.Schema[any]) {
	global.Add(schema.Name(), schema)
}

// Lookup returns the registered schema for name.
func Lookup(name string) (restream.Schema[any], bool) {
	return global.Get(name)
}

// Deregister removes a schema by name.
func Deregister(name string) {
	global.Del(name)
}

// Schemas returns all registered schemas in registration order, ready to
// hand to the engine.
func Schemas() []restream.Schema[any] {
	return global.Values()
}

type anySchema[O any] struct {
	schema restream.Schema[O]
}

func (a anySchema[O]) Name() string { return a.schema.Name() }

func (a anySchema[O]) Parse(ctx context.Context, args *restream.TextStream) (any, error) {
	return a.schema.Parse(ctx, args)
}

// AsAny erases a schema's output type so schemas for different types can
// share one engine.
func AsAny[O any](schema restream.Schema[O]) restream.Schema[any] {
	return anySchema[O]{schema: schema}
}
