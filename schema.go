package restream

import "context"

// Schema converts the streamed argument text of one tool call into a typed
// value.
type Schema[O any] interface {
	// Name is the tool name the schema answers to.
	Name() string

	// Parse consumes argument fragments from args and returns the typed
	// value. Parse may stop reading early; the engine drains the rest of the
	// stream afterwards, and because the stream caches what passes through
	// it the full argument text stays available. A non-nil error is treated
	// as a validation failure unless the stream itself failed.
	Parse(ctx context.Context, args *TextStream) (O, error)
}

// SelectSchema returns the first schema whose name matches, or nil when none
// does. Duplicate names are not rejected; the first registration wins.
func SelectSchema[O any](schemas []Schema[O], name string) Schema[O] {
	for _, schema := range schemas {
		if schema.Name() == name {
			return schema
		}
	}
	return nil
}
