package restream

import "iter"

// ToolCallChunk is one fragment of a streamed tool invocation. ID names the
// call the fragment belongs to; a chunk carrying a new non-empty ID ends the
// argument stream of the call before it. Name is only present on the first
// chunk of a call. Args holds an incremental slice of the call's argument
// payload, typically a JSON fragment.
type ToolCallChunk struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Args string `json:"args,omitempty"`
}

// Parser classifies a single raw event and extracts its payload. All methods
// must be pure: the engine re-inspects its lookahead event, so calling a
// method twice on the same event has to give the same answer.
type Parser[T any] interface {
	// IsContent reports whether the event opens or continues a text run.
	IsContent(item T) bool

	// Content extracts the event's text fragment. The second return value is
	// false when the event carries no content at all.
	Content(item T) (string, bool)

	// IsToolCall reports whether the event carries tool-call fragments.
	IsToolCall(item T) bool

	// ToolCalls yields the event's tool-call fragments in order. Events that
	// are not tool calls yield nothing.
	ToolCalls(item T) iter.Seq[ToolCallChunk]
}
