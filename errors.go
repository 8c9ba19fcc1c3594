package restream

import (
	"fmt"

	"github.com/casualjim/restream/messages"
)

// UnknownToolError is raised when a tool call names a tool that no schema
// answers to. It is fatal to the engine instance; Message holds the snapshot
// accumulated up to the failing call so the caller can build a corrective
// follow-up turn.
type UnknownToolError struct {
	Message    messages.Message
	ToolCallID string
	ToolName   string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q in call %s", e.ToolName, e.ToolCallID)
}

// ToolSchemaParseError is raised when the argument text of a known tool
// fails the schema's validation. Fatal to the engine instance; Err carries
// the underlying validation failure.
type ToolSchemaParseError struct {
	Message    messages.Message
	ToolCallID string
	Err        error
}

func (e *ToolSchemaParseError) Error() string {
	return fmt.Sprintf("tool call %s arguments failed to parse: %v", e.ToolCallID, e.Err)
}

func (e *ToolSchemaParseError) Unwrap() error { return e.Err }

// ProtocolError signals that a collaborator broke the stream contract, for
// example a tool-call fragment arriving before any call id or name. These
// are bugs in the Parser or the event source, not bad model output, so they
// abort the engine rather than risk misrouting events into the message
// history.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "stream protocol violation: " + e.Reason
}
