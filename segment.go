package restream

// SegmentKind discriminates the two segment variants.
type SegmentKind int

const (
	// SegmentText is a contiguous run of streamed text.
	SegmentText SegmentKind = iota + 1
	// SegmentToolCall is one fully parsed tool invocation.
	SegmentToolCall
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentText:
		return "text"
	case SegmentToolCall:
		return "tool_call"
	default:
		return "unknown"
	}
}

// Segment is one unit of regrouped model output: either a lazy text run or a
// typed tool-call result. The zero value is invalid; segments are only
// produced by OutputStream.Next.
type Segment[O any] struct {
	kind     SegmentKind
	text     *TextStream
	out      O
	callID   string
	callName string
}

func textSegment[O any](text *TextStream) Segment[O] {
	return Segment[O]{kind: SegmentText, text: text}
}

func toolCallSegment[O any](out O, id, name string) Segment[O] {
	return Segment[O]{kind: SegmentToolCall, out: out, callID: id, callName: name}
}

// Kind reports which variant this segment is.
func (s Segment[O]) Kind() SegmentKind { return s.kind }

// Text returns the segment's fragment stream. Only valid for SegmentText.
func (s Segment[O]) Text() *TextStream { return s.text }

// ToolCall returns the parsed tool output. Only valid for SegmentToolCall.
func (s Segment[O]) ToolCall() O { return s.out }

// ToolCallID returns the provider-assigned id of the call, empty for text
// segments.
func (s Segment[O]) ToolCallID() string { return s.callID }

// ToolName returns the invoked tool's name, empty for text segments.
func (s Segment[O]) ToolName() string { return s.callName }
