package restream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strconv"
	"testing"

	"github.com/casualjim/restream/messages"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	text  string
	calls []ToolCallChunk
	admin bool
}

func content(text string) testEvent { return testEvent{text: text} }

func toolCall(id, name, args string) testEvent {
	return testEvent{calls: []ToolCallChunk{{ID: id, Name: name, Args: args}}}
}

func admin() testEvent { return testEvent{admin: true} }

type testParser struct{}

func (testParser) IsContent(e testEvent) bool          { return e.text != "" }
func (testParser) Content(e testEvent) (string, bool)  { return e.text, e.text != "" }
func (testParser) IsToolCall(e testEvent) bool         { return len(e.calls) > 0 }
func (testParser) ToolCalls(e testEvent) iter.Seq[ToolCallChunk] {
	return slices.Values(e.calls)
}

type testState struct {
	updates []testEvent
	content string
	usage   *messages.Usage
}

func newTestState() *testState {
	return &testState{usage: &messages.Usage{}}
}

func (s *testState) Update(e testEvent) {
	s.updates = append(s.updates, e)
	s.content += e.text
	s.usage.TotalTokens++
}

func (s *testState) MessageSnapshot() messages.Message {
	return messages.Message{Content: s.content}
}

func (s *testState) Usage() *messages.Usage { return s.usage }

// mapSchema decodes the full argument text into a map.
type mapSchema struct{ name string }

func (s mapSchema) Name() string { return s.name }

func (s mapSchema) Parse(ctx context.Context, args *TextStream) (any, error) {
	raw, err := args.String(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("arguments do not match schema: %w", err)
	}
	return out, nil
}

// numberSchema expects the argument text to be a bare number.
type numberSchema struct{ name string }

func (s numberSchema) Name() string { return s.name }

func (s numberSchema) Parse(ctx context.Context, args *TextStream) (any, error) {
	raw, err := args.String(ctx)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("expected a number: %w", err)
	}
	return n, nil
}

// firstFragmentSchema returns after reading a single fragment, leaving the
// rest of the argument stream for the engine to drain.
type firstFragmentSchema struct{ name string }

func (s firstFragmentSchema) Name() string { return s.name }

func (s firstFragmentSchema) Parse(ctx context.Context, args *TextStream) (any, error) {
	fragment, err := args.Next(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return fragment, nil
}

func newTestStream(events []testEvent, schemas ...Schema[any]) (*OutputStream[testEvent, any], *testState) {
	state := newTestState()
	return New(FromSlice(events), schemas, testParser{}, state), state
}

func TestOutputStream_TextThenToolCall(t *testing.T) {
	events := []testEvent{
		content("Hello "),
		content("world"),
		toolCall("1", "f", `{"x":`),
		toolCall("1", "", `1}`), // continuation chunks may repeat the call id
	}
	stream, state := newTestStream(events, mapSchema{name: "f"})
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, SegmentText, segment.Kind())

	first, err := segment.Text().Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello ", first)
	second, err := segment.Text().Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "world", second)
	_, err = segment.Text().Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	segment, err = stream.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, SegmentToolCall, segment.Kind())
	assert.Equal(t, "1", segment.ToolCallID())
	assert.Equal(t, "f", segment.ToolName())
	assert.Equal(t, map[string]any{"x": float64(1)}, segment.ToolCall())

	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	assert.Len(t, state.updates, len(events))
}

func TestOutputStream_ConsecutiveToolCalls(t *testing.T) {
	events := []testEvent{
		toolCall("1", "f", "1"),
		toolCall("2", "g", "2"),
	}
	stream, state := newTestStream(events, numberSchema{name: "f"}, numberSchema{name: "g"})
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "f", segment.ToolName())
	assert.Equal(t, float64(1), segment.ToolCall())

	// not draining anything from the first call's argument stream
	segment, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g", segment.ToolName())
	assert.Equal(t, float64(2), segment.ToolCall())

	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, state.updates, len(events))
}

func TestOutputStream_UnknownTool(t *testing.T) {
	events := []testEvent{
		content("thinking"),
		toolCall("42", "missing", `{}`),
	}
	stream, _ := newTestStream(events, mapSchema{name: "f"})
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, segment.Text().Drain(ctx))

	_, err = stream.Next(ctx)
	var unknownErr *UnknownToolError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "missing", unknownErr.ToolName)
	assert.Equal(t, "42", unknownErr.ToolCallID)
	assert.Equal(t, "thinking", unknownErr.Message.Content)

	// fatal errors latch
	_, again := stream.Next(ctx)
	assert.Equal(t, err, again)
}

func TestOutputStream_SchemaParseFailure(t *testing.T) {
	events := []testEvent{
		toolCall("7", "f", "not-json"),
	}
	stream, _ := newTestStream(events, numberSchema{name: "f"})

	_, err := stream.Next(context.Background())
	var parseErr *ToolSchemaParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "7", parseErr.ToolCallID)
	assert.Error(t, parseErr.Err)
	assert.ErrorContains(t, err, "failed to parse")
	require.NotNil(t, errors.Unwrap(parseErr))
}

func TestOutputStream_EndsMidText(t *testing.T) {
	events := []testEvent{
		content("only "),
		content("text"),
	}
	stream, state := newTestStream(events)
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	text, err := segment.Text().String(ctx)
	require.NoError(t, err)
	assert.Equal(t, "only text", text)
	assert.True(t, segment.Text().Exhausted())

	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, state.updates, 2)
}

func TestOutputStream_EmptySource(t *testing.T) {
	stream, state := newTestStream(nil)
	_, err := stream.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
	assert.Empty(t, state.updates)
}

func TestOutputStream_AbandonedTextSegment(t *testing.T) {
	events := []testEvent{
		content("abandoned "),
		content("text"),
		toolCall("1", "f", `{"x":1}`),
	}
	stream, state := newTestStream(events, mapSchema{name: "f"})
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	text := segment.Text()

	// skip straight to the next segment; the engine drains the text run
	segment, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, SegmentToolCall, segment.Kind())
	assert.Equal(t, map[string]any{"x": float64(1)}, segment.ToolCall())

	// draining caches, so the abandoned text is still readable
	assert.Equal(t, "abandoned text", text.Text())

	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, state.updates, len(events))
}

func TestOutputStream_AdminEventsConsumed(t *testing.T) {
	events := []testEvent{
		admin(),
		content("hi"),
		admin(),
		content(" there"),
		toolCall("1", "f", "1"),
		admin(), // trailing stop/usage events
		admin(),
	}
	stream, state := newTestStream(events, numberSchema{name: "f"})
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	text, err := segment.Text().String(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)

	segment, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), segment.ToolCall())

	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	// every event reached the state exactly once, in order
	require.Len(t, state.updates, len(events))
	assert.Equal(t, events, state.updates)
}

func TestOutputStream_AbandonmentSafety(t *testing.T) {
	events := []testEvent{
		content("first"),
		toolCall("1", "f", "1"),
		toolCall("2", "g", "2"),
	}
	stream, state := newTestStream(events, numberSchema{name: "f"}, numberSchema{name: "g"})
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, segment.Text().Drain(ctx))

	// engine discarded here; the boundary event has already been seen
	require.Len(t, state.updates, 2)
	assert.Equal(t, events[:2], state.updates)
}

func TestOutputStream_UsageLiveRead(t *testing.T) {
	events := []testEvent{
		content("a"),
		content("b"),
		toolCall("1", "f", "1"),
		admin(),
	}
	stream, _ := newTestStream(events, numberSchema{name: "f"})
	ctx := context.Background()

	usage := stream.Usage()
	assert.EqualValues(t, 0, usage.TotalTokens)

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	_, err = segment.Text().Next(ctx)
	require.NoError(t, err)

	// partial read reflects only the events processed so far
	assert.EqualValues(t, 1, usage.TotalTokens)

	for _, err := range stream.Seq(ctx) {
		require.NoError(t, err)
	}
	assert.EqualValues(t, int64(len(events)), usage.TotalTokens)
}

func TestOutputStream_PartialArgsConsumer(t *testing.T) {
	events := []testEvent{
		toolCall("1", "f", "fragment-1"),
		toolCall("", "", "fragment-2"),
		toolCall("2", "g", "2"),
	}
	stream, state := newTestStream(events, firstFragmentSchema{name: "f"}, numberSchema{name: "g"})
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fragment-1", segment.ToolCall())

	// the engine drains fragment-2 itself; the boundary chunk for call 2
	// must not be lost
	segment, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g", segment.ToolName())
	assert.Equal(t, float64(2), segment.ToolCall())

	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, state.updates, len(events))
}

func TestOutputStream_ChunkWithoutIDOrName(t *testing.T) {
	events := []testEvent{
		{calls: []ToolCallChunk{{Args: "orphan"}}},
	}
	stream, _ := newTestStream(events, numberSchema{name: "f"})

	_, err := stream.Next(context.Background())
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.ErrorContains(t, err, "protocol violation")
}

func TestOutputStream_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	events := []testEvent{content("partial")}
	i := 0
	source := SourceFunc[testEvent](func(ctx context.Context) (testEvent, error) {
		if i < len(events) {
			e := events[i]
			i++
			return e, nil
		}
		return testEvent{}, boom
	})
	state := newTestState()
	stream := New[testEvent, any](source, nil, testParser{}, state)
	ctx := context.Background()

	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	_, err = segment.Text().Next(ctx)
	require.NoError(t, err)
	_, err = segment.Text().Next(ctx)
	require.ErrorIs(t, err, boom)
}

func TestOutputStream_SourceErrorDuringParse(t *testing.T) {
	boom := errors.New("connection reset")
	first := true
	source := SourceFunc[testEvent](func(ctx context.Context) (testEvent, error) {
		if first {
			first = false
			return toolCall("1", "f", `{"x":`), nil
		}
		return testEvent{}, boom
	})
	state := newTestState()
	stream := New(source, []Schema[any]{mapSchema{name: "f"}}, testParser{}, state)

	// the stream failure must not masquerade as a validation error
	_, err := stream.Next(context.Background())
	require.ErrorIs(t, err, boom)
	var parseErr *ToolSchemaParseError
	assert.False(t, errors.As(err, &parseErr))
}

func TestOutputStream_ChannelSourceParity(t *testing.T) {
	events := []testEvent{
		content("Hello "),
		content("world"),
		toolCall("1", "f", `{"x":`),
		toolCall("", "", `1}`),
		admin(),
	}

	ch := make(chan testEvent)
	go func() {
		defer close(ch)
		for _, e := range events {
			ch <- e
		}
	}()

	state := newTestState()
	stream := New(FromChannel(ch), []Schema[any]{mapSchema{name: "f"}}, testParser{}, state)
	ctx := context.Background()

	var kinds []SegmentKind
	var texts []string
	var outputs []any
	for segment, err := range stream.Seq(ctx) {
		require.NoError(t, err)
		kinds = append(kinds, segment.Kind())
		switch segment.Kind() {
		case SegmentText:
			text, err := segment.Text().String(ctx)
			require.NoError(t, err)
			texts = append(texts, text)
		case SegmentToolCall:
			outputs = append(outputs, segment.ToolCall())
		}
	}

	assert.Equal(t, []SegmentKind{SegmentText, SegmentToolCall}, kinds)
	assert.Equal(t, []string{"Hello world"}, texts)
	assert.Equal(t, []any{map[string]any{"x": float64(1)}}, outputs)
	assert.Len(t, state.updates, len(events))
}

func TestOutputStream_CancelledContext(t *testing.T) {
	ch := make(chan testEvent)
	state := newTestState()
	stream := New[testEvent, any](FromChannel(ch), nil, testParser{}, state)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stream.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOutputStream_SeqStopsEarly(t *testing.T) {
	events := []testEvent{
		content("a"),
		toolCall("1", "f", "1"),
	}
	stream, _ := newTestStream(events, numberSchema{name: "f"})
	ctx := context.Background()

	count := 0
	for range stream.Seq(ctx) {
		count++
		break
	}
	assert.Equal(t, 1, count)

	// resuming after an early break continues where iteration stopped
	segment, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, SegmentToolCall, segment.Kind())
}

func TestSegmentKind_String(t *testing.T) {
	assert.Equal(t, "text", SegmentText.String())
	assert.Equal(t, "tool_call", SegmentToolCall.String())
	assert.Equal(t, "unknown", SegmentKind(0).String())
}
