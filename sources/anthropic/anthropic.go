// Package anthropic binds the grouping engine to anthropic message streams.
// Tool calls arrive as a content_block_start carrying the call id and name
// followed by input_json_delta fragments; the parser maps those onto the
// engine's chunk model, where a fragment without an id continues the active
// call.
package anthropic

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/casualjim/restream"
	"github.com/casualjim/restream/messages"
	"github.com/casualjim/restream/pkg/uuidx"
	"github.com/go-openapi/strfmt"
)

// Stream adapts the SDK's pull stream to the engine's Source.
type Stream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

// NewStream wraps a stream obtained from Messages.NewStreaming.
func NewStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) *Stream {
	return &Stream{stream: stream}
}

func (s *Stream) Next(ctx context.Context) (anthropic.MessageStreamEventUnion, error) {
	if err := ctx.Err(); err != nil {
		return anthropic.MessageStreamEventUnion{}, err
	}
	if s.stream.Next() {
		return s.stream.Current(), nil
	}
	if err := s.stream.Err(); err != nil {
		return anthropic.MessageStreamEventUnion{}, err
	}
	return anthropic.MessageStreamEventUnion{}, io.EOF
}

func (s *Stream) Close() error { return s.stream.Close() }

// Parser classifies anthropic stream events. message_start, message_delta,
// content_block_stop and thinking deltas are administrative.
type Parser struct{}

var _ restream.Parser[anthropic.MessageStreamEventUnion] = Parser{}

func (Parser) IsContent(event anthropic.MessageStreamEventUnion) bool {
	delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
	return ok && delta.Delta.Type == "text_delta" && delta.Delta.Text != ""
}

func (Parser) Content(event anthropic.MessageStreamEventUnion) (string, bool) {
	delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
	if !ok || delta.Delta.Type != "text_delta" {
		return "", false
	}
	return delta.Delta.Text, true
}

func (Parser) IsToolCall(event anthropic.MessageStreamEventUnion) bool {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		return e.ContentBlock.Type == "tool_use"
	case anthropic.ContentBlockDeltaEvent:
		return e.Delta.Type == "input_json_delta"
	default:
		return false
	}
}

func (Parser) ToolCalls(event anthropic.MessageStreamEventUnion) iter.Seq[restream.ToolCallChunk] {
	return func(yield func(restream.ToolCallChunk) bool) {
		switch e := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if e.ContentBlock.Type == "tool_use" {
				yield(restream.ToolCallChunk{
					ID:   e.ContentBlock.ID,
					Name: e.ContentBlock.Name,
				})
			}
		case anthropic.ContentBlockDeltaEvent:
			if e.Delta.Type == "input_json_delta" {
				yield(restream.ToolCallChunk{Args: e.Delta.PartialJSON})
			}
		}
	}
}

// State accumulates stream events into an assistant message snapshot and
// usage totals. Anthropic reports output tokens cumulatively in
// message_delta events, so completion counts are replaced rather than
// summed.
type State struct {
	message messages.Message
	usage   *messages.Usage
}

var _ restream.State[anthropic.MessageStreamEventUnion] = (*State)(nil)

func NewState() *State {
	return &State{
		message: messages.Message{
			ID:        uuidx.New(),
			Timestamp: strfmt.DateTime(time.Now()),
		},
		usage: &messages.Usage{},
	}
}

func (s *State) Update(event anthropic.MessageStreamEventUnion) {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		s.usage.PromptTokens = e.Message.Usage.InputTokens
		s.usage.CompletionTokens = e.Message.Usage.OutputTokens
		s.usage.PromptTokensDetails.CachedTokens = e.Message.Usage.CacheReadInputTokens
		s.usage.TotalTokens = s.usage.PromptTokens + s.usage.CompletionTokens

	case anthropic.ContentBlockStartEvent:
		if e.ContentBlock.Type == "tool_use" {
			s.message.ToolCalls = append(s.message.ToolCalls, messages.ToolCallData{
				ID:   e.ContentBlock.ID,
				Name: e.ContentBlock.Name,
			})
		}

	case anthropic.ContentBlockDeltaEvent:
		switch e.Delta.Type {
		case "text_delta":
			s.message.Content += e.Delta.Text
		case "input_json_delta":
			if n := len(s.message.ToolCalls); n > 0 {
				s.message.ToolCalls[n-1].Arguments += e.Delta.PartialJSON
			}
		}

	case anthropic.MessageDeltaEvent:
		s.usage.CompletionTokens = e.Usage.OutputTokens
		s.usage.TotalTokens = s.usage.PromptTokens + s.usage.CompletionTokens
	}
}

func (s *State) MessageSnapshot() messages.Message { return s.message.Clone() }

func (s *State) Usage() *messages.Usage { return s.usage }
