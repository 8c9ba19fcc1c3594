// Package openai binds the grouping engine to openai chat completion
// streams: a Source over the SDK's SSE stream, a Parser for chunk deltas and
// a State accumulating the assistant message and usage.
package openai

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/casualjim/restream"
	"github.com/casualjim/restream/messages"
	"github.com/casualjim/restream/pkg/uuidx"
	"github.com/go-openapi/strfmt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// Stream adapts the SDK's pull stream to the engine's Source. It owns the
// underlying stream; close it once the engine is done.
type Stream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

// NewStream wraps a stream obtained from Chat.Completions.NewStreaming.
func NewStream(stream *ssestream.Stream[openai.ChatCompletionChunk]) *Stream {
	return &Stream{stream: stream}
}

func (s *Stream) Next(ctx context.Context) (openai.ChatCompletionChunk, error) {
	if err := ctx.Err(); err != nil {
		return openai.ChatCompletionChunk{}, err
	}
	if s.stream.Next() {
		return s.stream.Current(), nil
	}
	if err := s.stream.Err(); err != nil {
		return openai.ChatCompletionChunk{}, err
	}
	return openai.ChatCompletionChunk{}, io.EOF
}

func (s *Stream) Close() error { return s.stream.Close() }

// Parser classifies chat completion chunks. Chunks without choices (the
// trailing usage-only chunk, for example) are administrative.
type Parser struct{}

var _ restream.Parser[openai.ChatCompletionChunk] = Parser{}

func (Parser) IsContent(chunk openai.ChatCompletionChunk) bool {
	return len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != ""
}

func (Parser) Content(chunk openai.ChatCompletionChunk) (string, bool) {
	if len(chunk.Choices) == 0 {
		return "", false
	}
	content := chunk.Choices[0].Delta.Content
	return content, content != ""
}

func (Parser) IsToolCall(chunk openai.ChatCompletionChunk) bool {
	return len(chunk.Choices) > 0 && len(chunk.Choices[0].Delta.ToolCalls) > 0
}

func (Parser) ToolCalls(chunk openai.ChatCompletionChunk) iter.Seq[restream.ToolCallChunk] {
	return func(yield func(restream.ToolCallChunk) bool) {
		if len(chunk.Choices) == 0 {
			return
		}
		for _, tc := range chunk.Choices[0].Delta.ToolCalls {
			chunk := restream.ToolCallChunk{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// State accumulates chunks into an assistant message snapshot and usage
// totals. Request usage reporting with
// openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
// to get the trailing usage chunk.
type State struct {
	message messages.Message
	usage   *messages.Usage
}

var _ restream.State[openai.ChatCompletionChunk] = (*State)(nil)

func NewState() *State {
	return &State{
		message: messages.Message{
			ID:        uuidx.New(),
			Timestamp: strfmt.DateTime(time.Now()),
		},
		usage: &messages.Usage{},
	}
}

func (s *State) Update(chunk openai.ChatCompletionChunk) {
	if len(chunk.Choices) > 0 {
		delta := chunk.Choices[0].Delta
		s.message.Content += delta.Content
		if delta.Refusal != "" {
			s.message.Refusal += delta.Refusal
		}

		for _, tc := range delta.ToolCalls {
			n := len(s.message.ToolCalls)
			if tc.ID != "" && (n == 0 || s.message.ToolCalls[n-1].ID != tc.ID) {
				s.message.ToolCalls = append(s.message.ToolCalls, messages.ToolCallData{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
				continue
			}
			if n == 0 {
				// argument fragment before any call id; keep it anyway and
				// let the engine surface the protocol violation
				s.message.ToolCalls = append(s.message.ToolCalls, messages.ToolCallData{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
				continue
			}
			last := &s.message.ToolCalls[len(s.message.ToolCalls)-1]
			if tc.Function.Name != "" {
				last.Name += tc.Function.Name
			}
			last.Arguments += tc.Function.Arguments
		}
	}

	if chunk.Usage.TotalTokens != 0 || chunk.Usage.PromptTokens != 0 {
		s.usage.AddUsage(&messages.Usage{
			CompletionTokens: chunk.Usage.CompletionTokens,
			PromptTokens:     chunk.Usage.PromptTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
			CompletionTokensDetails: messages.CompletionTokensDetails{
				AcceptedPredictionTokens: chunk.Usage.CompletionTokensDetails.AcceptedPredictionTokens,
				AudioTokens:              chunk.Usage.CompletionTokensDetails.AudioTokens,
				ReasoningTokens:          chunk.Usage.CompletionTokensDetails.ReasoningTokens,
				RejectedPredictionTokens: chunk.Usage.CompletionTokensDetails.RejectedPredictionTokens,
			},
			PromptTokensDetails: messages.PromptTokensDetails{
				AudioTokens:  chunk.Usage.PromptTokensDetails.AudioTokens,
				CachedTokens: chunk.Usage.PromptTokensDetails.CachedTokens,
			},
		})
	}
}

func (s *State) MessageSnapshot() messages.Message { return s.message.Clone() }

func (s *State) Usage() *messages.Usage { return s.usage }
