package restream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/casualjim/restream/messages"
)

// OutputStream regroups a raw event stream into segments. It works like a
// lazy group-by with a one-item lookahead: at most one event (or, inside a
// tool-call group, one chunk) is ever held after being pulled but before
// being routed.
//
// The stream is single-pass and not reentrant: drive it from one call site
// only, to completion at most once. The underlying source is owned
// exclusively by the engine from construction on.
type OutputStream[T, O any] struct {
	source  Source[T]
	schemas []Schema[O]
	parser  Parser[T]
	state   State[T]

	pending     *T             // raw-event lookahead
	pendingCall *ToolCallChunk // chunk lookahead, set while grouping tool calls
	callQueue   []ToolCallChunk
	inCalls     bool
	exhausted   bool
	err         error

	// fragment stream of the segment most recently yielded, drained before
	// the next segment is produced so the boundary event is never lost
	active *TextStream
}

// New builds an engine over source. Events are classified by parser, applied
// to state exactly once each, and tool calls are parsed by the first schema
// matching their name.
func New[T, O any](source Source[T], schemas []Schema[O], parser Parser[T], state State[T]) *OutputStream[T, O] {
	return &OutputStream[T, O]{
		source:  source,
		schemas: schemas,
		parser:  parser,
		state:   state,
	}
}

// Usage exposes the state's live usage handle. Reading it mid-stream gives
// the totals for the events processed so far.
func (s *OutputStream[T, O]) Usage() *messages.Usage { return s.state.Usage() }

// MessageSnapshot returns the message accumulated so far.
func (s *OutputStream[T, O]) MessageSnapshot() messages.Message {
	return s.state.MessageSnapshot()
}

// Seq iterates the remaining segments. Iteration stops silently at end of
// stream; a fatal error is yielded as the final pair with a zero segment.
func (s *OutputStream[T, O]) Seq(ctx context.Context) iter.Seq2[Segment[O], error] {
	return func(yield func(Segment[O], error) bool) {
		for {
			segment, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Segment[O]{}, err)
				return
			}
			if !yield(segment, nil) {
				return
			}
		}
	}
}

// Next produces the next segment, draining whatever is left of the previous
// one first. It returns io.EOF once the source is exhausted, and latches any
// other error: after a fatal error every later call returns the same error.
func (s *OutputStream[T, O]) Next(ctx context.Context) (Segment[O], error) {
	if s.err != nil {
		return Segment[O]{}, s.err
	}
	if err := s.finishActive(ctx); err != nil {
		return Segment[O]{}, s.fail(err)
	}

	if s.inCalls {
		if s.pendingCall == nil {
			// the flattened chunk stream consumed the rest of the source,
			// trailing usage and stop events included
			s.inCalls = false
			return Segment[O]{}, io.EOF
		}
		return s.nextToolCall(ctx)
	}

	for {
		if s.pending == nil {
			if s.exhausted {
				return Segment[O]{}, io.EOF
			}
			item, ok, err := s.pull(ctx)
			if err != nil {
				return Segment[O]{}, s.fail(err)
			}
			if !ok {
				return Segment[O]{}, io.EOF
			}
			s.pending = &item
		}

		switch item := *s.pending; {
		case s.parser.IsContent(item):
			return s.textSegment(), nil
		case s.parser.IsToolCall(item):
			return s.enterToolCalls(ctx)
		default:
			// administrative event (usage, stop reason); state has already
			// seen it, nothing to route
			s.pending = nil
		}
	}
}

// pull advances the source by one event and applies it to the state. The
// second return value is false once the source is exhausted.
func (s *OutputStream[T, O]) pull(ctx context.Context) (T, bool, error) {
	item, err := s.source.Next(ctx)
	if err != nil {
		var zero T
		if errors.Is(err, io.EOF) {
			s.exhausted = true
			return zero, false, nil
		}
		return zero, false, err
	}
	s.state.Update(item)
	return item, true, nil
}

func (s *OutputStream[T, O]) fail(err error) error {
	s.err = err
	return err
}

// finishActive drains the previously yielded segment's fragment stream so
// the boundary event parked in the lookahead, or still waiting in the
// source, is not lost when the consumer stopped reading early.
func (s *OutputStream[T, O]) finishActive(ctx context.Context) error {
	if s.active == nil {
		return nil
	}
	active := s.active
	s.active = nil
	return active.Drain(ctx)
}

// textSegment opens a text run starting at the lookahead event. The run
// keeps pulling events, emitting their content, until a tool-call event is
// seen (which becomes the new lookahead) or the source ends.
func (s *OutputStream[T, O]) textSegment() Segment[O] {
	first := *s.pending
	s.pending = nil

	primed := false
	done := false
	text := NewTextStream(func(ctx context.Context) (string, error) {
		if done {
			return "", io.EOF
		}
		for {
			var item T
			if !primed {
				primed = true
				item = first
			} else {
				next, ok, err := s.pull(ctx)
				if err != nil {
					return "", err
				}
				if !ok {
					done = true
					return "", io.EOF
				}
				item = next
			}

			content, _ := s.parser.Content(item)
			if s.parser.IsToolCall(item) {
				boundary := item
				s.pending = &boundary
				done = true
				if content != "" {
					return content, nil
				}
				return "", io.EOF
			}
			if content != "" {
				return content, nil
			}
			// contentless event inside the run, keep pulling
		}
	})

	s.active = text
	return textSegment[O](text)
}

// enterToolCalls switches the engine into tool-call grouping. From here on
// every remaining event is consumed through the flattened chunk stream, so
// trailing administrative events still reach the state.
func (s *OutputStream[T, O]) enterToolCalls(ctx context.Context) (Segment[O], error) {
	first := *s.pending
	s.pending = nil
	s.inCalls = true
	s.callQueue = slices.Collect(s.parser.ToolCalls(first))

	chunk, err := s.nextChunk(ctx)
	if err != nil {
		return Segment[O]{}, s.fail(err)
	}
	if chunk == nil {
		return Segment[O]{}, s.fail(&ProtocolError{
			Reason: "tool call event produced no chunks",
		})
	}
	s.pendingCall = chunk
	return s.nextToolCall(ctx)
}

// nextChunk pulls the next tool-call chunk from the flattened stream,
// advancing the raw source as needed. It returns nil once the source is
// exhausted.
func (s *OutputStream[T, O]) nextChunk(ctx context.Context) (*ToolCallChunk, error) {
	for {
		if len(s.callQueue) > 0 {
			chunk := s.callQueue[0]
			s.callQueue = s.callQueue[1:]
			return &chunk, nil
		}
		if s.exhausted {
			return nil, nil
		}
		item, ok, err := s.pull(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		s.callQueue = slices.Collect(s.parser.ToolCalls(item))
	}
}

// nextToolCall produces one structured segment from the chunk lookahead. The
// argument stream handed to the schema ends at the first chunk bearing a
// different call id, which becomes the new chunk lookahead.
func (s *OutputStream[T, O]) nextToolCall(ctx context.Context) (Segment[O], error) {
	first := *s.pendingCall
	s.pendingCall = nil

	if first.ID == "" || first.Name == "" {
		return Segment[O]{}, s.fail(&ProtocolError{
			Reason: fmt.Sprintf("tool call chunk without id or name: %+v", first),
		})
	}

	schema := SelectSchema(s.schemas, first.Name)
	if schema == nil {
		return Segment[O]{}, s.fail(&UnknownToolError{
			Message:    s.state.MessageSnapshot(),
			ToolCallID: first.ID,
			ToolName:   first.Name,
		})
	}

	callID := first.ID
	primed := false
	done := false
	args := NewTextStream(func(ctx context.Context) (string, error) {
		if done {
			return "", io.EOF
		}
		for {
			var chunk ToolCallChunk
			if !primed {
				primed = true
				chunk = first
			} else {
				next, err := s.nextChunk(ctx)
				if err != nil {
					return "", err
				}
				if next == nil {
					done = true
					return "", io.EOF
				}
				// only a chunk for a different call ends the stream, so
				// trailing usage and stop events are still consumed
				if next.ID != "" && next.ID != callID {
					s.pendingCall = next
					done = true
					return "", io.EOF
				}
				chunk = *next
			}
			if chunk.Args != "" {
				return chunk.Args, nil
			}
		}
	})

	out, err := schema.Parse(ctx, args)
	if err != nil {
		if serr := args.Err(); serr != nil {
			// the stream itself failed, not the validation
			return Segment[O]{}, s.fail(serr)
		}
		return Segment[O]{}, s.fail(&ToolSchemaParseError{
			Message:    s.state.MessageSnapshot(),
			ToolCallID: callID,
			Err:        err,
		})
	}

	s.active = args
	return toolCallSegment[O](out, callID, first.Name), nil
}
