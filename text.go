package restream

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
)

// TextStream is a lazy, single-pass stream of string fragments: the body of
// a text segment, or the argument text of a tool call. Every fragment that
// passes through Next is cached, so after the stream has been consumed (by
// the caller or by the engine's own draining) the full text remains
// available through String or Text.
type TextStream struct {
	next  func(ctx context.Context) (string, error)
	cache []string
	done  bool
	err   error
}

// NewTextStream wraps a pull function into a TextStream. The function
// returns io.EOF when no more fragments will arrive.
func NewTextStream(next func(ctx context.Context) (string, error)) *TextStream {
	return &TextStream{next: next}
}

// TextStreamOf returns an exhausted-on-demand stream over fixed fragments.
// Mostly useful for feeding a Schema outside an engine, e.g. in tests or
// when re-parsing recorded argument text.
func TextStreamOf(fragments ...string) *TextStream {
	i := 0
	return NewTextStream(func(ctx context.Context) (string, error) {
		if i >= len(fragments) {
			return "", io.EOF
		}
		fragment := fragments[i]
		i++
		return fragment, nil
	})
}

// Next returns the next fragment, or io.EOF once the stream is exhausted.
// A non-EOF error is terminal and returned again on every later call.
func (s *TextStream) Next(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.done {
		return "", io.EOF
	}
	fragment, err := s.next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return "", io.EOF
		}
		s.err = err
		return "", err
	}
	s.cache = append(s.cache, fragment)
	return fragment, nil
}

// Seq iterates the remaining fragments. A non-EOF failure is yielded as the
// final pair with an empty fragment.
func (s *TextStream) Seq(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			fragment, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// Drain consumes the remaining fragments into the cache. It is a no-op on an
// exhausted stream.
func (s *TextStream) Drain(ctx context.Context) error {
	for {
		_, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// String drains the stream and returns the complete text, including any
// fragments already consumed.
func (s *TextStream) String(ctx context.Context) (string, error) {
	if err := s.Drain(ctx); err != nil {
		return "", err
	}
	return s.Text(), nil
}

// Text returns the text accumulated so far without pulling further
// fragments.
func (s *TextStream) Text() string {
	return strings.Join(s.cache, "")
}

// Exhausted reports whether the stream has ended normally.
func (s *TextStream) Exhausted() bool { return s.done }

// Err returns the terminal error, if the stream failed.
func (s *TextStream) Err() error { return s.err }
