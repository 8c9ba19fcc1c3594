package restream

import (
	"context"
	"io"
	"iter"
)

// Source is the pull primitive the engine consumes raw events through. Next
// returns io.EOF once the stream is exhausted. A source is owned by exactly
// one engine instance and must not be pulled from anywhere else once the
// engine has been constructed.
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[T any] func(ctx context.Context) (T, error)

func (f SourceFunc[T]) Next(ctx context.Context) (T, error) { return f(ctx) }

// FromSlice returns a blocking source over a fixed set of events.
func FromSlice[T any](items []T) Source[T] {
	i := 0
	return SourceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if i >= len(items) {
			return zero, io.EOF
		}
		item := items[i]
		i++
		return item, nil
	})
}

// FromSeq returns a blocking source over an iterator sequence.
func FromSeq[T any](seq iter.Seq[T]) Source[T] {
	next, stop := iter.Pull(seq)
	return SourceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			stop()
			return zero, err
		}
		item, ok := next()
		if !ok {
			return zero, io.EOF
		}
		return item, nil
	})
}

// FromChannel returns a cooperative source that suspends on the channel
// receive until an event arrives, the channel closes (io.EOF) or the context
// is done. This is the execution mode to use when events are produced by a
// goroutine, for example a provider SDK pumping chunks into a channel.
func FromChannel[T any](ch <-chan T) Source[T] {
	return SourceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case item, ok := <-ch:
			if !ok {
				return zero, io.EOF
			}
			return item, nil
		}
	})
}
