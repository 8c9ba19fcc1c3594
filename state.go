package restream

import "github.com/casualjim/restream/messages"

// State accumulates the conversation turn being streamed. The engine calls
// Update exactly once per raw event, in source order, before the event is
// routed anywhere else.
type State[T any] interface {
	// Update folds the event into the running message and usage totals.
	Update(item T)

	// MessageSnapshot returns a copy of the message as accumulated so far.
	// Reading it mid-stream gives a partial message; it is also attached to
	// the fatal engine errors for diagnostics.
	MessageSnapshot() messages.Message

	// Usage returns the live usage handle. The same pointer is returned for
	// the lifetime of the state, so it can be read mid-stream for a partial
	// total and after exhaustion for the final one.
	Usage() *messages.Usage
}
