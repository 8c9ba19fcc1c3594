// Package messages holds the data model shared between the grouping engine
// and its State collaborators: the in-progress assistant message snapshot
// and the token usage counters.
//
// Message values returned from a State are snapshots: the engine attaches
// them to fatal errors and callers may read them mid-stream, so State
// implementations hand out copies via Clone rather than aliases of their
// working message.
package messages
