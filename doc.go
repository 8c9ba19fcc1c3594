/*
Package restream turns the flat event stream produced by a generative-model
backend into an ordered sequence of typed output segments.

A model response arrives as a single-pass sequence of low-level events: text
fragments, tool-call fragments, usage counters and stop signals, all
interleaved. OutputStream regroups that sequence lazily into segments, each
either a contiguous run of streamed text or a fully parsed tool invocation,
without buffering the response and without dropping trailing metadata events.

The engine is built from four collaborators:

  - a Source, the pull primitive over raw events. FromSlice and FromSeq give
    fully blocking iteration; FromChannel suspends cooperatively on the
    channel receive. The grouping algorithm is identical for both.
  - a Parser, which classifies a single raw event and extracts its content
    or tool-call chunks.
  - a State, which observes every event exactly once, in order, and
    maintains the running message snapshot and usage counters.
  - an ordered set of Schemas, which convert a tool call's streamed argument
    text into a typed value.

Consumers may abandon a segment before reading it to the end; the engine
drains the remainder itself before producing the next segment, so no event
is ever lost or delivered out of order. Draining goes through the segment's
own TextStream, which caches fragments, so the full text of a drained
segment stays readable.

	stream := restream.New(source, schemas, parser, state)
	for segment, err := range stream.Seq(ctx) {
		if err != nil {
			// handle *UnknownToolError / *ToolSchemaParseError
		}
		switch segment.Kind() {
		case restream.SegmentText:
			text, _ := segment.Text().String(ctx)
		case restream.SegmentToolCall:
			out := segment.ToolCall()
		}
	}

The sources subpackages bind the engine to openai, anthropic and NATS event
streams; funcschema derives Schemas from Go types.
*/
package restream
