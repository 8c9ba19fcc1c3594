// Package natsx pulls raw events off a NATS subject, one JSON-framed event
// per message. It is the cooperative execution mode over a real transport:
// the engine suspends in NextMsgWithContext until the producer publishes the
// next event. An empty-payload message marks the end of the stream.
package natsx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/casualjim/restream/pkg/slogx"
	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// NewClient connects to the NATS server named by the NATS_URL environment
// variable. The connection is configured with a client name "restream" and
// compression enabled unless options are given.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name("restream"), nats.Compression(true))
	}
	return nats.Connect(os.Getenv("NATS_URL"), opts...)
}

// Source is a single-consumer pull source over one subject. It must not be
// shared between engine instances.
type Source[T any] struct {
	sub *nats.Subscription
}

// NewSource subscribes to subject on nc.
func NewSource[T any](nc *nats.Conn, subject string) (*Source[T], error) {
	sub, err := nc.SubscribeSync(subject)
	if err != nil {
		return nil, fmt.Errorf("natsx: subscribe %s: %w", subject, err)
	}
	return &Source[T]{sub: sub}, nil
}

func (s *Source[T]) Next(ctx context.Context) (T, error) {
	var zero T
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		return zero, err
	}
	if len(msg.Data) == 0 {
		// end-of-stream frame
		return zero, io.EOF
	}

	var item T
	if err := json.Unmarshal(msg.Data, &item); err != nil {
		slog.ErrorContext(ctx, "failed to decode event frame", slogx.Error(err))
		return zero, fmt.Errorf("natsx: decode event: %w", err)
	}
	return item, nil
}

// Close drops the subscription. Safe to call after the stream ended.
func (s *Source[T]) Close() error {
	return s.sub.Unsubscribe()
}

// Publish sends one event frame to subject. The producer side of Source.
func Publish[T any](nc *nats.Conn, subject string, item T) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("natsx: encode event: %w", err)
	}
	return nc.Publish(subject, data)
}

// End sends the end-of-stream frame to subject.
func End(nc *nats.Conn, subject string) error {
	return nc.Publish(subject, nil)
}
