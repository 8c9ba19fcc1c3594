package restream

import (
	"context"
	"io"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[T any](t *testing.T, source Source[T]) []T {
	t.Helper()
	ctx := context.Background()
	var items []T
	for {
		item, err := source.Next(ctx)
		if err == io.EOF {
			return items
		}
		require.NoError(t, err)
		items = append(items, item)
	}
}

func TestFromSlice(t *testing.T) {
	source := FromSlice([]int{1, 2, 3})
	assert.Equal(t, []int{1, 2, 3}, collect(t, source))

	// exhausted sources stay exhausted
	_, err := source.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestFromSlice_CancelledContext(t *testing.T) {
	source := FromSlice([]int{1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromSeq(t *testing.T) {
	source := FromSeq(slices.Values([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, collect(t, source))
}

func TestFromChannel(t *testing.T) {
	ch := make(chan int)
	go func() {
		defer close(ch)
		for i := range 3 {
			ch <- i
		}
	}()

	source := FromChannel(ch)
	assert.Equal(t, []int{0, 1, 2}, collect(t, source))
}

func TestFromChannel_CancelledContext(t *testing.T) {
	ch := make(chan int)
	source := FromChannel(ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
