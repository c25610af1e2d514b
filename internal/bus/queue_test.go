package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/schema"
)

func event(seq uint64) Event {
	return Event{Header: schema.EventHeader{Type: schema.EventBookUpdate, Seq: seq}}
}

func TestTryPublishFullAndClosed(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(event(1)))
	assert.ErrorIs(t, q.TryPublish(event(2)), ErrQueueFull)
	assert.Equal(t, 1, q.Len())

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.TryPublish(event(3)), ErrQueueClosed)

	var got []uint64
	q.Run(context.Background(), func(e Event) { got = append(got, e.Header.Seq) })
	assert.Equal(t, []uint64{1}, got)
}

func TestPublishWaitsForRoom(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(event(1)))

	done := make(chan error, 1)
	go func() { done <- q.Publish(context.Background(), event(2)) }()

	time.Sleep(time.Millisecond)
	var got []uint64
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx, func(e Event) {
		got = append(got, e.Header.Seq)
		if len(got) == 2 {
			cancel()
		}
	})
	require.NoError(t, <-done)
	<-ctx.Done()
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestPublishHonoursContext(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(event(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, event(2)), context.DeadlineExceeded)
}
