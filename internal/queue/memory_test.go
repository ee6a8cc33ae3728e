package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(3, testLogger())
	ctx := context.Background()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	err = q.Enqueue(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrQueueFull)

	for _, want := range ids {
		d, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, d.JobID)
		assert.NoError(t, q.Ack(ctx, d))
	}
}

func TestMemoryQueueDequeueHonoursContext(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueNackRedelivers(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(2, testLogger())
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, q.Enqueue(ctx, id))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Nack(ctx, d, 10*time.Millisecond))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "delayed job counts towards length")

	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	again, err := q.Dequeue(dctx)
	require.NoError(t, err)
	assert.Equal(t, id, again.JobID)
}

func TestMemoryQueueClose(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(2, testLogger())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, uuid.New()))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, d, time.Hour))

	require.NoError(t, q.Close())
	require.NoError(t, q.Close(), "close is idempotent")

	assert.ErrorIs(t, q.Enqueue(ctx, uuid.New()), ErrQueueClosed)
	assert.ErrorIs(t, q.Nack(ctx, d, time.Second), ErrQueueClosed)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "pending redeliveries are dropped")
}
