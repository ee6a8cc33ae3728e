package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/metrics"
)

// MemoryQueue is a buffered channel of job ids. It is not durable: jobs
// lost on restart are found again by the runner's store recovery.
type MemoryQueue struct {
	jobs   chan uuid.UUID
	done   chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	timers map[*time.Timer]struct{}
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a new queue with the specified buffer size.
func NewMemoryQueue(size int, logger *slog.Logger) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{
		jobs:   make(chan uuid.UUID, size),
		done:   make(chan struct{}),
		logger: logger.With("component", "memory_queue"),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Enqueue adds a job to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *MemoryQueue) Enqueue(_ context.Context, jobID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- jobID:
		metrics.QueueDepth.Set(float64(len(q.jobs)))
		q.logger.Debug("job enqueued",
			"job_id", jobID,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Dequeue implements Queue.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrQueueClosed
	case jobID := <-q.jobs:
		metrics.QueueDepth.Set(float64(len(q.jobs)))
		return &Delivery{JobID: jobID, raw: jobID.String()}, nil
	}
}

// Ack implements Queue. Memory deliveries need no acknowledgement.
func (q *MemoryQueue) Ack(context.Context, *Delivery) error {
	return nil
}

// Nack implements Queue. The job is re-enqueued once delay has passed; if
// the queue is full or closed by then the job is left to store recovery.
func (q *MemoryQueue) Nack(ctx context.Context, d *Delivery, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, d.JobID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()

		if err := q.Enqueue(context.Background(), d.JobID); err != nil {
			q.logger.Warn("failed to re-enqueue job", "job_id", d.JobID, "error", err)
		}
	})
	q.timers[timer] = struct{}{}
	return nil
}

// Len implements Queue. Jobs waiting on a Nack delay are counted.
func (q *MemoryQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs) + len(q.timers)), nil
}

// Close closes the queue, preventing further job submission.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = map[*time.Timer]struct{}{}
	close(q.done)
	q.logger.Info("job queue closed")
	return nil
}
