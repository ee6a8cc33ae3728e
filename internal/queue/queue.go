// Package queue moves job ids from the orchestrator to the worker pool.
//
// Delivery is at-least-once: a dequeued job stays owned by the consumer
// until it is acknowledged, and may be delivered again after a crash or a
// Nack. Consumers must tolerate duplicates.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by queue implementations
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// Delivery is one dequeued job id.
type Delivery struct {
	JobID uuid.UUID

	// raw is the message as stored by the implementation, used to
	// acknowledge it.
	raw string
}

// Queue is a work queue of job ids.
// Version: 1.0
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns ErrQueueFull or ErrQueueClosed if the job cannot be accepted.
	Enqueue(ctx context.Context, jobID uuid.UUID) error

	// Dequeue blocks until a job is available or ctx is done.
	// Returns ErrQueueClosed once the queue is closed.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Ack marks a delivery as fully handled.
	Ack(ctx context.Context, d *Delivery) error

	// Nack returns a delivery to the queue after delay.
	Nack(ctx context.Context, d *Delivery, delay time.Duration) error

	// Len reports the number of jobs waiting, including delayed ones.
	Len(ctx context.Context) (int64, error)

	// Close stops the queue. Pending deliveries are dropped by memory
	// implementations and kept by durable ones.
	Close() error
}

// Recoverer is implemented by durable queues that can return deliveries
// left unacknowledged by a previous process to the ready list.
type Recoverer interface {
	Recover(ctx context.Context) (int, error)
}
