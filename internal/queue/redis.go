package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/metrics"
)

// RedisQueue is a reliable queue on Redis lists. Dequeue atomically moves
// a job from the ready list to a processing list; Ack removes it from
// there. Nacked jobs wait in a sorted set scored by their due time.
type RedisQueue struct {
	client     *redis.Client
	ready      string
	processing string
	delayed    string
	poll       time.Duration
	logger     *slog.Logger
	closed     atomic.Bool
}

var (
	_ Queue     = (*RedisQueue)(nil)
	_ Recoverer = (*RedisQueue)(nil)
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisQueue creates a queue whose keys share the given prefix.
// The queue owns the client and closes it in Close.
func NewRedisQueue(client *redis.Client, prefix string, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		client:     client,
		ready:      prefix + ":ready",
		processing: prefix + ":processing",
		delayed:    prefix + ":delayed",
		poll:       time.Second,
		logger:     logger.With("component", "redis_queue"),
	}
}

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if err := q.client.LPush(ctx, q.ready, jobID.String()).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	q.logger.DebugContext(ctx, "job enqueued", "job_id", jobID)
	return nil
}

// Dequeue implements Queue. It polls so that delayed jobs become ready
// and closing the queue is noticed within one poll interval.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if q.closed.Load() {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := q.promoteDue(ctx); err != nil {
			q.logger.WarnContext(ctx, "failed to promote delayed jobs", "error", err)
		}

		raw, err := q.client.BRPopLPush(ctx, q.ready, q.processing, q.poll).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to dequeue job: %w", err)
		}

		jobID, err := uuid.Parse(raw)
		if err != nil {
			q.logger.ErrorContext(ctx, "dropping malformed queue entry", "entry", raw, "error", err)
			_ = q.client.LRem(ctx, q.processing, 1, raw).Err()
			continue
		}

		q.updateDepth(ctx)
		return &Delivery{JobID: jobID, raw: raw}, nil
	}
}

// Ack implements Queue.
func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.client.LRem(ctx, q.processing, 1, d.raw).Err(); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", d.JobID, err)
	}
	return nil
}

// Nack implements Queue.
func (q *RedisQueue) Nack(ctx context.Context, d *Delivery, delay time.Duration) error {
	due := time.Now().Add(delay)

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, d.raw)
		if delay <= 0 {
			pipe.LPush(ctx, q.ready, d.raw)
			return nil
		}
		pipe.ZAdd(ctx, q.delayed, &redis.Z{Score: float64(due.UnixMilli()), Member: d.raw})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to nack job %s: %w", d.JobID, err)
	}
	return nil
}

// Len implements Queue.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.ready)
	delayed := pipe.ZCard(ctx, q.delayed)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return ready.Val() + delayed.Val(), nil
}

// Recover implements Recoverer. Every job still in the processing list
// was dequeued by a process that did not acknowledge it.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.client.RPopLPush(ctx, q.processing, q.ready).Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return recovered, fmt.Errorf("failed to recover processing jobs: %w", err)
		}
		recovered++
	}

	if recovered > 0 {
		q.logger.InfoContext(ctx, "recovered unacknowledged jobs", "count", recovered)
	}
	return recovered, nil
}

// Close implements Queue.
func (q *RedisQueue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	return q.client.Close()
}

// promoteDue moves delayed jobs whose due time has passed to the ready
// list. ZRem decides the winner when several consumers race.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return err
	}

	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, q.delayed, raw).Result()
		if err != nil {
			return err
		}
		if removed == 1 {
			if err := q.client.LPush(ctx, q.ready, raw).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (q *RedisQueue) updateDepth(ctx context.Context) {
	if n, err := q.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
}
