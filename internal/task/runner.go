package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/metrics"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/queue"
	"github.com/phrazzld/inkwell-api/internal/redact"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// StuckJobAge defines how long a job can go without an update
	// before it's considered stuck and re-enqueued
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs
	// If zero, defaults to 5 minutes
	StuckJobCheckInterval time.Duration

	// RetryDelay is how long a failed delivery waits before it is retried
	RetryDelay time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           2,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
		RetryDelay:            30 * time.Second,
	}
}

// NewRunnerConfig converts the task section of the application config.
func NewRunnerConfig(cfg config.TaskConfig) RunnerConfig {
	return RunnerConfig{
		WorkerCount:           cfg.WorkerCount,
		StuckJobAge:           time.Duration(cfg.StuckJobAgeMinutes) * time.Minute,
		StuckJobCheckInterval: time.Duration(cfg.StuckJobCheckIntervalMinutes) * time.Minute,
		RetryDelay:            time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}
}

// Runner is the worker pool. It pulls job ids from the queue and hands
// them to a Processor, and it re-enqueues jobs found unfinished in the
// store at startup or stuck while running.
type Runner struct {
	queue      queue.Queue
	jobs       store.JobStore
	processor  Processor
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(jobID uuid.UUID, err error)
}

// NewRunner creates a new Runner
func NewRunner(q queue.Queue, jobs store.JobStore, processor Processor, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.StuckJobCheckInterval == 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := logger.With("component", "job_runner")

	return &Runner{
		queue:      q,
		jobs:       jobs,
		processor:  processor,
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     log,
		errHandler: func(jobID uuid.UUID, err error) {
			log.Error("job delivery failed",
				"job_id", jobID,
				"error", redact.Error(err))
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *Runner) SetErrorHandler(handler func(jobID uuid.UUID, err error)) {
	r.errHandler = handler
}

// Start recovers unfinished jobs and starts the workers and the stuck job monitor.
func (r *Runner) Start() error {
	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	r.logger.Info("job runner started", "workers", r.config.WorkerCount)
	return nil
}

// Stop gracefully shuts down the runner. In-flight jobs see their context
// cancelled and are handed back to the queue.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

// Recover re-enqueues jobs a previous process left queued or running.
// Durable queues first return their own unacknowledged deliveries.
func (r *Runner) Recover(ctx context.Context) error {
	if rec, ok := r.queue.(queue.Recoverer); ok {
		if _, err := rec.Recover(ctx); err != nil {
			return err
		}
	}

	queued, err := r.jobs.ListByStatus(ctx, domain.JobStatusQueued, 0)
	if err != nil {
		return fmt.Errorf("failed to get queued jobs: %w", err)
	}

	running, err := r.jobs.ListByStatus(ctx, domain.JobStatusRunning, 0)
	if err != nil {
		return fmt.Errorf("failed to get running jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"queued_count", len(queued),
		"running_count", len(running))

	r.requeue(ctx, append(queued, running...), "recovery")
	return nil
}

func (r *Runner) requeue(ctx context.Context, jobs []*domain.Job, reason string) {
	for _, job := range jobs {
		if err := r.queue.Enqueue(ctx, job.ID); err != nil {
			r.logger.Error("failed to requeue job",
				"job_id", job.ID,
				"status", job.Status,
				"reason", reason,
				"error", err)
		}
	}
}

// worker processes jobs from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		if r.ctx.Err() != nil {
			r.logger.Debug("stopping worker", "worker_id", id)
			return
		}

		delivery, err := r.queue.Dequeue(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				r.logger.Debug("stopping worker", "worker_id", id)
				return
			}

			r.logger.Error("failed to dequeue job", "worker_id", id, "error", redact.Error(err))
			if sleepContext(r.ctx, time.Second) != nil {
				return
			}
			continue
		}

		r.process(delivery, id)
	}
}

// process handles one delivery
func (r *Runner) process(d *queue.Delivery, workerID int) {
	log := r.logger.With("job_id", d.JobID, "worker_id", workerID)
	ctx := logger.WithLogger(r.ctx, log)

	err := r.processor.Process(ctx, d.JobID)

	// Acknowledgement must survive shutdown, so it does not use the worker context.
	settleCtx := context.WithoutCancel(ctx)

	switch {
	case err == nil:
		if ackErr := r.queue.Ack(settleCtx, d); ackErr != nil {
			log.Error("failed to ack job", "error", ackErr)
		}
	case r.ctx.Err() != nil:
		log.Info("job interrupted by shutdown, returning it to the queue")
		if nackErr := r.queue.Nack(settleCtx, d, 0); nackErr != nil {
			log.Warn("failed to return job to the queue", "error", nackErr)
		}
	default:
		r.errHandler(d.JobID, err)
		if nackErr := r.queue.Nack(settleCtx, d, r.config.RetryDelay); nackErr != nil {
			log.Error("failed to nack job", "error", nackErr)
		}
	}
}

// stuckJobMonitor periodically re-enqueues jobs that have not been updated
// for longer than StuckJobAge and refreshes the queue depth gauge.
func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.CheckStuckJobs(r.ctx)
		}
	}
}

// CheckStuckJobs runs one pass of the stuck job monitor.
func (r *Runner) CheckStuckJobs(ctx context.Context) {
	for _, status := range []domain.JobStatus{domain.JobStatusRunning, domain.JobStatusQueued} {
		stuck, err := r.jobs.ListByStatus(ctx, status, r.config.StuckJobAge)
		if err != nil {
			r.logger.Error("failed to check for stuck jobs", "status", status, "error", err)
			continue
		}

		if len(stuck) > 0 {
			r.logger.Info("found stuck jobs", "status", status, "count", len(stuck))
			r.requeue(ctx, stuck, "stuck")
		}
	}

	if n, err := r.queue.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
}
