package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/platform/memory"
	"github.com/phrazzld/inkwell-api/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProcessor records processed job ids
type countingProcessor struct {
	mu        sync.Mutex
	seen      map[uuid.UUID]int
	processed chan uuid.UUID
	ProcessFn func(ctx context.Context, jobID uuid.UUID, attempt int) error
}

func newCountingProcessor() *countingProcessor {
	return &countingProcessor{
		seen:      make(map[uuid.UUID]int),
		processed: make(chan uuid.UUID, 100),
	}
}

func (p *countingProcessor) Process(ctx context.Context, jobID uuid.UUID) error {
	p.mu.Lock()
	p.seen[jobID]++
	attempt := p.seen[jobID]
	p.mu.Unlock()

	var err error
	if p.ProcessFn != nil {
		err = p.ProcessFn(ctx, jobID, attempt)
	}
	p.processed <- jobID
	return err
}

func (p *countingProcessor) count(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[id]
}

func waitFor(t *testing.T, ch <-chan uuid.UUID, want uuid.UUID) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("job %s was not processed in time", want)
		}
	}
}

func storedJob(t *testing.T, jobs *memory.JobStore, status domain.JobStatus) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(uuid.New(), []string{"title"}, domain.GenerationConfig{Length: domain.LengthShort}, 880)
	require.NoError(t, err)
	require.NoError(t, jobs.Create(context.Background(), job))

	if status == domain.JobStatusRunning {
		require.NoError(t, job.Transition(domain.JobStatusRunning, time.Now()))
		require.NoError(t, jobs.Update(context.Background(), job))
	}
	return job
}

func testRunnerConfig() RunnerConfig {
	cfg := DefaultRunnerConfig()
	cfg.WorkerCount = 2
	cfg.RetryDelay = 10 * time.Millisecond
	return cfg
}

func TestRunnerProcessesEnqueuedJobs(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue(10, testLogger())
	processor := newCountingProcessor()
	runner := NewRunner(q, memory.NewJobStore(), processor, testRunnerConfig(), testLogger())

	require.NoError(t, runner.Start())
	defer runner.Stop()

	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), id))

	waitFor(t, processor.processed, id)
	assert.Equal(t, 1, processor.count(id))
}

func TestRunnerRecoversUnfinishedJobs(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	queued := storedJob(t, jobs, domain.JobStatusQueued)
	running := storedJob(t, jobs, domain.JobStatusRunning)

	q := queue.NewMemoryQueue(10, testLogger())
	processor := newCountingProcessor()
	runner := NewRunner(q, jobs, processor, testRunnerConfig(), testLogger())

	require.NoError(t, runner.Start())
	defer runner.Stop()

	waitFor(t, processor.processed, queued.ID)
	assert.Eventually(t, func() bool {
		return processor.count(running.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunnerRetriesFailedDeliveries(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue(10, testLogger())
	processor := newCountingProcessor()
	processor.ProcessFn = func(_ context.Context, _ uuid.UUID, attempt int) error {
		if attempt == 1 {
			return errors.New("store unavailable")
		}
		return nil
	}

	runner := NewRunner(q, memory.NewJobStore(), processor, testRunnerConfig(), testLogger())

	var handled sync.WaitGroup
	handled.Add(1)
	runner.SetErrorHandler(func(uuid.UUID, error) { handled.Done() })

	require.NoError(t, runner.Start())
	defer runner.Stop()

	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), id))

	handled.Wait()
	assert.Eventually(t, func() bool {
		return processor.count(id) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunnerStopInterruptsWorkers(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue(10, testLogger())
	started := make(chan struct{})
	var once sync.Once
	processor := ProcessorFunc(func(ctx context.Context, _ uuid.UUID) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	})

	cfg := testRunnerConfig()
	cfg.WorkerCount = 1
	runner := NewRunner(q, memory.NewJobStore(), processor, cfg, testLogger())
	require.NoError(t, runner.Start())

	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), id))
	<-started

	runner.Stop()

	// The interrupted delivery went back to the queue.
	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCheckStuckJobs(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	running := storedJob(t, jobs, domain.JobStatusRunning)

	q := queue.NewMemoryQueue(10, testLogger())
	cfg := testRunnerConfig()
	cfg.StuckJobAge = time.Nanosecond
	runner := NewRunner(q, jobs, newCountingProcessor(), cfg, testLogger())

	time.Sleep(time.Millisecond)
	runner.CheckStuckJobs(context.Background())

	d, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, running.ID, d.JobID)
}

func TestNewRunnerConfig(t *testing.T) {
	t.Parallel()

	cfg := NewRunnerConfig(config.TaskConfig{
		WorkerCount:                  4,
		StuckJobAgeMinutes:           30,
		StuckJobCheckIntervalMinutes: 5,
		RetryDelaySeconds:            15,
	})

	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 30*time.Minute, cfg.StuckJobAge)
	assert.Equal(t, 5*time.Minute, cfg.StuckJobCheckInterval)
	assert.Equal(t, 15*time.Second, cfg.RetryDelay)
}
