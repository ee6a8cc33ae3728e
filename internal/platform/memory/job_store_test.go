package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(t *testing.T, owner uuid.UUID, titles ...string) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(owner, titles, domain.GenerationConfig{Length: domain.LengthShort}, 880)
	require.NoError(t, err)
	return job
}

func TestJobStoreOptimisticUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewJobStore()
	job := newJob(t, uuid.New(), "one")
	require.NoError(t, s.Create(ctx, job))

	first, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	second, err := s.Get(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, first.Transition(domain.JobStatusRunning, time.Now()))
	require.NoError(t, s.Update(ctx, first))

	require.NoError(t, second.Transition(domain.JobStatusCancelled, time.Now()))
	err = s.Update(ctx, second)
	assert.ErrorIs(t, err, store.ErrConflict)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, stored.Status)
	assert.Equal(t, first.Version, stored.Version)
}

func TestJobStoreCancelFlagSurvivesUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewJobStore()
	job := newJob(t, uuid.New(), "one", "two")
	require.NoError(t, s.Create(ctx, job))

	loaded, err := s.Get(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, s.RequestCancel(ctx, job.ID))

	// RequestCancel does not bump the version, so the worker's write succeeds
	require.NoError(t, loaded.Transition(domain.JobStatusRunning, time.Now()))
	require.NoError(t, s.Update(ctx, loaded))
	assert.True(t, loaded.CancelRequested)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, stored.CancelRequested)

	assert.ErrorIs(t, s.RequestCancel(ctx, uuid.New()), store.ErrJobNotFound)
}

func TestJobStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewJobStore()
	job := newJob(t, uuid.New(), "one", "two")
	require.NoError(t, s.Create(ctx, job))

	loaded, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	loaded.CompletedTitles = append(loaded.CompletedTitles, "one")

	again, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, again.CompletedTitles)
}

func TestJobStoreLists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewJobStore()
	owner := uuid.New()
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		job := newJob(t, owner, "title")
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		job.UpdatedAt = job.CreatedAt
		require.NoError(t, s.Create(ctx, job))
		ids = append(ids, job.ID)
	}
	require.NoError(t, s.Create(ctx, newJob(t, uuid.New(), "other")))

	jobs, err := s.ListByOwner(ctx, owner, 2, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[1], jobs[1].ID)

	queued, err := s.ListByStatus(ctx, domain.JobStatusQueued, time.Hour)
	require.NoError(t, err)
	assert.Len(t, queued, 3, "only the three old jobs are past the age cutoff")

	all, err := s.ListByStatus(ctx, domain.JobStatusQueued, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
