package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// JobStore is an in-memory store.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job
	now  func() time.Time
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[uuid.UUID]*domain.Job),
		now:  time.Now,
	}
}

var _ store.JobStore = (*JobStore)(nil)

// Create implements store.JobStore.
func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return store.NewStoreError("job", "create", err.Error(), store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return store.NewStoreError("job", "create", "job already exists", store.ErrDuplicate)
	}

	job.Version = 1
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get implements store.JobStore.
func (s *JobStore) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Update implements store.JobStore. The stored cancel flag always wins over
// the caller's copy because only RequestCancel may set it.
func (s *JobStore) Update(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return store.NewStoreError("job", "update", err.Error(), store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.ID]
	if !ok {
		return store.ErrJobNotFound
	}
	if current.Version != job.Version {
		return store.NewStoreError("job", "update", "stale version", store.ErrConflict)
	}

	updated := cloneJob(job)
	updated.CancelRequested = current.CancelRequested
	updated.Version = current.Version + 1
	updated.UpdatedAt = s.now().UTC()
	s.jobs[job.ID] = updated

	job.Version = updated.Version
	job.CancelRequested = updated.CancelRequested
	job.UpdatedAt = updated.UpdatedAt
	return nil
}

// RequestCancel implements store.JobStore.
func (s *JobStore) RequestCancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.CancelRequested = true
	return nil
}

// ListByStatus implements store.JobStore.
func (s *JobStore) ListByStatus(
	_ context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-olderThan)
	result := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.Status != status {
			continue
		}
		if olderThan > 0 && job.UpdatedAt.After(cutoff) {
			continue
		}
		result = append(result, cloneJob(job))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ListByOwner implements store.JobStore. Newest jobs come first.
func (s *JobStore) ListByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Job, error) {
	s.mu.RLock()
	result := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			result = append(result, cloneJob(job))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, limit, offset), nil
}

func cloneJob(job *domain.Job) *domain.Job {
	c := *job
	c.RequestedTitles = append([]string(nil), job.RequestedTitles...)
	c.CompletedTitles = append([]string{}, job.CompletedTitles...)
	c.FailedTitles = append([]domain.TitleFailure(nil), job.FailedTitles...)
	c.Config.Keywords = append([]string(nil), job.Config.Keywords...)
	c.StartedAt = cloneTime(job.StartedAt)
	c.CompletedAt = cloneTime(job.CompletedAt)
	c.SettledAt = cloneTime(job.SettledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
