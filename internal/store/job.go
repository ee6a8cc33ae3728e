package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
)

// JobStore defines the interface for generation job persistence.
// Version: 1.0
type JobStore interface {
	// Create saves a new job to the store.
	// Returns validation errors from the domain Job if data is invalid.
	Create(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Update saves changes to an existing job if its Version still matches
	// the stored one, then increments job.Version.
	// The cancellation flag is never written by Update; see RequestCancel.
	// Returns ErrConflict if another writer updated the job first and
	// ErrJobNotFound if the job does not exist.
	Update(ctx context.Context, job *domain.Job) error

	// RequestCancel raises the advisory cancellation flag of a job that is
	// not yet terminal. It does not change the job's Version.
	// Returns ErrJobNotFound if no such non-terminal job exists.
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// ListByStatus retrieves jobs in the given status, oldest first.
	// If olderThan is non-zero only jobs not updated within that duration are returned.
	ListByStatus(ctx context.Context, status domain.JobStatus, olderThan time.Duration) ([]*domain.Job, error)

	// ListByOwner retrieves an owner's jobs, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Job, error)
}
