package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// PostgresJobStore implements store.JobStore.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a PostgresJobStore on a connection or transaction.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx returns a store that runs on tx.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) *PostgresJobStore {
	return &PostgresJobStore{db: tx, logger: s.logger}
}

const jobColumns = `id, owner_id, kind, status, progress, requested_titles, completed_titles,
	failed_titles, config, estimated_credits, actual_credits, error_message, cancel_requested,
	attempts, version, created_at, updated_at, started_at, completed_at, settled_at`

// Create implements store.JobStore.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("job", "create", err.Error(), store.ErrInvalidEntity)
	}

	enc, err := encodeJob(job)
	if err != nil {
		return err
	}

	job.Version = 1
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		job.ID, job.OwnerID, string(job.Kind), string(job.Status), job.Progress,
		enc.requested, enc.completed, enc.failed, enc.config,
		job.EstimatedCredits, job.ActualCredits, job.ErrorMessage, job.CancelRequested,
		job.Attempts, job.Version, job.CreatedAt, job.UpdatedAt,
		job.StartedAt, job.CompletedAt, job.SettledAt,
	)
	if err != nil {
		log.Error("failed to create job",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("job", "create", "insert failed", MapError(err))
	}

	log.Debug("job created", slog.String("job_id", job.ID.String()))
	return nil
}

// Get implements store.JobStore.
func (s *PostgresJobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}
	return job, nil
}

// Update implements store.JobStore. The row must still carry the version the
// caller loaded; cancel_requested is never written here.
func (s *PostgresJobStore) Update(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		return store.NewStoreError("job", "update", err.Error(), store.ErrInvalidEntity)
	}

	enc, err := encodeJob(job)
	if err != nil {
		return err
	}

	var (
		version         int
		updatedAt       time.Time
		cancelRequested bool
	)
	err = s.db.QueryRowContext(ctx, `
		UPDATE jobs SET
			status = $1, progress = $2, completed_titles = $3, failed_titles = $4,
			actual_credits = $5, error_message = $6, attempts = $7,
			started_at = $8, completed_at = $9, settled_at = $10,
			version = version + 1, updated_at = NOW()
		WHERE id = $11 AND version = $12
		RETURNING version, updated_at, cancel_requested
	`,
		string(job.Status), job.Progress, enc.completed, enc.failed,
		job.ActualCredits, job.ErrorMessage, job.Attempts,
		job.StartedAt, job.CompletedAt, job.SettledAt,
		job.ID, job.Version,
	).Scan(&version, &updatedAt, &cancelRequested)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error("failed to update job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
			return store.NewStoreError("job", "update", "update failed", MapError(err))
		}

		// Distinguish a missing job from a stale version.
		if _, getErr := s.Get(ctx, job.ID); getErr != nil {
			return getErr
		}
		return store.NewStoreError("job", "update", "stale version", store.ErrConflict)
	}

	job.Version = version
	job.UpdatedAt = updatedAt
	job.CancelRequested = cancelRequested
	return nil
}

// RequestCancel implements store.JobStore.
func (s *PostgresJobStore) RequestCancel(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `UPDATE jobs SET cancel_requested = TRUE WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "job"); err != nil {
		return store.ErrJobNotFound
	}
	return nil
}

// ListByStatus implements store.JobStore.
func (s *PostgresJobStore) ListByStatus(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1`
	args := []any{string(status)}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += ` ORDER BY created_at ASC`

	return s.queryJobs(ctx, query, args...)
}

// ListByOwner implements store.JobStore.
func (s *PostgresJobStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
}

func (s *PostgresJobStore) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, MapError(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return jobs, nil
}

type encodedJob struct {
	requested []byte
	completed []byte
	failed    []byte
	config    []byte
}

func encodeJob(job *domain.Job) (*encodedJob, error) {
	var (
		enc encodedJob
		err error
	)
	completed := job.CompletedTitles
	if completed == nil {
		completed = []string{}
	}
	failed := job.FailedTitles
	if failed == nil {
		failed = []domain.TitleFailure{}
	}

	if enc.requested, err = json.Marshal(job.RequestedTitles); err != nil {
		return nil, fmt.Errorf("failed to encode requested titles: %w", err)
	}
	if enc.completed, err = json.Marshal(completed); err != nil {
		return nil, fmt.Errorf("failed to encode completed titles: %w", err)
	}
	if enc.failed, err = json.Marshal(failed); err != nil {
		return nil, fmt.Errorf("failed to encode failed titles: %w", err)
	}
	if enc.config, err = json.Marshal(job.Config); err != nil {
		return nil, fmt.Errorf("failed to encode job config: %w", err)
	}
	return &enc, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                               domain.Job
		kind, status                      string
		requested, completed, failed, cfg []byte
		startedAt, completedAt, settledAt sql.NullTime
	)

	err := row.Scan(
		&job.ID, &job.OwnerID, &kind, &status, &job.Progress,
		&requested, &completed, &failed, &cfg,
		&job.EstimatedCredits, &job.ActualCredits, &job.ErrorMessage, &job.CancelRequested,
		&job.Attempts, &job.Version, &job.CreatedAt, &job.UpdatedAt,
		&startedAt, &completedAt, &settledAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)

	if err := json.Unmarshal(requested, &job.RequestedTitles); err != nil {
		return nil, fmt.Errorf("failed to decode requested titles: %w", err)
	}
	if err := json.Unmarshal(completed, &job.CompletedTitles); err != nil {
		return nil, fmt.Errorf("failed to decode completed titles: %w", err)
	}
	if err := json.Unmarshal(failed, &job.FailedTitles); err != nil {
		return nil, fmt.Errorf("failed to decode failed titles: %w", err)
	}
	if err := json.Unmarshal(cfg, &job.Config); err != nil {
		return nil, fmt.Errorf("failed to decode job config: %w", err)
	}

	job.StartedAt = nullTimePtr(startedAt)
	job.CompletedAt = nullTimePtr(completedAt)
	job.SettledAt = nullTimePtr(settledAt)
	return &job, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
