package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/estimate"
	"github.com/phrazzld/inkwell-api/internal/events"
	"github.com/phrazzld/inkwell-api/internal/ledger"
	"github.com/phrazzld/inkwell-api/internal/metrics"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/redact"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// CreditLedger is the subset of the ledger used by the orchestrator.
type CreditLedger interface {
	Reserve(ctx context.Context, owner uuid.UUID, amount int64) error
	RefundReservation(ctx context.Context, req ledger.RefundRequest) error
	Account(ctx context.Context, owner uuid.UUID) (*domain.CreditAccount, error)
	Entries(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)
}

// JobQueue hands job ids to the worker pool.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
}

// TitleSuggester proposes article titles for a topic.
type TitleSuggester interface {
	SuggestTitles(ctx context.Context, model, topic string, count int) ([]string, error)
}

// CancelResult reports the outcome of a cancellation request.
type CancelResult struct {
	JobID  uuid.UUID        `json:"job_id"`
	Status domain.JobStatus `json:"status"`

	// RefundedCredits were returned to the available balance by this call.
	RefundedCredits int64 `json:"refunded_credits"`

	// Pending is true when the job is running; the worker stops before the
	// next title and refunds the unprocessed titles when it settles.
	Pending bool `json:"pending"`
}

// GenerationService is the client-facing surface of the pipeline.
type GenerationService interface {
	// SubmitSingle reserves credits for one title and queues a job.
	SubmitSingle(ctx context.Context, owner uuid.UUID, title string, cfg domain.GenerationConfig) (*domain.Job, error)

	// SubmitBulk reserves credits for several titles and queues one job for all of them.
	SubmitBulk(ctx context.Context, owner uuid.UUID, titles []string, cfg domain.GenerationConfig) (*domain.Job, error)

	// GetStatus returns the caller's job.
	GetStatus(ctx context.Context, owner, jobID uuid.UUID) (*domain.Job, error)

	// Cancel stops a queued job immediately or asks a running job to stop.
	Cancel(ctx context.Context, owner, jobID uuid.UUID) (*CancelResult, error)

	// EstimatePreview prices a submission of titles titles without reserving anything.
	EstimatePreview(ctx context.Context, cfg domain.GenerationConfig, titles int) (int64, error)

	// ListJobs lists the caller's jobs, newest first.
	ListJobs(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.Job, error)

	// ListArticles lists the articles of one of the caller's jobs.
	ListArticles(ctx context.Context, owner, jobID uuid.UUID) ([]*domain.Article, error)

	// ListOwnerArticles lists all of the caller's articles, newest first.
	ListOwnerArticles(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.Article, error)

	// GetArticle returns one of the caller's articles.
	GetArticle(ctx context.Context, owner, articleID uuid.UUID) (*domain.Article, error)

	// SuggestTitles proposes titles for a topic. It costs no credits.
	SuggestTitles(ctx context.Context, model, topic string, count int) ([]string, error)

	// GetBalance returns the caller's credit account.
	GetBalance(ctx context.Context, owner uuid.UUID) (*domain.CreditAccount, error)

	// ListLedgerEntries lists the caller's ledger history, newest first.
	ListLedgerEntries(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)
}

// GenerationServiceError wraps errors from the generation service with context.
type GenerationServiceError struct {
	// Operation is the operation that failed (e.g., "submit", "cancel")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for GenerationServiceError.
func (e *GenerationServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("generation service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *GenerationServiceError) Unwrap() error {
	return e.Err
}

// NewGenerationServiceError creates a new GenerationServiceError.
// It returns known sentinel errors directly without wrapping.
func NewGenerationServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, store.ErrJobNotFound), errors.Is(err, ErrJobNotFound):
		return ErrJobNotFound
	case errors.Is(err, store.ErrArticleNotFound), errors.Is(err, ErrArticleNotFound):
		return ErrArticleNotFound
	case errors.Is(err, ErrNotOwned):
		return ErrNotOwned
	}

	return &GenerationServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// generationServiceImpl implements the GenerationService interface
type generationServiceImpl struct {
	jobs     store.JobStore
	articles store.ArticleStore
	ledger   CreditLedger
	queue    JobQueue
	titles   TitleSuggester
	emitter  events.EventEmitter
	logger   *slog.Logger
	now      func() time.Time

	tx     store.Transactor
	bindTx func(store.AccountStore) CreditLedger
}

// Option configures the generation service.
type Option func(*generationServiceImpl)

// WithTransactor makes a submission reserve its credits and store its job in
// one transaction. bind returns the ledger working on the transaction's
// account store.
func WithTransactor(tx store.Transactor, bind func(store.AccountStore) CreditLedger) Option {
	return func(s *generationServiceImpl) {
		if tx != nil && bind != nil {
			s.tx = tx
			s.bindTx = bind
		}
	}
}

// NewGenerationService creates a new GenerationService.
// It returns an error if any of the required dependencies are nil.
func NewGenerationService(
	jobs store.JobStore,
	articles store.ArticleStore,
	credits CreditLedger,
	queue JobQueue,
	titles TitleSuggester,
	emitter events.EventEmitter,
	logger *slog.Logger,
	opts ...Option,
) (GenerationService, error) {
	var missing string
	switch {
	case jobs == nil:
		missing = "jobs"
	case articles == nil:
		missing = "articles"
	case credits == nil:
		missing = "ledger"
	case queue == nil:
		missing = "queue"
	case titles == nil:
		missing = "titles"
	case logger == nil:
		missing = "logger"
	}
	if missing != "" {
		return nil, &GenerationServiceError{
			Operation: "create_service",
			Message:   missing + " cannot be nil",
		}
	}

	if emitter == nil {
		emitter = events.NopEmitter{}
	}

	s := &generationServiceImpl{
		jobs:     jobs,
		articles: articles,
		ledger:   credits,
		queue:    queue,
		titles:   titles,
		emitter:  emitter,
		logger:   logger.With("component", "generation_service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SubmitSingle implements GenerationService.
func (s *generationServiceImpl) SubmitSingle(
	ctx context.Context,
	owner uuid.UUID,
	title string,
	cfg domain.GenerationConfig,
) (*domain.Job, error) {
	return s.submit(ctx, owner, []string{title}, cfg)
}

// SubmitBulk implements GenerationService.
func (s *generationServiceImpl) SubmitBulk(
	ctx context.Context,
	owner uuid.UUID,
	titles []string,
	cfg domain.GenerationConfig,
) (*domain.Job, error) {
	return s.submit(ctx, owner, titles, cfg)
}

// submit validates, reserves, persists and enqueues, in that order. A
// failure after the reservation returns the reserved credits, even when the
// caller has gone away.
func (s *generationServiceImpl) submit(
	ctx context.Context,
	owner uuid.UUID,
	titles []string,
	cfg domain.GenerationConfig,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("owner_id", owner)

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateTitles(titles); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	estimated := estimate.EstimateBulk(cfg, len(titles))
	job, err := domain.NewJob(owner, titles, cfg, estimated)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	log = log.With("job_id", job.ID)

	if err := s.reserveAndStore(ctx, job); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			log.InfoContext(ctx, "submission rejected for insufficient credits", "estimated_credits", estimated)
		}
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		log.ErrorContext(ctx, "failed to enqueue job", "error", redact.Error(err))
		s.abandon(context.WithoutCancel(ctx), job, "job could not be queued")
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	metrics.JobsSubmitted.WithLabelValues(string(job.Kind)).Inc()
	log.InfoContext(ctx, "job submitted",
		"kind", job.Kind,
		"titles", len(job.RequestedTitles),
		"estimated_credits", estimated)

	if err := s.emitter.EmitEvent(ctx, events.NewJobEvent(events.JobSubmitted, job)); err != nil {
		log.WarnContext(ctx, "failed to emit job event", "error", err)
	}
	return job, nil
}

// reserveAndStore reserves the job's estimate and persists the job. With a
// transactor both writes commit together; without one, a job that cannot be
// stored gets its reservation back.
func (s *generationServiceImpl) reserveAndStore(ctx context.Context, job *domain.Job) error {
	if s.tx == nil {
		if err := reserve(ctx, s.ledger, job); err != nil {
			return err
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			s.compensate(context.WithoutCancel(ctx), job, "job could not be stored")
			return NewGenerationServiceError("submit", "failed to store job", err)
		}
		return nil
	}

	err := s.tx.InTx(ctx, func(ctx context.Context, stores store.TxStores) error {
		if err := reserve(ctx, s.bindTx(stores.Accounts), job); err != nil {
			return err
		}
		if err := stores.Jobs.Create(ctx, job); err != nil {
			return NewGenerationServiceError("submit", "failed to store job", err)
		}
		return nil
	})

	var serviceErr *GenerationServiceError
	if err != nil && !errors.As(err, &serviceErr) && !errors.Is(err, domain.ErrInsufficientFunds) {
		return NewGenerationServiceError("submit", "failed to store job", err)
	}
	return err
}

func reserve(ctx context.Context, credits CreditLedger, job *domain.Job) error {
	err := credits.Reserve(ctx, job.OwnerID, job.EstimatedCredits)
	if err == nil || errors.Is(err, domain.ErrInsufficientFunds) {
		return err
	}
	return NewGenerationServiceError("submit", "failed to reserve credits", err)
}

// compensate returns a job's reservation after the job failed to be accepted.
func (s *generationServiceImpl) compensate(ctx context.Context, job *domain.Job, reason string) bool {
	err := s.ledger.RefundReservation(ctx, ledger.RefundRequest{
		Owner:     job.OwnerID,
		Amount:    job.EstimatedCredits,
		Reason:    reason,
		Reference: job.ID.String() + "/refund",
	})
	if err != nil && !errors.Is(err, ledger.ErrAlreadySettled) {
		logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "failed to return reserved credits",
			"job_id", job.ID,
			"owner_id", job.OwnerID,
			"amount", job.EstimatedCredits,
			"error", redact.Error(err))
		return false
	}
	return true
}

// abandon cancels a stored job that never reached the queue and returns
// its reservation.
func (s *generationServiceImpl) abandon(ctx context.Context, job *domain.Job, reason string) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.now()
	if err := job.Transition(domain.JobStatusCancelled, now); err != nil {
		log.ErrorContext(ctx, "failed to cancel unqueued job", "job_id", job.ID, "error", err)
		return
	}
	job.ErrorMessage = reason

	if err := s.jobs.Update(ctx, job); err != nil {
		log.ErrorContext(ctx, "failed to cancel unqueued job", "job_id", job.ID, "error", redact.Error(err))
		return
	}

	if !s.compensate(ctx, job, reason) {
		return
	}

	if err := job.MarkSettled(0, s.now()); err == nil {
		if err := s.jobs.Update(ctx, job); err != nil {
			log.WarnContext(ctx, "failed to mark abandoned job settled", "job_id", job.ID, "error", redact.Error(err))
		}
	}
}

// GetStatus implements GenerationService.
func (s *generationServiceImpl) GetStatus(ctx context.Context, owner, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.ownedJob(ctx, owner, jobID)
	if err != nil {
		return nil, NewGenerationServiceError("get_status", "failed to load job", err)
	}
	return job, nil
}

// Cancel implements GenerationService.
func (s *generationServiceImpl) Cancel(ctx context.Context, owner, jobID uuid.UUID) (*CancelResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("job_id", jobID, "owner_id", owner)

	job, err := s.ownedJob(ctx, owner, jobID)
	if err != nil {
		return nil, NewGenerationServiceError("cancel", "failed to load job", err)
	}

	if job.IsTerminal() {
		return nil, fmt.Errorf("%w: job is %s", ErrJobNotCancellable, job.Status)
	}

	if job.Status == domain.JobStatusQueued {
		result, err := s.cancelQueued(ctx, job)
		if !errors.Is(err, store.ErrConflict) {
			return result, err
		}
		// A worker claimed the job in the meantime.
		log.DebugContext(ctx, "queued job started while cancelling, requesting cancellation instead")
	}

	if err := s.jobs.RequestCancel(ctx, jobID); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			// It finished between the read and the request.
			return nil, ErrJobNotCancellable
		}
		return nil, NewGenerationServiceError("cancel", "failed to request cancellation", err)
	}

	log.InfoContext(ctx, "cancellation requested for running job")
	return &CancelResult{JobID: jobID, Status: domain.JobStatusRunning, Pending: true}, nil
}

// cancelQueued cancels a job no worker has started. The terminal state is
// stored first so a worker picking the job up afterwards only settles it.
func (s *generationServiceImpl) cancelQueued(ctx context.Context, job *domain.Job) (*CancelResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("job_id", job.ID)

	if err := job.Transition(domain.JobStatusCancelled, s.now()); err != nil {
		return nil, err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, NewGenerationServiceError("cancel", "failed to cancel job", err)
	}

	result := &CancelResult{JobID: job.ID, Status: job.Status}
	if job.EstimatedCredits > 0 {
		if !s.compensate(ctx, job, "job cancelled before it started") {
			// The worker settles the job when it dequeues it.
			result.Pending = true
			return result, nil
		}
		result.RefundedCredits = job.EstimatedCredits
	}

	if err := job.MarkSettled(0, s.now()); err == nil {
		if err := s.jobs.Update(ctx, job); err != nil {
			log.WarnContext(ctx, "failed to mark cancelled job settled", "error", redact.Error(err))
		}
	}

	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled)).Inc()
	log.InfoContext(ctx, "queued job cancelled", "refunded_credits", result.RefundedCredits)
	if err := s.emitter.EmitEvent(ctx, events.NewJobEvent(events.JobCancelled, job)); err != nil {
		log.WarnContext(ctx, "failed to emit job event", "error", err)
	}
	return result, nil
}

// EstimatePreview implements GenerationService.
func (s *generationServiceImpl) EstimatePreview(_ context.Context, cfg domain.GenerationConfig, titles int) (int64, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if titles <= 0 {
		titles = 1
	}
	if titles > domain.MaxBulkTitles {
		return 0, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrTooManyTitles)
	}
	return estimate.EstimateBulk(cfg, titles), nil
}

// ListJobs implements GenerationService.
func (s *generationServiceImpl) ListJobs(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.Job, error) {
	jobs, err := s.jobs.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, NewGenerationServiceError("list_jobs", "failed to list jobs", err)
	}
	return jobs, nil
}

// ListArticles implements GenerationService.
func (s *generationServiceImpl) ListArticles(ctx context.Context, owner, jobID uuid.UUID) ([]*domain.Article, error) {
	if _, err := s.ownedJob(ctx, owner, jobID); err != nil {
		return nil, NewGenerationServiceError("list_articles", "failed to load job", err)
	}

	articles, err := s.articles.ListByJob(ctx, jobID)
	if err != nil {
		return nil, NewGenerationServiceError("list_articles", "failed to list articles", err)
	}
	return articles, nil
}

// ListOwnerArticles implements GenerationService.
func (s *generationServiceImpl) ListOwnerArticles(
	ctx context.Context,
	owner uuid.UUID,
	limit, offset int,
) ([]*domain.Article, error) {
	articles, err := s.articles.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, NewGenerationServiceError("list_articles", "failed to list articles", err)
	}
	return articles, nil
}

// GetArticle implements GenerationService.
func (s *generationServiceImpl) GetArticle(ctx context.Context, owner, articleID uuid.UUID) (*domain.Article, error) {
	article, err := s.articles.Get(ctx, articleID)
	if err != nil {
		return nil, NewGenerationServiceError("get_article", "failed to load article", err)
	}
	if article.OwnerID != owner {
		return nil, ErrNotOwned
	}
	return article, nil
}

// SuggestTitles implements GenerationService.
func (s *generationServiceImpl) SuggestTitles(ctx context.Context, model, topic string, count int) ([]string, error) {
	titles, err := s.titles.SuggestTitles(ctx, model, topic, count)
	if err != nil {
		return nil, NewGenerationServiceError("suggest_titles", "failed to suggest titles", err)
	}
	return titles, nil
}

// GetBalance implements GenerationService.
func (s *generationServiceImpl) GetBalance(ctx context.Context, owner uuid.UUID) (*domain.CreditAccount, error) {
	acct, err := s.ledger.Account(ctx, owner)
	if err != nil {
		return nil, NewGenerationServiceError("get_balance", "failed to load account", err)
	}
	return acct, nil
}

// ListLedgerEntries implements GenerationService.
func (s *generationServiceImpl) ListLedgerEntries(
	ctx context.Context,
	owner uuid.UUID,
	limit, offset int,
) ([]*domain.LedgerEntry, error) {
	entries, err := s.ledger.Entries(ctx, owner, limit, offset)
	if err != nil {
		return nil, NewGenerationServiceError("list_ledger_entries", "failed to list entries", err)
	}
	return entries, nil
}

func (s *generationServiceImpl) ownedJob(ctx context.Context, owner, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != owner {
		return nil, ErrNotOwned
	}
	return job, nil
}
