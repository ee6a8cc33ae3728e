package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/events"
	"github.com/phrazzld/inkwell-api/internal/ledger"
	"github.com/phrazzld/inkwell-api/internal/metrics"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/redact"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// errSuperseded means another writer moved the job on; the delivery is dropped.
var errSuperseded = errors.New("job was updated by another worker")

// Ledger feature recorded on usage entries.
const featureArticleGeneration = "article_generation"

// ProcessorConfig holds settings for GenerationProcessor.
type ProcessorConfig struct {
	// PacingDelay is waited between two generated titles of the same job.
	PacingDelay time.Duration

	// MaxAttempts bounds how many deliveries may fail in title work before
	// the remaining titles are given up. Ledger failures, shutdown and lost
	// races do not count.
	MaxAttempts int
}

// DefaultProcessorConfig returns a ProcessorConfig with reasonable defaults
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PacingDelay: 2 * time.Second,
		MaxAttempts: 3,
	}
}

// GenerationProcessor runs a job's titles through the assembler, persists
// the articles, and settles the job's credit reservation.
type GenerationProcessor struct {
	jobs      store.JobStore
	articles  store.ArticleStore
	ledger    CreditSettler
	assembler ArticleAssembler
	emitter   events.EventEmitter
	config    ProcessorConfig
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ Processor = (*GenerationProcessor)(nil)

// NewGenerationProcessor creates a processor. A nil emitter disables events.
func NewGenerationProcessor(
	jobs store.JobStore,
	articles store.ArticleStore,
	settler CreditSettler,
	assembler ArticleAssembler,
	emitter events.EventEmitter,
	cfg ProcessorConfig,
	logger *slog.Logger,
) (*GenerationProcessor, error) {
	switch {
	case jobs == nil:
		return nil, ErrNilJobStore
	case articles == nil:
		return nil, ErrNilArticleStore
	case settler == nil:
		return nil, ErrNilLedger
	case assembler == nil:
		return nil, ErrNilAssembler
	case logger == nil:
		return nil, ErrNilLogger
	}

	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultProcessorConfig().MaxAttempts
	}

	return &GenerationProcessor{
		jobs:      jobs,
		articles:  articles,
		ledger:    settler,
		assembler: assembler,
		emitter:   emitter,
		config:    cfg,
		logger:    logger.With("component", "generation_processor"),
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

// Process implements Processor.
func (p *GenerationProcessor) Process(ctx context.Context, jobID uuid.UUID) error {
	log := p.logger.With("job_id", jobID)
	ctx = logger.WithLogger(ctx, log)

	job, err := p.jobs.Get(ctx, jobID)
	if errors.Is(err, store.ErrJobNotFound) {
		log.WarnContext(ctx, "dropping delivery for unknown job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	err = p.run(ctx, job)
	if errors.Is(err, errSuperseded) {
		log.InfoContext(ctx, "job was moved on by another writer, dropping delivery")
		return nil
	}
	return err
}

func (p *GenerationProcessor) run(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	if job.IsSettled() {
		log.DebugContext(ctx, "job already settled")
		return nil
	}

	// Terminal but unsettled: a previous attempt or a cancel stopped
	// before the ledger caught up.
	if job.IsTerminal() {
		return p.finish(ctx, job, job.Status, job.ErrorMessage)
	}

	if job.Status == domain.JobStatusQueued {
		if job.CancelRequested {
			return p.finish(ctx, job, domain.JobStatusCancelled, "")
		}
		if err := job.Transition(domain.JobStatusRunning, p.now()); err != nil {
			return err
		}
		if err := p.save(ctx, job); err != nil {
			return err
		}
	}

	// A job whose titles are all accounted for only needs settling.
	if len(job.PendingTitles()) > 0 && job.Attempts >= p.config.MaxAttempts {
		return p.giveUp(ctx, job)
	}

	log.InfoContext(ctx, "processing job",
		"failed_attempts", job.Attempts,
		"titles", len(job.RequestedTitles),
		"pending", len(job.PendingTitles()))

	report, err := p.generateTitles(ctx, job)
	if err != nil {
		return p.recordFailedAttempt(ctx, job, err)
	}

	status, message := report.Outcome(job)
	return p.finish(ctx, job, status, message)
}

// recordFailedAttempt counts a delivery whose title work failed. Shutdown
// and lost races are not the job's fault and are not counted.
func (p *GenerationProcessor) recordFailedAttempt(ctx context.Context, job *domain.Job, cause error) error {
	if errors.Is(cause, errSuperseded) || ctx.Err() != nil {
		return cause
	}

	job.Attempts++
	if job.Attempts >= p.config.MaxAttempts {
		logger.FromContextOrDefault(ctx, p.logger).ErrorContext(ctx, "job failed too many times",
			"failed_attempts", job.Attempts,
			"error", redact.Error(cause))
		return p.giveUp(ctx, job)
	}

	if err := p.save(ctx, job); err != nil {
		return err
	}
	return cause
}

// giveUp records every pending title as failed and finishes the job with
// the outcome of the titles it did produce.
func (p *GenerationProcessor) giveUp(ctx context.Context, job *domain.Job) error {
	report := &Report{Cancelled: job.CancelRequested}
	if !report.Cancelled {
		reason := fmt.Sprintf("gave up after %d failed attempts", job.Attempts)
		for _, title := range job.PendingTitles() {
			if err := job.RecordFailure(title, reason, p.now()); err != nil {
				return err
			}
		}
		if err := p.save(ctx, job); err != nil {
			return err
		}
	}

	status, message := report.Outcome(job)
	return p.finish(ctx, job, status, message)
}

// generateTitles walks the requested titles in order. Titles settled on an
// earlier delivery are skipped, and an article already stored for a title
// counts as done without calling the provider again.
func (p *GenerationProcessor) generateTitles(ctx context.Context, job *domain.Job) (*Report, error) {
	log := logger.FromContextOrDefault(ctx, p.logger)
	report := &Report{}
	generated := 0

	for _, title := range job.RequestedTitles {
		if job.HasCompleted(title) || job.HasFailed(title) {
			continue
		}

		// Update refreshes the flag, so this sees cancels raised while the
		// previous title ran.
		if job.CancelRequested {
			log.InfoContext(ctx, "cancellation observed", "remaining", len(job.PendingTitles()))
			report.Cancelled = true
			break
		}

		existing, err := p.articles.GetByJobAndTitle(ctx, job.ID, title)
		switch {
		case err == nil:
			log.DebugContext(ctx, "article already produced, skipping title", "title", title)
			metrics.TitlesProcessed.WithLabelValues("skipped").Inc()
			if err := job.RecordTitle(title, p.now()); err != nil {
				return nil, err
			}
			if err := p.save(ctx, job); err != nil {
				return nil, err
			}
			report.Add(Result{Title: title, Article: existing})
			continue
		case !errors.Is(err, store.ErrArticleNotFound):
			return nil, fmt.Errorf("failed to look up article for %q: %w", title, err)
		}

		if generated > 0 && p.config.PacingDelay > 0 {
			if err := p.sleep(ctx, p.config.PacingDelay); err != nil {
				return nil, err
			}
		}
		generated++

		res, err := p.generateTitle(ctx, job, title)
		if err != nil {
			return nil, err
		}

		if res.Err != nil {
			log.WarnContext(ctx, "title failed", "title", title, "error", redact.Error(res.Err))
			metrics.TitlesProcessed.WithLabelValues("failed").Inc()
			if err := job.RecordFailure(title, failureReason(res.Err), p.now()); err != nil {
				return nil, err
			}
		} else {
			metrics.TitlesProcessed.WithLabelValues("generated").Inc()
			if err := job.RecordTitle(title, p.now()); err != nil {
				return nil, err
			}
		}

		if err := p.save(ctx, job); err != nil {
			return nil, err
		}
		report.Add(res)
	}

	return report, nil
}

// generateTitle produces and stores one article. Provider failures are
// reported in the Result; the returned error is reserved for failures that
// should abort the delivery, such as shutdown or an unavailable store.
func (p *GenerationProcessor) generateTitle(ctx context.Context, job *domain.Job, title string) (Result, error) {
	assembled, err := p.assembler.Assemble(ctx, title, job.Config)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{Title: title, Err: err}, nil
	}

	article, err := domain.NewArticle(job.OwnerID, &job.ID, title, assembled.Content, job.Config)
	if err != nil {
		return Result{Title: title, Err: fmt.Errorf("assembled article is invalid: %w", err)}, nil
	}
	if len(assembled.Images) > 0 {
		article.Images = assembled.Images
	}
	article.Credits = assembled.Credits

	err = p.articles.Create(ctx, article)
	if store.IsDuplicateError(err) {
		// A concurrent delivery stored it first.
		existing, getErr := p.articles.GetByJobAndTitle(ctx, job.ID, title)
		if getErr != nil {
			return Result{}, fmt.Errorf("failed to load existing article: %w", getErr)
		}
		return Result{Title: title, Article: existing}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to save article: %w", err)
	}

	return Result{Title: title, Article: article}, nil
}

// finish settles credits and then persists the terminal state. A ledger
// failure leaves the job as it is so the delivery can be retried.
func (p *GenerationProcessor) finish(ctx context.Context, job *domain.Job, status domain.JobStatus, message string) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	actual, err := p.actualCredits(ctx, job)
	if err != nil {
		return err
	}

	charged, err := p.settle(ctx, job, status, actual)
	if err != nil {
		log.ErrorContext(ctx, "failed to settle job credits",
			"status", status,
			"actual", actual,
			"error", redact.Error(err))
		return err
	}

	now := p.now()
	if !job.IsTerminal() {
		if status == domain.JobStatusFailed {
			err = job.Fail(message, now)
		} else {
			err = job.Transition(status, now)
		}
		if err != nil {
			return err
		}
	}

	if err := job.MarkSettled(charged, now); err != nil {
		return err
	}
	if err := p.save(ctx, job); err != nil {
		return err
	}

	metrics.JobsFinished.WithLabelValues(string(job.Status)).Inc()
	log.InfoContext(ctx, "job finished",
		"status", job.Status,
		"completed", len(job.CompletedTitles),
		"failed", len(job.FailedTitles),
		"estimated_credits", job.EstimatedCredits,
		"actual_credits", job.ActualCredits)

	if err := p.emitter.EmitEvent(ctx, events.NewJobEvent(events.TerminalEventType(job.Status), job)); err != nil {
		log.WarnContext(ctx, "failed to emit job event", "error", err)
	}
	return nil
}

// settle reconciles the reservation and returns the credits charged.
//
// Nothing billable releases the whole reservation with one refund. A
// cancelled job first refunds the share of titles it never reached and
// settles the rest against the articles it produced. Everything else is a
// single settle of the estimate against the actual cost.
func (p *GenerationProcessor) settle(ctx context.Context, job *domain.Job, status domain.JobStatus, actual int64) (int64, error) {
	reserved := job.EstimatedCredits
	refundRef := job.ID.String() + "/refund"
	usageRef := job.ID.String() + "/usage"

	if actual == 0 {
		if reserved == 0 {
			return 0, nil
		}
		err := p.ledger.RefundReservation(ctx, ledger.RefundRequest{
			Owner:     job.OwnerID,
			Amount:    reserved,
			Reason:    fmt.Sprintf("job %s %s without billable output", job.ID, status),
			Reference: refundRef,
		})
		return 0, ignoreSettled(err)
	}

	if status == domain.JobStatusCancelled {
		unprocessed := int64(len(job.PendingTitles()))
		if refund := job.PerTitleEstimate() * unprocessed; refund > 0 && refund < reserved {
			err := p.ledger.RefundReservation(ctx, ledger.RefundRequest{
				Owner:     job.OwnerID,
				Amount:    refund,
				Reason:    fmt.Sprintf("job %s cancelled with %d titles unprocessed", job.ID, unprocessed),
				Reference: refundRef,
			})
			if err := ignoreSettled(err); err != nil {
				return 0, err
			}
			reserved -= refund
		}
	}

	settlement, err := p.ledger.Settle(ctx, ledger.SettleRequest{
		Owner:    job.OwnerID,
		Reserved: reserved,
		Actual:   actual,
		Feature:  featureArticleGeneration,
		Description: fmt.Sprintf("job %s: %d of %d titles generated",
			job.ID, len(job.CompletedTitles), len(job.RequestedTitles)),
		Reference: usageRef,
	})
	if errors.Is(err, ledger.ErrAlreadySettled) {
		// An earlier delivery settled but could not store the job.
		charged, err := p.ledger.Charged(ctx, job.OwnerID, usageRef)
		if err != nil {
			return 0, err
		}
		return charged, nil
	}
	if err != nil {
		return 0, err
	}
	return settlement.Charged, nil
}

// actualCredits sums the cost of every article the job produced.
func (p *GenerationProcessor) actualCredits(ctx context.Context, job *domain.Job) (int64, error) {
	articles, err := p.articles.ListByJob(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list job articles: %w", err)
	}

	var total int64
	for _, article := range articles {
		total += article.Credits
	}
	return total, nil
}

// save persists the job. Losing an optimistic race means another delivery
// owns the job now.
func (p *GenerationProcessor) save(ctx context.Context, job *domain.Job) error {
	err := p.jobs.Update(ctx, job)
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrJobNotFound) {
		return errSuperseded
	}
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func ignoreSettled(err error) error {
	if errors.Is(err, ledger.ErrAlreadySettled) {
		return nil
	}
	return err
}

// failureReason is the client-facing reason stored on a failed title.
func failureReason(err error) string {
	return redact.String(err.Error())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
