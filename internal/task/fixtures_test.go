package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/events"
	"github.com/phrazzld/inkwell-api/internal/generation"
	"github.com/phrazzld/inkwell-api/internal/ledger"
	"github.com/phrazzld/inkwell-api/internal/platform/memory"
	"github.com/phrazzld/inkwell-api/internal/store"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeAssembler implements ArticleAssembler for testing
type fakeAssembler struct {
	mu         sync.Mutex
	calls      []string
	AssembleFn func(ctx context.Context, title string, cfg domain.GenerationConfig) (*generation.AssembledArticle, error)
}

func (f *fakeAssembler) Assemble(
	ctx context.Context,
	title string,
	cfg domain.GenerationConfig,
) (*generation.AssembledArticle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, title)
	f.mu.Unlock()

	if f.AssembleFn != nil {
		return f.AssembleFn(ctx, title, cfg)
	}
	return assembled(title, 600), nil
}

func (f *fakeAssembler) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func assembled(title string, credits int64) *generation.AssembledArticle {
	return &generation.AssembledArticle{
		Title:     title,
		Content:   "# " + title + "\n\nSome generated words.",
		WordCount: 4,
		Credits:   credits,
		Provider:  "fake",
	}
}

// fakeSettler wraps the real ledger so individual calls can be made to fail.
type fakeSettler struct {
	*ledger.Ledger
	SettleFn func(ctx context.Context, req ledger.SettleRequest) (*ledger.Settlement, error)
}

func (f *fakeSettler) Settle(ctx context.Context, req ledger.SettleRequest) (*ledger.Settlement, error) {
	if f.SettleFn != nil {
		return f.SettleFn(ctx, req)
	}
	return f.Ledger.Settle(ctx, req)
}

var errArticleStoreDown = errors.New("article store unavailable")

// flakyArticleStore fails lookups of one title a fixed number of times.
type flakyArticleStore struct {
	*memory.ArticleStore
	title    string
	failures int
}

func (s *flakyArticleStore) GetByJobAndTitle(ctx context.Context, jobID uuid.UUID, title string) (*domain.Article, error) {
	if title == s.title && s.failures > 0 {
		s.failures--
		return nil, errArticleStoreDown
	}
	return s.ArticleStore.GetByJobAndTitle(ctx, jobID, title)
}

// racingArticleStore stores a rival article for the title right before each
// insert, so the insert collides the way a concurrent delivery's would.
type racingArticleStore struct {
	*memory.ArticleStore
	rivalCredits int64
}

func (s *racingArticleStore) Create(ctx context.Context, article *domain.Article) error {
	rival, err := domain.NewArticle(article.OwnerID, article.JobID, article.Title, "written by another worker", article.Config)
	if err != nil {
		return err
	}
	rival.Credits = s.rivalCredits
	if err := s.ArticleStore.Create(ctx, rival); err != nil {
		return err
	}
	return fmt.Errorf("insert article: %w", store.ErrDuplicate)
}

// recordingEmitter remembers emitted event types
type recordingEmitter struct {
	mu    sync.Mutex
	types []string
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.JobEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, event.Type)
	return nil
}

func (e *recordingEmitter) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.types...)
}

type fixture struct {
	jobs      *memory.JobStore
	articles  *memory.ArticleStore
	ledger    *ledger.Ledger
	settler   *fakeSettler
	assembler *fakeAssembler
	emitter   *recordingEmitter
	processor *GenerationProcessor
	owner     uuid.UUID
	sleeps    []time.Duration
}

func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()

	f := &fixture{
		jobs:      memory.NewJobStore(),
		articles:  memory.NewArticleStore(),
		ledger:    ledger.New(memory.NewAccountStore(), ledger.WithLogger(testLogger())),
		assembler: &fakeAssembler{},
		emitter:   &recordingEmitter{},
		owner:     uuid.New(),
	}
	f.settler = &fakeSettler{Ledger: f.ledger}

	_, err := f.ledger.Credit(context.Background(), f.owner, balance, domain.EntryKindPurchase, "starter pack")
	require.NoError(t, err)

	p, err := NewGenerationProcessor(f.jobs, f.articles, f.settler, f.assembler, f.emitter,
		ProcessorConfig{PacingDelay: time.Second, MaxAttempts: 3}, testLogger())
	require.NoError(t, err)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return ctx.Err()
	}
	f.processor = p
	return f
}

// submit reserves the estimate and stores a queued job, as the service does.
func (f *fixture) submit(t *testing.T, perTitle int64, titles ...string) *domain.Job {
	t.Helper()
	ctx := context.Background()

	estimated := perTitle * int64(len(titles))
	require.NoError(t, f.ledger.Reserve(ctx, f.owner, estimated))

	job, err := domain.NewJob(f.owner, titles, domain.GenerationConfig{Length: domain.LengthShort}, estimated)
	require.NoError(t, err)
	require.NoError(t, f.jobs.Create(ctx, job))
	return job
}

func (f *fixture) job(t *testing.T, id uuid.UUID) *domain.Job {
	t.Helper()
	job, err := f.jobs.Get(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (f *fixture) account(t *testing.T) *domain.CreditAccount {
	t.Helper()
	acct, err := f.ledger.Account(context.Background(), f.owner)
	require.NoError(t, err)
	return acct
}

func (f *fixture) assertReconciled(t *testing.T) {
	t.Helper()
	rec, err := f.ledger.Reconcile(context.Background(), f.owner)
	require.NoError(t, err)
	require.True(t, rec.Balanced(), "balance %d, entries %d", rec.Balance, rec.EntriesTotal)
}
