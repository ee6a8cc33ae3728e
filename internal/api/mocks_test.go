package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/service"
)

// mockGenerationService implements service.GenerationService for testing
type mockGenerationService struct {
	SubmitSingleFn      func(ctx context.Context, owner uuid.UUID, title string, cfg domain.GenerationConfig) (*domain.Job, error)
	SubmitBulkFn        func(ctx context.Context, owner uuid.UUID, titles []string, cfg domain.GenerationConfig) (*domain.Job, error)
	GetStatusFn         func(ctx context.Context, owner, jobID uuid.UUID) (*domain.Job, error)
	CancelFn            func(ctx context.Context, owner, jobID uuid.UUID) (*service.CancelResult, error)
	EstimatePreviewFn   func(ctx context.Context, cfg domain.GenerationConfig, titles int) (int64, error)
	ListJobsFn          func(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.Job, error)
	ListArticlesFn      func(ctx context.Context, owner, jobID uuid.UUID) ([]*domain.Article, error)
	ListOwnerArticlesFn func(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.Article, error)
	GetArticleFn        func(ctx context.Context, owner, articleID uuid.UUID) (*domain.Article, error)
	SuggestTitlesFn     func(ctx context.Context, model, topic string, count int) ([]string, error)
	GetBalanceFn        func(ctx context.Context, owner uuid.UUID) (*domain.CreditAccount, error)
	ListLedgerEntriesFn func(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)
}

var _ service.GenerationService = (*mockGenerationService)(nil)

func (m *mockGenerationService) SubmitSingle(
	ctx context.Context,
	owner uuid.UUID,
	title string,
	cfg domain.GenerationConfig,
) (*domain.Job, error) {
	return m.SubmitSingleFn(ctx, owner, title, cfg)
}

func (m *mockGenerationService) SubmitBulk(
	ctx context.Context,
	owner uuid.UUID,
	titles []string,
	cfg domain.GenerationConfig,
) (*domain.Job, error) {
	return m.SubmitBulkFn(ctx, owner, titles, cfg)
}

func (m *mockGenerationService) GetStatus(ctx context.Context, owner, jobID uuid.UUID) (*domain.Job, error) {
	return m.GetStatusFn(ctx, owner, jobID)
}

func (m *mockGenerationService) Cancel(ctx context.Context, owner, jobID uuid.UUID) (*service.CancelResult, error) {
	return m.CancelFn(ctx, owner, jobID)
}

func (m *mockGenerationService) EstimatePreview(ctx context.Context, cfg domain.GenerationConfig, titles int) (int64, error) {
	return m.EstimatePreviewFn(ctx, cfg, titles)
}

func (m *mockGenerationService) ListJobs(ctx context.Context, owner uuid.UUID, limit, offset int) ([]*domain.Job, error) {
	return m.ListJobsFn(ctx, owner, limit, offset)
}

func (m *mockGenerationService) ListArticles(ctx context.Context, owner, jobID uuid.UUID) ([]*domain.Article, error) {
	return m.ListArticlesFn(ctx, owner, jobID)
}

func (m *mockGenerationService) ListOwnerArticles(
	ctx context.Context,
	owner uuid.UUID,
	limit, offset int,
) ([]*domain.Article, error) {
	return m.ListOwnerArticlesFn(ctx, owner, limit, offset)
}

func (m *mockGenerationService) GetArticle(ctx context.Context, owner, articleID uuid.UUID) (*domain.Article, error) {
	return m.GetArticleFn(ctx, owner, articleID)
}

func (m *mockGenerationService) SuggestTitles(ctx context.Context, model, topic string, count int) ([]string, error) {
	return m.SuggestTitlesFn(ctx, model, topic, count)
}

func (m *mockGenerationService) GetBalance(ctx context.Context, owner uuid.UUID) (*domain.CreditAccount, error) {
	return m.GetBalanceFn(ctx, owner)
}

func (m *mockGenerationService) ListLedgerEntries(
	ctx context.Context,
	owner uuid.UUID,
	limit, offset int,
) ([]*domain.LedgerEntry, error) {
	return m.ListLedgerEntriesFn(ctx, owner, limit, offset)
}
