package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
)

// ArticleStore defines the interface for generated article persistence.
// Version: 1.0
type ArticleStore interface {
	// Create saves a new article.
	// Returns ErrArticleExists if the job already has an article for the title.
	Create(ctx context.Context, article *domain.Article) error

	// Get retrieves an article by its unique ID.
	// Returns ErrArticleNotFound if the article does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Article, error)

	// GetByJobAndTitle retrieves the article a job produced for a title.
	// Returns ErrArticleNotFound if there is none.
	GetByJobAndTitle(ctx context.Context, jobID uuid.UUID, title string) (*domain.Article, error)

	// ListByJob retrieves the articles of a job in creation order.
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Article, error)

	// ListByOwner retrieves an owner's articles, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Article, error)
}
