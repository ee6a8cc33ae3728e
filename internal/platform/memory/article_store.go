package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/store"
)

type jobTitle struct {
	jobID uuid.UUID
	title string
}

// ArticleStore is an in-memory store.ArticleStore.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[uuid.UUID]*domain.Article
	byTitle  map[jobTitle]uuid.UUID
}

// NewArticleStore creates an empty ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{
		articles: make(map[uuid.UUID]*domain.Article),
		byTitle:  make(map[jobTitle]uuid.UUID),
	}
}

var _ store.ArticleStore = (*ArticleStore)(nil)

// Create implements store.ArticleStore. A job may hold at most one article per title.
func (s *ArticleStore) Create(_ context.Context, article *domain.Article) error {
	if err := article.Validate(); err != nil {
		return store.NewStoreError("article", "create", err.Error(), store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.articles[article.ID]; exists {
		return store.NewStoreError("article", "create", "article already exists", store.ErrDuplicate)
	}

	if article.JobID != nil {
		key := jobTitle{jobID: *article.JobID, title: article.Title}
		if _, exists := s.byTitle[key]; exists {
			return store.ErrArticleExists
		}
		s.byTitle[key] = article.ID
	}

	s.articles[article.ID] = cloneArticle(article)
	return nil
}

// Get implements store.ArticleStore.
func (s *ArticleStore) Get(_ context.Context, id uuid.UUID) (*domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	article, ok := s.articles[id]
	if !ok {
		return nil, store.ErrArticleNotFound
	}
	return cloneArticle(article), nil
}

// GetByJobAndTitle implements store.ArticleStore.
func (s *ArticleStore) GetByJobAndTitle(_ context.Context, jobID uuid.UUID, title string) (*domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTitle[jobTitle{jobID: jobID, title: title}]
	if !ok {
		return nil, store.ErrArticleNotFound
	}
	return cloneArticle(s.articles[id]), nil
}

// ListByJob implements store.ArticleStore. Articles come back in creation order.
func (s *ArticleStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]*domain.Article, error) {
	s.mu.RLock()
	result := make([]*domain.Article, 0)
	for _, article := range s.articles {
		if article.JobID != nil && *article.JobID == jobID {
			result = append(result, cloneArticle(article))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ListByOwner implements store.ArticleStore. Newest articles come first.
func (s *ArticleStore) ListByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Article, error) {
	s.mu.RLock()
	result := make([]*domain.Article, 0)
	for _, article := range s.articles {
		if article.OwnerID == ownerID {
			result = append(result, cloneArticle(article))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, limit, offset), nil
}

func cloneArticle(article *domain.Article) *domain.Article {
	c := *article
	c.Images = append([]domain.ArticleImage{}, article.Images...)
	c.Config.Keywords = append([]string(nil), article.Config.Keywords...)
	if article.JobID != nil {
		id := *article.JobID
		c.JobID = &id
	}
	return &c
}
