package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/phrazzld/inkwell-api/internal/store"
)

// PostgresArticleStore implements store.ArticleStore.
type PostgresArticleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresArticleStore creates a PostgresArticleStore on a connection or transaction.
func NewPostgresArticleStore(db store.DBTX, logger *slog.Logger) *PostgresArticleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresArticleStore{
		db:     db,
		logger: logger.With(slog.String("component", "article_store")),
	}
}

var _ store.ArticleStore = (*PostgresArticleStore)(nil)

const articleColumns = `id, owner_id, job_id, title, content, word_count, status, images, config,
	credits, created_at, updated_at`

// Create implements store.ArticleStore. A second article for the same job and
// title returns store.ErrArticleExists.
func (s *PostgresArticleStore) Create(ctx context.Context, article *domain.Article) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := article.Validate(); err != nil {
		return store.NewStoreError("article", "create", err.Error(), store.ErrInvalidEntity)
	}

	images := article.Images
	if images == nil {
		images = []domain.ArticleImage{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("failed to encode article images: %w", err)
	}
	configJSON, err := json.Marshal(article.Config)
	if err != nil {
		return fmt.Errorf("failed to encode article config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		article.ID, article.OwnerID, article.JobID, article.Title, article.Content,
		article.WordCount, string(article.Status), imagesJSON, configJSON,
		article.Credits, article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Info("article already exists for job title",
				slog.String("title", article.Title))
			return MapUniqueViolation(err, store.ErrArticleExists)
		}
		log.Error("failed to create article",
			slog.String("article_id", article.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("article", "create", "insert failed", MapError(err))
	}

	return nil
}

// Get implements store.ArticleStore.
func (s *PostgresArticleStore) Get(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	return s.getOne(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
}

// GetByJobAndTitle implements store.ArticleStore.
func (s *PostgresArticleStore) GetByJobAndTitle(ctx context.Context, jobID uuid.UUID, title string) (*domain.Article, error) {
	return s.getOne(ctx, `SELECT `+articleColumns+` FROM articles WHERE job_id = $1 AND title = $2`, jobID, title)
}

// ListByJob implements store.ArticleStore.
func (s *PostgresArticleStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Article, error) {
	return s.query(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE job_id = $1
		ORDER BY created_at ASC
	`, jobID)
}

// ListByOwner implements store.ArticleStore.
func (s *PostgresArticleStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Article, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
}

func (s *PostgresArticleStore) getOne(ctx context.Context, query string, args ...any) (*domain.Article, error) {
	article, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrArticleNotFound
		}
		return nil, MapError(err)
	}
	return article, nil
}

func (s *PostgresArticleStore) query(ctx context.Context, query string, args ...any) ([]*domain.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*domain.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, MapError(err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return articles, nil
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var (
		article     domain.Article
		jobID       uuid.NullUUID
		status      string
		images, cfg []byte
	)

	err := row.Scan(
		&article.ID, &article.OwnerID, &jobID, &article.Title, &article.Content,
		&article.WordCount, &status, &images, &cfg,
		&article.Credits, &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if jobID.Valid {
		id := jobID.UUID
		article.JobID = &id
	}
	article.Status = domain.ArticleStatus(status)

	if err := json.Unmarshal(images, &article.Images); err != nil {
		return nil, fmt.Errorf("failed to decode article images: %w", err)
	}
	if err := json.Unmarshal(cfg, &article.Config); err != nil {
		return nil, fmt.Errorf("failed to decode article config: %w", err)
	}
	return &article, nil
}
