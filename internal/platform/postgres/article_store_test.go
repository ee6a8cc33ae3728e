package postgres_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/platform/postgres"
	"github.com/phrazzld/inkwell-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresArticleStoreCreate(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	s := postgres.NewPostgresArticleStore(db, discardLogger())

	jobID := uuid.New()
	article, err := domain.NewArticle(uuid.New(), &jobID, "Go Channels", "Channels connect goroutines.",
		domain.GenerationConfig{Length: domain.LengthShort})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO articles").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Create(context.Background(), article))

	mock.ExpectExec("INSERT INTO articles").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "articles_job_title_unique"})
	err = s.Create(context.Background(), article)
	assert.ErrorIs(t, err, store.ErrArticleExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArticleStoreGetByJobAndTitle(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	s := postgres.NewPostgresArticleStore(db, discardLogger())

	mock.ExpectQuery("SELECT .* FROM articles WHERE job_id = \\$1 AND title = \\$2").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_id", "job_id", "title", "content", "word_count", "status", "images", "config",
			"credits", "created_at", "updated_at",
		}))

	_, err = s.GetByJobAndTitle(context.Background(), uuid.New(), "Missing")
	assert.ErrorIs(t, err, store.ErrArticleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
