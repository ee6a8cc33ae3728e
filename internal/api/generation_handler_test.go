package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/api/shared"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/ledger"
	"github.com/phrazzld/inkwell-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRouter mounts the handlers the way the server does, with the owner
// injected instead of a token.
func testRouter(svc service.GenerationService, owner uuid.UUID) http.Handler {
	gen := NewGenerationHandler(svc)
	credits := NewCreditHandler(svc)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if owner != uuid.Nil {
				ctx = shared.WithOwnerID(ctx, owner)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Post("/api/jobs", gen.SubmitSingle)
	r.Post("/api/jobs/bulk", gen.SubmitBulk)
	r.Get("/api/jobs", gen.ListJobs)
	r.Get("/api/jobs/{id}", gen.GetJob)
	r.Post("/api/jobs/{id}/cancel", gen.CancelJob)
	r.Get("/api/jobs/{id}/articles", gen.ListJobArticles)
	r.Get("/api/articles", gen.ListArticles)
	r.Get("/api/articles/{id}", gen.GetArticle)
	r.Post("/api/estimate", gen.Estimate)
	r.Post("/api/titles/suggest", gen.SuggestTitles)
	r.Get("/api/credits", credits.GetBalance)
	r.Get("/api/credits/entries", credits.ListEntries)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func testJob(t *testing.T, owner uuid.UUID, titles ...string) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(owner, titles, domain.GenerationConfig{Length: domain.LengthShort}, 880*int64(len(titles)))
	require.NoError(t, err)
	return job
}

func TestSubmitSingle(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	tests := []struct {
		name       string
		body       any
		submitErr  error
		wantStatus int
		wantError  string
	}{
		{
			name:       "accepted",
			body:       SubmitSingleRequest{Title: "Go generics", Config: GenerationOptions{Length: "short", Images: 1}},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "insufficient credits",
			body:       SubmitSingleRequest{Title: "Go generics", Config: GenerationOptions{Length: "short"}},
			submitErr:  fmt.Errorf("%w: requested 880", ledger.ErrInsufficientFunds),
			wantStatus: http.StatusPaymentRequired,
			wantError:  "Insufficient credits",
		},
		{
			name:       "invalid configuration",
			body:       SubmitSingleRequest{Title: "Go generics", Config: GenerationOptions{Length: "epic"}},
			submitErr:  fmt.Errorf("%w: length", domain.ErrInvalidConfiguration),
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid generation configuration",
		},
		{
			name:       "queue down",
			body:       SubmitSingleRequest{Title: "Go generics", Config: GenerationOptions{Length: "short"}},
			submitErr:  service.ErrQueueUnavailable,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "missing title",
			body:       SubmitSingleRequest{Config: GenerationOptions{Length: "short"}},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid Title: required field",
		},
		{
			name:       "malformed body",
			body:       `{"title": `,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request format",
		},
		{
			name:       "unknown field",
			body:       `{"title":"x","config":{"length":"short"},"priority":1}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request format",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var gotCfg domain.GenerationConfig
			svc := &mockGenerationService{
				SubmitSingleFn: func(_ context.Context, o uuid.UUID, title string, cfg domain.GenerationConfig) (*domain.Job, error) {
					gotCfg = cfg
					if tc.submitErr != nil {
						return nil, tc.submitErr
					}
					return testJob(t, o, title), nil
				},
			}

			rec := doRequest(t, testRouter(svc, owner), http.MethodPost, "/api/jobs", tc.body)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			if tc.wantStatus == http.StatusAccepted {
				var resp SubmitResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.NotEqual(t, uuid.Nil, resp.JobID)
				assert.Equal(t, int64(880), resp.EstimatedCredits)
				assert.Equal(t, domain.LengthShort, gotCfg.Length)
				assert.Equal(t, 1, gotCfg.Images)
				return
			}

			if tc.wantError != "" {
				var resp shared.ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tc.wantError, resp.Error)
				assert.Equal(t, shared.CodeForStatus(tc.wantStatus), resp.Code)
			}
		})
	}
}

func TestSubmitBulk(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	svc := &mockGenerationService{
		SubmitBulkFn: func(_ context.Context, o uuid.UUID, titles []string, _ domain.GenerationConfig) (*domain.Job, error) {
			return testJob(t, o, titles...), nil
		},
	}
	h := testRouter(svc, owner)

	rec := doRequest(t, h, http.MethodPost, "/api/jobs/bulk", SubmitBulkRequest{
		Titles: []string{"one", "two", "three"},
		Config: GenerationOptions{Length: "short"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(2640), resp.EstimatedCredits)

	rec = doRequest(t, h, http.MethodPost, "/api/jobs/bulk", SubmitBulkRequest{
		Config: GenerationOptions{Length: "short"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestsWithoutOwnerAreRejected(t *testing.T) {
	t.Parallel()

	h := testRouter(&mockGenerationService{}, uuid.Nil)

	for _, path := range []string{"/api/jobs", "/api/articles", "/api/credits", "/api/jobs/" + uuid.NewString()} {
		rec := doRequest(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	job := testJob(t, owner, "one", "two")
	now := time.Now()
	require.NoError(t, job.Transition(domain.JobStatusRunning, now))
	require.NoError(t, job.RecordTitle("one", now))

	svc := &mockGenerationService{
		GetStatusFn: func(_ context.Context, o, id uuid.UUID) (*domain.Job, error) {
			switch {
			case id != job.ID:
				return nil, service.ErrJobNotFound
			case o != owner:
				return nil, service.ErrNotOwned
			}
			return job, nil
		},
	}
	h := testRouter(svc, owner)

	rec := doRequest(t, h, http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 50, resp.Progress)
	assert.Equal(t, []string{"one"}, resp.CompletedTitles)
	assert.False(t, resp.Settled)

	rec = doRequest(t, h, http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, testRouter(svc, uuid.New()), http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	queuedID, runningID, doneID := uuid.New(), uuid.New(), uuid.New()

	svc := &mockGenerationService{
		CancelFn: func(_ context.Context, _ uuid.UUID, id uuid.UUID) (*service.CancelResult, error) {
			switch id {
			case queuedID:
				return &service.CancelResult{JobID: id, Status: domain.JobStatusCancelled, RefundedCredits: 1760}, nil
			case runningID:
				return &service.CancelResult{JobID: id, Status: domain.JobStatusRunning, Pending: true}, nil
			case doneID:
				return nil, fmt.Errorf("%w: job is completed", service.ErrJobNotCancellable)
			}
			return nil, service.ErrJobNotFound
		},
	}
	h := testRouter(svc, owner)

	rec := doRequest(t, h, http.MethodPost, "/api/jobs/"+queuedID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CancelResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(1760), resp.RefundedCredits)
	assert.Equal(t, "cancelled", resp.Status)

	rec = doRequest(t, h, http.MethodPost, "/api/jobs/"+runningID.String()+"/cancel", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Pending)
	assert.Equal(t, int64(0), resp.RefundedCredits)

	rec = doRequest(t, h, http.MethodPost, "/api/jobs/"+doneID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListJobsPagination(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	var gotLimit, gotOffset int
	svc := &mockGenerationService{
		ListJobsFn: func(_ context.Context, o uuid.UUID, limit, offset int) ([]*domain.Job, error) {
			gotLimit, gotOffset = limit, offset
			return []*domain.Job{testJob(t, o, "one")}, nil
		},
	}
	h := testRouter(svc, owner)

	rec := doRequest(t, h, http.MethodGet, "/api/jobs?limit=500&offset=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxPageSize, gotLimit)
	assert.Equal(t, 10, gotOffset)

	var resp []JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp, 1)

	doRequest(t, h, http.MethodGet, "/api/jobs?limit=abc&offset=-3", nil)
	assert.Equal(t, defaultPageSize, gotLimit)
	assert.Equal(t, 0, gotOffset)
}

func TestArticles(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	jobID := uuid.New()
	article, err := domain.NewArticle(owner, &jobID, "Go generics", "Type parameters arrived in 1.18.", domain.GenerationConfig{Length: domain.LengthShort})
	require.NoError(t, err)

	svc := &mockGenerationService{
		ListArticlesFn: func(context.Context, uuid.UUID, uuid.UUID) ([]*domain.Article, error) {
			return []*domain.Article{article}, nil
		},
		ListOwnerArticlesFn: func(context.Context, uuid.UUID, int, int) ([]*domain.Article, error) {
			return []*domain.Article{article}, nil
		},
		GetArticleFn: func(_ context.Context, _ uuid.UUID, id uuid.UUID) (*domain.Article, error) {
			if id != article.ID {
				return nil, service.ErrArticleNotFound
			}
			return article, nil
		},
	}
	h := testRouter(svc, owner)

	rec := doRequest(t, h, http.MethodGet, "/api/jobs/"+jobID.String()+"/articles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []ArticleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].WordCount)

	rec = doRequest(t, h, http.MethodGet, "/api/articles", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/articles/"+article.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got ArticleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Go generics", got.Title)

	rec = doRequest(t, h, http.MethodGet, "/api/articles/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	svc := &mockGenerationService{
		EstimatePreviewFn: func(_ context.Context, cfg domain.GenerationConfig, titles int) (int64, error) {
			if cfg.Length == "" {
				return 0, domain.ErrInvalidConfiguration
			}
			return 880 * int64(max(titles, 1)), nil
		},
	}
	// Estimates do not need an owner.
	h := testRouter(svc, uuid.Nil)

	rec := doRequest(t, h, http.MethodPost, "/api/estimate", EstimateRequest{Titles: 3, Config: GenerationOptions{Length: "short"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp EstimateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(2640), resp.EstimatedCredits)

	rec = doRequest(t, h, http.MethodPost, "/api/estimate", EstimateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/estimate", EstimateRequest{Titles: 51})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestTitles(t *testing.T) {
	t.Parallel()

	svc := &mockGenerationService{
		SuggestTitlesFn: func(_ context.Context, _, topic string, count int) ([]string, error) {
			return []string{topic + " 101", topic + " in practice"}[:count], nil
		},
	}
	h := testRouter(svc, uuid.New())

	rec := doRequest(t, h, http.MethodPost, "/api/titles/suggest", SuggestTitlesRequest{Topic: "Go", Count: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SuggestTitlesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"Go 101", "Go in practice"}, resp.Titles)

	rec = doRequest(t, h, http.MethodPost, "/api/titles/suggest", SuggestTitlesRequest{Count: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
