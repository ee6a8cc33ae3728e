package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
)

// GenerationOptions is the request form of domain.GenerationConfig. It is
// checked by GenerationConfig.Validate so every rejection reports an invalid
// configuration.
type GenerationOptions struct {
	Model        string   `json:"model"`
	Length       string   `json:"length"`
	Tone         string   `json:"tone"`
	Language     string   `json:"language"`
	Keywords     []string `json:"keywords"`
	Images       int      `json:"images"`
	KeyTakeaways int      `json:"key_takeaways"`
	FAQs         int      `json:"faqs"`
}

// ToDomain converts the options into a generation config.
func (o GenerationOptions) ToDomain() domain.GenerationConfig {
	return domain.GenerationConfig{
		Model:        o.Model,
		Length:       domain.Length(o.Length),
		Tone:         o.Tone,
		Language:     o.Language,
		Keywords:     o.Keywords,
		Images:       o.Images,
		KeyTakeaways: o.KeyTakeaways,
		FAQs:         o.FAQs,
	}
}

// SubmitSingleRequest defines the payload for submitting one title.
type SubmitSingleRequest struct {
	Title  string            `json:"title"  validate:"required,max=300"`
	Config GenerationOptions `json:"config"`
}

// SubmitBulkRequest defines the payload for submitting several titles.
type SubmitBulkRequest struct {
	Titles []string          `json:"titles" validate:"required,min=1,max=50,dive,required,max=300"`
	Config GenerationOptions `json:"config"`
}

// EstimateRequest defines the payload for a cost preview.
type EstimateRequest struct {
	Titles int               `json:"titles" validate:"gte=0,lte=50"`
	Config GenerationOptions `json:"config"`
}

// SuggestTitlesRequest defines the payload for title suggestions.
type SuggestTitlesRequest struct {
	Topic string `json:"topic" validate:"required,max=300"`
	Model string `json:"model" validate:"omitempty,oneof=gemini ollama"`
	Count int    `json:"count" validate:"gte=0,lte=20"`
}

// SubmitResponse is returned when a job was accepted.
type SubmitResponse struct {
	JobID            uuid.UUID `json:"job_id"`
	EstimatedCredits int64     `json:"estimated_credits"`
}

// EstimateResponse is returned by the cost preview.
type EstimateResponse struct {
	EstimatedCredits int64 `json:"estimated_credits"`
}

// SuggestTitlesResponse carries suggested titles.
type SuggestTitlesResponse struct {
	Titles []string `json:"titles"`
}

// CancelResponse reports a cancellation.
type CancelResponse struct {
	JobID           uuid.UUID `json:"job_id"`
	Status          string    `json:"status"`
	RefundedCredits int64     `json:"refunded_credits"`
	Pending         bool      `json:"pending"`
}

// JobResponse is the client view of a job.
type JobResponse struct {
	ID               uuid.UUID             `json:"id"`
	Kind             string                `json:"kind"`
	Status           string                `json:"status"`
	Progress         int                   `json:"progress"`
	RequestedTitles  []string              `json:"requested_titles"`
	CompletedTitles  []string              `json:"completed_titles"`
	FailedTitles     []domain.TitleFailure `json:"failed_titles,omitempty"`
	EstimatedCredits int64                 `json:"estimated_credits"`
	ActualCredits    int64                 `json:"actual_credits"`
	Settled          bool                  `json:"settled"`
	ErrorMessage     string                `json:"error_message,omitempty"`
	CancelRequested  bool                  `json:"cancel_requested"`
	CreatedAt        time.Time             `json:"created_at"`
	StartedAt        *time.Time            `json:"started_at,omitempty"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
}

// ArticleResponse is the client view of an article.
type ArticleResponse struct {
	ID        uuid.UUID             `json:"id"`
	JobID     *uuid.UUID            `json:"job_id,omitempty"`
	Title     string                `json:"title"`
	Content   string                `json:"content"`
	WordCount int                   `json:"word_count"`
	Status    string                `json:"status"`
	Images    []domain.ArticleImage `json:"images"`
	Credits   int64                 `json:"credits"`
	CreatedAt time.Time             `json:"created_at"`
}

// BalanceResponse is the client view of a credit account.
type BalanceResponse struct {
	Balance   int64 `json:"balance"`
	Reserved  int64 `json:"reserved"`
	Available int64 `json:"available"`
}

// LedgerEntryResponse is the client view of a ledger entry.
type LedgerEntryResponse struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	Amount      int64     `json:"amount"`
	Released    int64     `json:"released"`
	Feature     string    `json:"feature,omitempty"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:               job.ID,
		Kind:             string(job.Kind),
		Status:           string(job.Status),
		Progress:         job.Progress,
		RequestedTitles:  job.RequestedTitles,
		CompletedTitles:  job.CompletedTitles,
		FailedTitles:     job.FailedTitles,
		EstimatedCredits: job.EstimatedCredits,
		ActualCredits:    job.ActualCredits,
		Settled:          job.IsSettled(),
		ErrorMessage:     job.ErrorMessage,
		CancelRequested:  job.CancelRequested,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
	}
}

func articleToResponse(article *domain.Article) ArticleResponse {
	return ArticleResponse{
		ID:        article.ID,
		JobID:     article.JobID,
		Title:     article.Title,
		Content:   article.Content,
		WordCount: article.WordCount,
		Status:    string(article.Status),
		Images:    article.Images,
		Credits:   article.Credits,
		CreatedAt: article.CreatedAt,
	}
}

func entryToResponse(entry *domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:          entry.ID,
		Kind:        string(entry.Kind),
		Amount:      entry.Amount,
		Released:    entry.Released,
		Feature:     entry.Feature,
		Description: entry.Description,
		Reference:   entry.Reference,
		CreatedAt:   entry.CreatedAt,
	}
}
