package domain

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ArticleStatus represents the publication state of an article
type ArticleStatus string

// Possible article status values
const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusCompleted ArticleStatus = "completed"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusFailed    ArticleStatus = "failed"
)

// Common validation errors for Article
var (
	ErrEmptyArticleID      = errors.New("article ID cannot be empty")
	ErrEmptyArticleOwner   = errors.New("article owner cannot be empty")
	ErrEmptyArticleTitle   = errors.New("article title cannot be empty")
	ErrEmptyArticleContent = errors.New("article content cannot be empty")
	ErrInvalidArticleState = errors.New("invalid article status")
)

// ArticleImage is an image embedded in an article.
type ArticleImage struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	Placement string `json:"placement"`
}

// Article is the artifact produced for one successfully generated title.
type Article struct {
	ID        uuid.UUID        `json:"id"`
	OwnerID   uuid.UUID        `json:"owner_id"`
	JobID     *uuid.UUID       `json:"job_id,omitempty"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	WordCount int              `json:"word_count"`
	Status    ArticleStatus    `json:"status"`
	Images    []ArticleImage   `json:"images"`
	Config    GenerationConfig `json:"config"`
	Credits   int64            `json:"credits"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewArticle creates a completed article. The word count is derived from content.
func NewArticle(ownerID uuid.UUID, jobID *uuid.UUID, title, content string, cfg GenerationConfig) (*Article, error) {
	now := time.Now().UTC()
	article := &Article{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		JobID:     jobID,
		Title:     strings.TrimSpace(title),
		Content:   content,
		WordCount: CountWords(content),
		Status:    ArticleStatusCompleted,
		Images:    []ArticleImage{},
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := article.Validate(); err != nil {
		return nil, err
	}

	return article, nil
}

// Validate checks if the Article has valid data.
func (a *Article) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyArticleID
	}

	if a.OwnerID == uuid.Nil {
		return ErrEmptyArticleOwner
	}

	if a.Title == "" {
		return ErrEmptyArticleTitle
	}

	if strings.TrimSpace(a.Content) == "" {
		return ErrEmptyArticleContent
	}

	switch a.Status {
	case ArticleStatusDraft, ArticleStatusCompleted, ArticleStatusPublished, ArticleStatusFailed:
	default:
		return ErrInvalidArticleState
	}

	return nil
}

// CountWords counts whitespace separated words. Tokens without a letter or
// digit, such as markdown heading markers and bullets, are not words.
func CountWords(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		if strings.IndexFunc(field, isWordRune) >= 0 {
			count++
		}
	}
	return count
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
