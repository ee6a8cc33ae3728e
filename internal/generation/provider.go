package generation

import (
	"context"

	"github.com/phrazzld/inkwell-api/internal/domain"
)

// FAQ is a question and answer pair appended to an article.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Provider is a language model backend able to write article parts.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name is the identifier jobs use to select the provider.
	Name() string

	// GenerateTitleIdeas proposes up to count article titles for a topic.
	GenerateTitleIdeas(ctx context.Context, topic string, count int) ([]string, error)

	// GenerateOutline returns ordered section headings for a title.
	GenerateOutline(ctx context.Context, title string, cfg domain.GenerationConfig) ([]string, error)

	// ExpandSection writes the body of one outline section in markdown.
	ExpandSection(ctx context.Context, title, section string, cfg domain.GenerationConfig) (string, error)

	// GenerateFAQs writes count question and answer pairs about content.
	GenerateFAQs(ctx context.Context, title, content string, count int) ([]FAQ, error)

	// GenerateKeyTakeaways summarizes content into count short bullet points.
	GenerateKeyTakeaways(ctx context.Context, title, content string, count int) ([]string, error)
}

// ImageGenerator produces images for articles. It is optional; without one,
// articles are generated without images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (domain.ArticleImage, error)
}
