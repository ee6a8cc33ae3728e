package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/estimate"
	"github.com/phrazzld/inkwell-api/internal/metrics"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
)

// AssembledArticle is the provider output for one title, ready to persist.
type AssembledArticle struct {
	Title     string
	Content   string
	WordCount int
	Images    []domain.ArticleImage
	Usage     estimate.Usage
	Credits   int64
	Provider  string
}

// Assembler drives a provider through outline, sections, key takeaways and
// FAQs, and stitches the parts into markdown.
type Assembler struct {
	registry *Registry
	images   ImageGenerator
	logger   *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithImageGenerator enables image generation for configs that ask for images.
func WithImageGenerator(images ImageGenerator) AssemblerOption {
	return func(a *Assembler) {
		a.images = images
	}
}

// NewAssembler creates an Assembler resolving providers from registry.
func NewAssembler(registry *Registry, logger *slog.Logger, opts ...AssemblerOption) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assembler{
		registry: registry,
		logger:   logger.With("component", "assembler"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble generates the full article for title. The key takeaways block is
// placed first and the FAQ block last. Image failures are logged and skipped.
func (a *Assembler) Assemble(ctx context.Context, title string, cfg domain.GenerationConfig) (*AssembledArticle, error) {
	cfg = cfg.WithDefaults()
	provider, err := a.registry.Resolve(cfg.Model)
	if err != nil {
		return nil, err
	}

	log := logger.FromContextOrDefault(ctx, a.logger).With(
		"provider", provider.Name(),
		"title", title)

	var outline []string
	err = observe(provider.Name(), "outline", func() (err error) {
		outline, err = provider.GenerateOutline(ctx, title, cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("outline for %q: %w", title, err)
	}
	outline = compact(outline)
	if len(outline) == 0 {
		return nil, fmt.Errorf("%w: empty outline for %q", ErrInvalidResponse, title)
	}

	sections := make([]string, 0, len(outline))
	for _, heading := range outline {
		var text string
		err := observe(provider.Name(), "section", func() (err error) {
			text, err = provider.ExpandSection(ctx, title, heading, cfg)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("section %q of %q: %w", heading, title, err)
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty section %q", ErrInvalidResponse, heading)
		}
		sections = append(sections, strings.TrimSpace(text))
	}

	body := renderSections(outline, sections, nil)

	var takeaways []string
	if cfg.KeyTakeaways > 0 {
		err := observe(provider.Name(), "key_takeaways", func() (err error) {
			takeaways, err = provider.GenerateKeyTakeaways(ctx, title, body, cfg.KeyTakeaways)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("key takeaways for %q: %w", title, err)
		}
		takeaways = limit(compact(takeaways), cfg.KeyTakeaways)
	}

	var faqs []FAQ
	if cfg.FAQs > 0 {
		err := observe(provider.Name(), "faqs", func() (err error) {
			faqs, err = provider.GenerateFAQs(ctx, title, body, cfg.FAQs)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("faqs for %q: %w", title, err)
		}
		faqs = limit(validFAQs(faqs), cfg.FAQs)
	}

	images := a.generateImages(ctx, log, title, outline, cfg.Images)

	content := render(title, outline, sections, takeaways, faqs, images)
	usage := estimate.Usage{
		Words:        domain.CountWords(content),
		Images:       len(images),
		KeyTakeaways: len(takeaways),
		FAQs:         len(faqs),
	}

	article := &AssembledArticle{
		Title:     title,
		Content:   content,
		WordCount: usage.Words,
		Images:    images,
		Usage:     usage,
		Credits:   estimate.ActualCost(usage),
		Provider:  provider.Name(),
	}

	log.Info("article assembled",
		"sections", len(sections),
		"words", article.WordCount,
		"images", len(images),
		"credits", article.Credits)
	return article, nil
}

// SuggestTitles asks the provider for model to propose titles for topic.
func (a *Assembler) SuggestTitles(ctx context.Context, model, topic string, count int) ([]string, error) {
	provider, err := a.registry.Resolve(model)
	if err != nil {
		return nil, err
	}

	var titles []string
	err = observe(provider.Name(), "title_ideas", func() (err error) {
		titles, err = provider.GenerateTitleIdeas(ctx, topic, count)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("title ideas for %q: %w", topic, err)
	}
	return limit(compact(titles), count), nil
}

func (a *Assembler) generateImages(
	ctx context.Context,
	log *slog.Logger,
	title string,
	outline []string,
	count int,
) []domain.ArticleImage {
	if count <= 0 {
		return nil
	}
	if a.images == nil {
		log.Warn("images requested but no image generator is configured", "requested", count)
		return nil
	}

	images := make([]domain.ArticleImage, 0, count)
	for i := 0; i < count; i++ {
		placement := outline[i%len(outline)]
		prompt := fmt.Sprintf("Editorial illustration for the article %q, section %q", title, placement)

		var image domain.ArticleImage
		err := observe("images", "image", func() (err error) {
			image, err = a.images.GenerateImage(ctx, prompt)
			return err
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			log.Warn("image generation failed, continuing without it",
				"placement", placement,
				"error", err)
			continue
		}

		image.Placement = placement
		if image.Alt == "" {
			image.Alt = placement
		}
		images = append(images, image)
	}
	return images
}

func render(
	title string,
	outline, sections, takeaways []string,
	faqs []FAQ,
	images []domain.ArticleImage,
) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n\n")

	if len(takeaways) > 0 {
		b.WriteString("## Key Takeaways\n\n")
		for _, t := range takeaways {
			b.WriteString("- ")
			b.WriteString(t)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(renderSections(outline, sections, images))

	if len(faqs) > 0 {
		b.WriteString("## Frequently Asked Questions\n\n")
		for _, f := range faqs {
			b.WriteString("### ")
			b.WriteString(f.Question)
			b.WriteString("\n\n")
			b.WriteString(f.Answer)
			b.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(b.String()) + "\n"
}

func renderSections(outline, sections []string, images []domain.ArticleImage) string {
	var b strings.Builder
	for i, heading := range outline {
		b.WriteString("## ")
		b.WriteString(heading)
		b.WriteString("\n\n")
		for _, img := range images {
			if img.Placement == heading {
				fmt.Fprintf(&b, "![%s](%s)\n\n", img.Alt, img.URL)
			}
		}
		b.WriteString(sections[i])
		b.WriteString("\n\n")
	}
	return b.String()
}

// observe times a provider call and records failures.
func observe(provider, operation string, call func() error) error {
	start := time.Now()
	err := call()
	metrics.ProviderLatency.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(provider, operation).Inc()
	}
	return err
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func validFAQs(faqs []FAQ) []FAQ {
	out := make([]FAQ, 0, len(faqs))
	for _, f := range faqs {
		f.Question = strings.TrimSpace(f.Question)
		f.Answer = strings.TrimSpace(f.Answer)
		if f.Question != "" && f.Answer != "" {
			out = append(out, f)
		}
	}
	return out
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
