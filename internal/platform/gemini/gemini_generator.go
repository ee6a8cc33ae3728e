package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/generation"
	"google.golang.org/genai"
)

// ProviderName is the registry name of the Gemini provider.
const ProviderName = "gemini"

// contentModel is the subset of genai.Models used for text.
type contentModel interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// imageModel is the subset of genai.Models used for images.
type imageModel interface {
	GenerateImages(
		ctx context.Context,
		model string,
		prompt string,
		config *genai.GenerateImagesConfig,
	) (*genai.GenerateImagesResponse, error)
}

// GeminiGenerator talks to the Gemini API.
type GeminiGenerator struct {
	logger     *slog.Logger
	config     config.LLMConfig
	text       contentModel
	images     imageModel
	sleep      func(ctx context.Context, d time.Duration) error
	rng        *rand.Rand
	imageModel string
}

var (
	_ generation.Completer      = (*GeminiGenerator)(nil)
	_ generation.ImageGenerator = (*GeminiGenerator)(nil)
)

// NewGeminiGenerator creates a generator with a real genai client.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, cfg, client.Models, client.Models)
}

func newGenerator(logger *slog.Logger, cfg config.LLMConfig, text contentModel, images imageModel) (*GeminiGenerator, error) {
	if cfg.GeminiModel == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	return &GeminiGenerator{
		logger:     logger.With("component", "gemini"),
		config:     cfg,
		text:       text,
		images:     images,
		sleep:      sleepContext,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		imageModel: cfg.ImageModel,
	}, nil
}

// Complete implements generation.Completer.
func (g *GeminiGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", generation.ErrInvalidConfig)
	}

	if g.config.RequestTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(g.config.RequestTimeoutSec)*time.Second)
		defer cancel()
	}

	return g.callGeminiWithRetry(ctx, prompt)
}

// callGeminiWithRetry calls the API up to MaxRetries+1 times, backing off
// exponentially with jitter between transient failures.
func (g *GeminiGenerator) callGeminiWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := g.config.MaxRetries
	baseDelaySeconds := g.config.RetryDelaySeconds

	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "Invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		g.logger.DebugContext(ctx, "Making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		text, err := g.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}

		g.logger.WarnContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		if generation.IsPermanent(err) {
			return "", err
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + g.rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		g.logger.InfoContext(ctx, "Retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		if err := g.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
	}
}

// generate makes one API call and classifies the outcome.
func (g *GeminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.text.GenerateContent(ctx, g.config.GeminiModel, genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}

	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: response has no text", generation.ErrInvalidResponse)
	}
	return b.String(), nil
}

// GenerateImage implements generation.ImageGenerator. The PNG is written to
// the configured image directory and served from the public base URL.
func (g *GeminiGenerator) GenerateImage(ctx context.Context, prompt string) (domain.ArticleImage, error) {
	if g.imageModel == "" || g.config.ImageDir == "" {
		return domain.ArticleImage{}, fmt.Errorf("%w: image generation is not configured", generation.ErrInvalidConfig)
	}

	resp, err := g.images.GenerateImages(ctx, g.imageModel, prompt, nil)
	if err != nil {
		return domain.ArticleImage{}, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 {
		return domain.ArticleImage{}, fmt.Errorf("%w: no image generated", generation.ErrInvalidResponse)
	}

	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if generated.RAIFilteredReason != "" {
			return domain.ArticleImage{}, fmt.Errorf("%w: %s", generation.ErrContentBlocked, generated.RAIFilteredReason)
		}
		return domain.ArticleImage{}, fmt.Errorf("%w: empty image", generation.ErrInvalidResponse)
	}

	if err := os.MkdirAll(g.config.ImageDir, 0o755); err != nil {
		return domain.ArticleImage{}, fmt.Errorf("failed to create image directory: %w", err)
	}

	name := uuid.NewString() + ".png"
	if err := os.WriteFile(filepath.Join(g.config.ImageDir, name), generated.Image.ImageBytes, 0o644); err != nil {
		return domain.ArticleImage{}, fmt.Errorf("failed to write image: %w", err)
	}

	g.logger.DebugContext(ctx, "Image generated", "file", name)
	return domain.ArticleImage{
		URL: strings.TrimSuffix(g.config.ImageBaseURL, "/") + "/" + name,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
