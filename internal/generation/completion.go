package generation

import (
	"context"
	"fmt"

	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/estimate"
)

// Completer sends one prompt to a model and returns its raw text answer.
// Adapters implement it and handle transport concerns such as retries.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PromptProvider implements Provider on top of any Completer using the
// shared prompt templates and JSON response shapes.
type PromptProvider struct {
	name      string
	completer Completer
}

var _ Provider = (*PromptProvider)(nil)

// NewPromptProvider creates a Provider registered under name.
func NewPromptProvider(name string, completer Completer) *PromptProvider {
	return &PromptProvider{name: name, completer: completer}
}

// Name implements Provider.
func (p *PromptProvider) Name() string {
	return p.name
}

// GenerateTitleIdeas implements Provider.
func (p *PromptProvider) GenerateTitleIdeas(ctx context.Context, topic string, count int) ([]string, error) {
	var resp titleIdeasResponse
	err := p.ask(ctx, PromptTitleIdeas, PromptData{Topic: topic, Count: count, Language: "English"}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Titles, nil
}

// GenerateOutline implements Provider.
func (p *PromptProvider) GenerateOutline(ctx context.Context, title string, cfg domain.GenerationConfig) ([]string, error) {
	var resp outlineResponse
	if err := p.ask(ctx, PromptOutline, configData(title, cfg), &resp); err != nil {
		return nil, err
	}
	return resp.Sections, nil
}

// ExpandSection implements Provider. The article's word budget is split
// evenly across a typical five-section outline.
func (p *PromptProvider) ExpandSection(
	ctx context.Context,
	title, section string,
	cfg domain.GenerationConfig,
) (string, error) {
	data := configData(title, cfg)
	data.Section = section
	data.Words = int(estimate.Base(cfg.Length) / 5)

	var resp sectionResponse
	if err := p.ask(ctx, PromptSection, data, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateFAQs implements Provider.
func (p *PromptProvider) GenerateFAQs(ctx context.Context, title, content string, count int) ([]FAQ, error) {
	var resp faqsResponse
	data := PromptData{Title: title, Content: content, Count: count, Language: "English"}
	if err := p.ask(ctx, PromptFAQs, data, &resp); err != nil {
		return nil, err
	}
	return resp.FAQs, nil
}

// GenerateKeyTakeaways implements Provider.
func (p *PromptProvider) GenerateKeyTakeaways(ctx context.Context, title, content string, count int) ([]string, error) {
	var resp takeawaysResponse
	data := PromptData{Title: title, Content: content, Count: count, Language: "English"}
	if err := p.ask(ctx, PromptKeyTakeaways, data, &resp); err != nil {
		return nil, err
	}
	return resp.Takeaways, nil
}

func (p *PromptProvider) ask(ctx context.Context, promptName string, data PromptData, v any) error {
	prompt, err := RenderPrompt(promptName, data)
	if err != nil {
		return err
	}

	text, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return err
	}

	if err := DecodeJSON(text, v); err != nil {
		return fmt.Errorf("%s %s: %w", p.name, promptName, err)
	}
	return nil
}

func configData(title string, cfg domain.GenerationConfig) PromptData {
	cfg = cfg.WithDefaults()
	return PromptData{
		Title:    title,
		Length:   string(cfg.Length),
		Tone:     cfg.Tone,
		Language: cfg.Language,
		Keywords: cfg.Keywords,
	}
}
