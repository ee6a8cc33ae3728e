package generation_test

import (
	"context"
	"fmt"

	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/generation"
)

// fakeProvider returns canned content unless a ...Fn override is set.
type fakeProvider struct {
	name            string
	TitleIdeasFn    func(ctx context.Context, topic string, count int) ([]string, error)
	OutlineFn       func(ctx context.Context, title string, cfg domain.GenerationConfig) ([]string, error)
	ExpandSectionFn func(ctx context.Context, title, section string, cfg domain.GenerationConfig) (string, error)
	FAQsFn          func(ctx context.Context, title, content string, count int) ([]generation.FAQ, error)
	TakeawaysFn     func(ctx context.Context, title, content string, count int) ([]string, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GenerateTitleIdeas(ctx context.Context, topic string, count int) ([]string, error) {
	if f.TitleIdeasFn != nil {
		return f.TitleIdeasFn(ctx, topic, count)
	}
	ideas := make([]string, count)
	for i := range ideas {
		ideas[i] = fmt.Sprintf("%s idea %d", topic, i+1)
	}
	return ideas, nil
}

func (f *fakeProvider) GenerateOutline(ctx context.Context, title string, cfg domain.GenerationConfig) ([]string, error) {
	if f.OutlineFn != nil {
		return f.OutlineFn(ctx, title, cfg)
	}
	return []string{"Introduction", "Details"}, nil
}

func (f *fakeProvider) ExpandSection(ctx context.Context, title, section string, cfg domain.GenerationConfig) (string, error) {
	if f.ExpandSectionFn != nil {
		return f.ExpandSectionFn(ctx, title, section, cfg)
	}
	return "Body of " + section + ".", nil
}

func (f *fakeProvider) GenerateFAQs(ctx context.Context, title, content string, count int) ([]generation.FAQ, error) {
	if f.FAQsFn != nil {
		return f.FAQsFn(ctx, title, content, count)
	}
	faqs := make([]generation.FAQ, count)
	for i := range faqs {
		faqs[i] = generation.FAQ{Question: fmt.Sprintf("Question %d?", i+1), Answer: "Answer."}
	}
	return faqs, nil
}

func (f *fakeProvider) GenerateKeyTakeaways(ctx context.Context, title, content string, count int) ([]string, error) {
	if f.TakeawaysFn != nil {
		return f.TakeawaysFn(ctx, title, content, count)
	}
	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("Takeaway %d", i+1)
	}
	return out, nil
}

type fakeImages struct {
	GenerateImageFn func(ctx context.Context, prompt string) (domain.ArticleImage, error)
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (domain.ArticleImage, error) {
	return f.GenerateImageFn(ctx, prompt)
}
