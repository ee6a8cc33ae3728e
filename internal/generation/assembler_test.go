package generation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/estimate"
	"github.com/phrazzld/inkwell-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssembler(t *testing.T, p *fakeProvider, opts ...generation.AssemblerOption) *generation.Assembler {
	t.Helper()
	r := generation.NewRegistry(p.name, discardLogger())
	require.NoError(t, r.Register(p))
	return generation.NewAssembler(r, discardLogger(), opts...)
}

func TestAssembleBlockOrder(t *testing.T) {
	t.Parallel()

	a := newAssembler(t, &fakeProvider{name: "fake"})
	cfg := domain.GenerationConfig{Length: domain.LengthShort, KeyTakeaways: 2, FAQs: 1}

	article, err := a.Assemble(context.Background(), "Go Channels", cfg)
	require.NoError(t, err)

	content := article.Content
	assert.True(t, strings.HasPrefix(content, "# Go Channels\n"))

	takeaways := strings.Index(content, "## Key Takeaways")
	intro := strings.Index(content, "## Introduction")
	details := strings.Index(content, "## Details")
	faq := strings.Index(content, "## Frequently Asked Questions")
	require.True(t, takeaways >= 0 && intro >= 0 && details >= 0 && faq >= 0, content)
	assert.Less(t, takeaways, intro, "takeaways come first")
	assert.Less(t, intro, details)
	assert.Less(t, details, faq, "faqs come last")

	assert.Equal(t, domain.CountWords(content), article.WordCount)
	assert.Equal(t, estimate.Usage{Words: article.WordCount, KeyTakeaways: 2, FAQs: 1}, article.Usage)
	assert.Equal(t, estimate.ActualCost(article.Usage), article.Credits)
	assert.Equal(t, "fake", article.Provider)
}

func TestAssembleWithoutOptionalBlocks(t *testing.T) {
	t.Parallel()

	a := newAssembler(t, &fakeProvider{name: "fake"})
	article, err := a.Assemble(context.Background(), "Plain", domain.GenerationConfig{Length: domain.LengthShort})
	require.NoError(t, err)

	assert.NotContains(t, article.Content, "Key Takeaways")
	assert.NotContains(t, article.Content, "Frequently Asked Questions")
	assert.Empty(t, article.Images)
}

func TestAssembleProviderErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("provider exploded")

	tests := []struct {
		name     string
		provider *fakeProvider
		wantErr  error
	}{
		{
			name: "outline failure",
			provider: &fakeProvider{name: "fake", OutlineFn: func(context.Context, string, domain.GenerationConfig) ([]string, error) {
				return nil, boom
			}},
			wantErr: boom,
		},
		{
			name: "empty outline",
			provider: &fakeProvider{name: "fake", OutlineFn: func(context.Context, string, domain.GenerationConfig) ([]string, error) {
				return []string{" "}, nil
			}},
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name: "blocked section",
			provider: &fakeProvider{name: "fake", ExpandSectionFn: func(context.Context, string, string, domain.GenerationConfig) (string, error) {
				return "", generation.ErrContentBlocked
			}},
			wantErr: generation.ErrContentBlocked,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a := newAssembler(t, tc.provider)
			_, err := a.Assemble(context.Background(), "Title", domain.GenerationConfig{Length: domain.LengthShort})
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestAssembleImagesAreBestEffort(t *testing.T) {
	t.Parallel()

	calls := 0
	images := &fakeImages{GenerateImageFn: func(_ context.Context, prompt string) (domain.ArticleImage, error) {
		calls++
		if calls == 1 {
			return domain.ArticleImage{}, errors.New("quota exceeded")
		}
		return domain.ArticleImage{URL: "/images/a.png"}, nil
	}}

	a := newAssembler(t, &fakeProvider{name: "fake"}, generation.WithImageGenerator(images))
	cfg := domain.GenerationConfig{Length: domain.LengthShort, Images: 2}

	article, err := a.Assemble(context.Background(), "Pictures", cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, article.Images, 1)
	assert.Equal(t, "Details", article.Images[0].Placement)
	assert.Contains(t, article.Content, "![Details](/images/a.png)")
	assert.Equal(t, 1, article.Usage.Images, "only delivered images are billed")
}

func TestSuggestTitles(t *testing.T) {
	t.Parallel()

	a := newAssembler(t, &fakeProvider{name: "fake"})
	titles, err := a.SuggestTitles(context.Background(), "", "golang", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang idea 1", "golang idea 2", "golang idea 3"}, titles)
}

func TestIsPermanent(t *testing.T) {
	t.Parallel()

	assert.True(t, generation.IsPermanent(generation.ErrContentBlocked))
	assert.True(t, generation.IsPermanent(generation.ErrInvalidResponse))
	assert.False(t, generation.IsPermanent(generation.ErrTransientFailure))
	assert.False(t, generation.IsPermanent(errors.New("other")))
}
