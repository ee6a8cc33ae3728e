package estimate

import (
	"testing"

	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  domain.GenerationConfig
		want int64
	}{
		{name: "short no features", cfg: domain.GenerationConfig{Length: domain.LengthShort}, want: 880},
		{name: "medium no features", cfg: domain.GenerationConfig{Length: domain.LengthMedium}, want: 1650},
		{name: "long no features", cfg: domain.GenerationConfig{Length: domain.LengthLong}, want: 3300},
		{
			name: "short with features",
			// 800 + 2*100 + 3*10 + 1*25 = 1055, * 1.1 = 1160.5 -> 1161
			cfg:  domain.GenerationConfig{Length: domain.LengthShort, Images: 2, KeyTakeaways: 3, FAQs: 1},
			want: 1161,
		},
		{name: "unknown tier priced as medium", cfg: domain.GenerationConfig{Length: "epic"}, want: 1650},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Estimate(tc.cfg))
		})
	}
}

func TestEstimateIsDeterministicAndNonNegative(t *testing.T) {
	t.Parallel()

	lengths := []domain.Length{domain.LengthShort, domain.LengthMedium, domain.LengthLong}
	for _, length := range lengths {
		for images := 0; images <= domain.MaxImages; images++ {
			for faqs := 0; faqs <= domain.MaxFAQs; faqs++ {
				cfg := domain.GenerationConfig{Length: length, Images: images, FAQs: faqs, KeyTakeaways: faqs}
				first := Estimate(cfg)
				assert.GreaterOrEqual(t, first, int64(0))
				assert.Equal(t, first, Estimate(cfg))
			}
		}
	}
}

func TestEstimateBulk(t *testing.T) {
	t.Parallel()

	cfg := domain.GenerationConfig{Length: domain.LengthShort}
	assert.Equal(t, int64(2640), EstimateBulk(cfg, 3))
	assert.Equal(t, int64(880), EstimateBulk(cfg, 1))
	assert.Equal(t, int64(0), EstimateBulk(cfg, 0))
}

func TestActualCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(1200), ActualCost(Usage{Words: 1200}))
	assert.Equal(t, int64(1200+100+20+50), ActualCost(Usage{Words: 1200, Images: 1, KeyTakeaways: 2, FAQs: 2}))
	assert.Equal(t, int64(0), ActualCost(Usage{Words: -5}))
}
