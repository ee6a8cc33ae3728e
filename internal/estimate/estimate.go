// Package estimate prices generation work in credits.
//
// The same functions size a reservation at submission time, answer cost
// previews, and price delivered output at settlement time, so they are pure
// and deterministic.
package estimate

import "github.com/phrazzld/inkwell-api/internal/domain"

// Base costs per length tier.
const (
	BaseShort  int64 = 800
	BaseMedium int64 = 1500
	BaseLong   int64 = 3000
)

// Per-unit feature prices.
const (
	PerImage       int64 = 100
	PerKeyTakeaway int64 = 10
	PerFAQ         int64 = 25
)

// BufferPercent is added on top of base plus features.
const BufferPercent int64 = 10

// PerWord is the settlement price of one delivered word.
const PerWord int64 = 1

// Usage describes what generation actually delivered for one article.
type Usage struct {
	Words        int
	Images       int
	KeyTakeaways int
	FAQs         int
}

// Base returns the base cost for a length tier. Unknown tiers are priced as medium.
func Base(length domain.Length) int64 {
	switch length {
	case domain.LengthShort:
		return BaseShort
	case domain.LengthLong:
		return BaseLong
	default:
		return BaseMedium
	}
}

// Estimate returns the reservation size for one article:
// ceil((base + features) * (100 + BufferPercent) / 100).
func Estimate(cfg domain.GenerationConfig) int64 {
	subtotal := Base(cfg.Length) + features(cfg.Images, cfg.KeyTakeaways, cfg.FAQs)
	return ceilDiv(subtotal*(100+BufferPercent), 100)
}

// EstimateBulk returns the reservation size for a job of n titles.
func EstimateBulk(cfg domain.GenerationConfig, n int) int64 {
	if n <= 0 {
		return 0
	}
	return Estimate(cfg) * int64(n)
}

// ActualCost prices delivered output. There is no buffer on actual cost.
func ActualCost(u Usage) int64 {
	return int64(max(u.Words, 0))*PerWord + features(u.Images, u.KeyTakeaways, u.FAQs)
}

func features(images, takeaways, faqs int) int64 {
	return int64(max(images, 0))*PerImage +
		int64(max(takeaways, 0))*PerKeyTakeaway +
		int64(max(faqs, 0))*PerFAQ
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
