package shipping

import "github.com/ariefcatur/go-commerce-stock/internal/commerce"

// Estimator is a pure function of the cart's line items: base fee plus a
// per-unit rate by size class. Deterministic, no clock, no store.
type Estimator struct {
	BaseCents int64
	RateCents map[commerce.SizeClass]int64
}

func DefaultEstimator() *Estimator {
	return &Estimator{
		BaseCents: 500,
		RateCents: map[commerce.SizeClass]int64{
			commerce.SizeSmall:  100,
			commerce.SizeMedium: 250,
			commerce.SizeLarge:  700,
		},
	}
}

type Line struct {
	Quantity  int
	SizeClass commerce.SizeClass
}

// Estimate returns 0 for an empty cart; otherwise base + sum(qty * rate).
// Unknown size classes bill at the large rate rather than under-charging.
func (e *Estimator) Estimate(lines []Line) int64 {
	if len(lines) == 0 {
		return 0
	}
	total := e.BaseCents
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		rate, ok := e.RateCents[l.SizeClass]
		if !ok {
			rate = e.RateCents[commerce.SizeLarge]
		}
		total += int64(l.Quantity) * rate
	}
	return total
}
