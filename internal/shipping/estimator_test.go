package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

func TestEstimateEmptyCartIsFree(t *testing.T) {
	assert.EqualValues(t, 0, DefaultEstimator().Estimate(nil))
}

func TestEstimateSumsByClass(t *testing.T) {
	e := DefaultEstimator()
	lines := []Line{
		{Quantity: 2, SizeClass: commerce.SizeSmall},  // 200
		{Quantity: 1, SizeClass: commerce.SizeMedium}, // 250
		{Quantity: 3, SizeClass: commerce.SizeLarge},  // 2100
	}
	assert.EqualValues(t, 500+200+250+2100, e.Estimate(lines))
}

func TestEstimateDeterministic(t *testing.T) {
	e := DefaultEstimator()
	lines := []Line{{Quantity: 5, SizeClass: commerce.SizeMedium}}
	first := e.Estimate(lines)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Estimate(lines))
	}
}

func TestEstimateUnknownClassBillsLarge(t *testing.T) {
	e := DefaultEstimator()
	got := e.Estimate([]Line{{Quantity: 1, SizeClass: "weird"}})
	assert.EqualValues(t, e.BaseCents+e.RateCents[commerce.SizeLarge], got)
}

func TestEstimateIgnoresNonPositiveQuantities(t *testing.T) {
	e := DefaultEstimator()
	got := e.Estimate([]Line{
		{Quantity: 0, SizeClass: commerce.SizeSmall},
		{Quantity: -2, SizeClass: commerce.SizeLarge},
		{Quantity: 1, SizeClass: commerce.SizeSmall},
	})
	assert.EqualValues(t, e.BaseCents+e.RateCents[commerce.SizeSmall], got)
}
