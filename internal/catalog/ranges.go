// Package catalog implements the storefront browsing logic: price bucketing,
// product filtering, tag vocabulary and the composed filter selection.
package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// bucketWidth picks the price step for a span between the floored minimum and
// the ceiled maximum price.
func bucketWidth(span int64) int64 {
	switch {
	case span <= 20:
		return 5
	case span <= 50:
		return 10
	case span <= 100:
		return 25
	case span <= 500:
		return 50
	default:
		return 100
	}
}

// ComputeRanges returns the populated price buckets for the products carrying
// every selected tag. An empty selection keeps all products.
//
// Buckets are [start, min(start+width, max)) walked from floor(min price) to
// ceil(max price); the bucket ending at the ceiled maximum also admits a
// product priced exactly at that maximum. Buckets without a matching product
// are skipped, so the result is strictly ascending and non-overlapping.
func ComputeRanges(products []models.Product, selectedTags []string) []models.PriceRange {
	filtered := make([]models.Product, 0, len(products))
	for _, p := range products {
		if hasAllTags(p, selectedTags) {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return []models.PriceRange{}
	}

	lo, hi := filtered[0].Price, filtered[0].Price
	for _, p := range filtered[1:] {
		lo = decimal.Min(lo, p.Price)
		hi = decimal.Max(hi, p.Price)
	}
	minPrice := lo.Floor().IntPart()
	maxPrice := hi.Ceil().IntPart()

	if minPrice == maxPrice {
		return []models.PriceRange{{Min: minPrice, Max: maxPrice}}
	}

	width := bucketWidth(maxPrice - minPrice)
	ranges := make([]models.PriceRange, 0, (maxPrice-minPrice)/width+1)
	for start := minPrice; start < maxPrice; start += width {
		end := min(start+width, maxPrice)
		if populated(filtered, start, end, end == maxPrice) {
			ranges = append(ranges, models.PriceRange{Min: start, Max: end})
		}
	}
	return ranges
}

func populated(products []models.Product, start, end int64, closed bool) bool {
	lo := decimal.NewFromInt(start)
	hi := decimal.NewFromInt(end)
	for _, p := range products {
		if p.Price.LessThan(lo) {
			continue
		}
		if p.Price.LessThan(hi) || (closed && p.Price.Equal(hi)) {
			return true
		}
	}
	return false
}

func hasAllTags(p models.Product, tags []string) bool {
	for _, t := range tags {
		if !p.HasTag(t) {
			return false
		}
	}
	return true
}
