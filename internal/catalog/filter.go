package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// VisibleProducts returns the products that pass the tag, price and search
// predicates, preserving input order.
//
// The tag predicate matches a product carrying any selected tag, unlike
// ComputeRanges which requires all of them. The price range is inclusive on
// both ends. The search is a case-insensitive substring match on the name or
// any tag.
func VisibleProducts(products []models.Product, selectedTags []string, priceRange *models.PriceRange, search string) []models.Product {
	query := strings.ToLower(search)
	visible := make([]models.Product, 0, len(products))
	for _, p := range products {
		if matchesAnyTag(p, selectedTags) && inRange(p, priceRange) && matchesSearch(p, query) {
			visible = append(visible, p)
		}
	}
	return visible
}

func matchesAnyTag(p models.Product, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if p.HasTag(t) {
			return true
		}
	}
	return false
}

func inRange(p models.Product, r *models.PriceRange) bool {
	if r == nil {
		return true
	}
	return p.Price.GreaterThanOrEqual(decimal.NewFromInt(r.Min)) &&
		p.Price.LessThanOrEqual(decimal.NewFromInt(r.Max))
}

func matchesSearch(p models.Product, query string) bool {
	if strings.Contains(strings.ToLower(p.Name), query) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), query) {
			return true
		}
	}
	return false
}
