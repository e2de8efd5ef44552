package catalog

import (
	"slices"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// AllTags is the pseudo-tag that clears the tag selection.
const AllTags = "Tous"

// Selection is the composed storefront filter state. Any change to the tag
// set clears the price range, since bucket boundaries depend on the tags.
type Selection struct {
	tags       []string
	priceRange *models.PriceRange
	search     string
}

// Tags returns a copy of the selected tags in selection order.
func (s *Selection) Tags() []string {
	return slices.Clone(s.tags)
}

// Range returns the active price range or nil.
func (s *Selection) Range() *models.PriceRange {
	if s.priceRange == nil {
		return nil
	}
	r := *s.priceRange
	return &r
}

// Search returns the free-text query.
func (s *Selection) Search() string {
	return s.search
}

// ToggleTag adds or removes tag. AllTags clears the selection.
func (s *Selection) ToggleTag(tag string) {
	if tag == AllTags {
		s.ClearTags()
		return
	}
	if i := slices.Index(s.tags, tag); i >= 0 {
		s.tags = slices.Delete(s.tags, i, i+1)
	} else {
		s.tags = append(s.tags, tag)
	}
	s.priceRange = nil
}

// SetTags replaces the selection, ignoring blanks, duplicates and AllTags.
func (s *Selection) SetTags(tags ...string) {
	next := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || t == AllTags || slices.Contains(next, t) {
			continue
		}
		next = append(next, t)
	}
	s.tags = next
	s.priceRange = nil
}

// ClearTags empties the tag selection.
func (s *Selection) ClearTags() {
	s.tags = nil
	s.priceRange = nil
}

// SelectRange sets the price range; nil unsets it.
func (s *Selection) SelectRange(r *models.PriceRange) {
	if r == nil {
		s.priceRange = nil
		return
	}
	cp := *r
	s.priceRange = &cp
}

// SetSearch sets the free-text query.
func (s *Selection) SetSearch(q string) {
	s.search = q
}

// Apply returns the products visible under the selection.
func (s *Selection) Apply(products []models.Product) []models.Product {
	return VisibleProducts(products, s.tags, s.priceRange, s.search)
}

// Ranges returns the price buckets offered for the current tags.
func (s *Selection) Ranges(products []models.Product) []models.PriceRange {
	return ComputeRanges(products, s.tags)
}
