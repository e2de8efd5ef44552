package catalog

import (
	"cmp"
	"slices"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// Tags derives the tag vocabulary from products in first-seen order.
func Tags(products []models.Product) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, p := range products {
		for _, t := range p.Tags {
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	return tags
}

// TagCounts counts products per tag, most used first, ties by name.
func TagCounts(products []models.Product) []models.TagCount {
	counts := make(map[string]int)
	for _, p := range products {
		seen := make(map[string]struct{}, len(p.Tags))
		for _, t := range p.Tags {
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			counts[t]++
		}
	}
	out := make([]models.TagCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.TagCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b models.TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
