package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLen        = 100
	maxMetaLen        = 160
	maxMetaKeywords   = 10
	metaEllipsis      = "..."
	productPathPrefix = "/product/"
)

var (
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
	productPathRe = regexp.MustCompile(`/product/([^/]+)`)
)

// Slugify lowercases text, strips accents and joins alphanumeric runs with
// hyphens, truncated to 100 characters.
func Slugify(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	slug := strings.Trim(nonAlnum.ReplaceAllString(folded, "-"), "-")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}

// ProductPath builds the canonical storefront path of a product.
func ProductPath(id, name string) string {
	return fmt.Sprintf("%s%s/%s", productPathPrefix, id, Slugify(name))
}

// IDFromPath extracts the product id from a storefront path, or "".
func IDFromPath(path string) string {
	m := productPathRe.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// MetaDescription truncates text for a meta description tag.
func MetaDescription(text string) string {
	r := []rune(text)
	if len(r) <= maxMetaLen {
		return text
	}
	return string(r[:maxMetaLen-len(metaEllipsis)]) + metaEllipsis
}

// MetaKeywords joins at most ten tags for a keywords meta tag.
func MetaKeywords(tags []string) string {
	if len(tags) > maxMetaKeywords {
		tags = tags[:maxMetaKeywords]
	}
	return strings.Join(tags, ", ")
}
