package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Écouteurs Sans-Fil  Bluetooth 5.0!": "ecouteurs-sans-fil-bluetooth-5-0",
		"  --Crème brûlée--  ":               "creme-brulee",
		"":                                   "",
		"***":                                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}

	long := Slugify(strings.Repeat("abc ", 60))
	assert.Len(t, long, 100)
}

func TestProductPath(t *testing.T) {
	path := ProductPath("abc-123", "Café Noir")
	assert.Equal(t, "/product/abc-123/cafe-noir", path)
	assert.Equal(t, "abc-123", IDFromPath(path))
	assert.Equal(t, "", IDFromPath("/favorites"))
}

func TestMetaDescription(t *testing.T) {
	short := "Un bon plan"
	assert.Equal(t, short, MetaDescription(short))

	long := MetaDescription(strings.Repeat("é", 200))
	assert.Equal(t, 160, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestMetaKeywords(t *testing.T) {
	tags := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}
	assert.Equal(t, "1, 2, 3, 4, 5, 6, 7, 8, 9, 10", MetaKeywords(tags))
	assert.Equal(t, "a, b", MetaKeywords([]string{"a", "b"}))
}
