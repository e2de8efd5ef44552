package service

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/catalog"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/storage"
)

// Storage paths of the generated site files.
const (
	SitemapPath = "sitemap.xml"
	RobotsPath  = "robots.txt"
)

// FileStorage stores public files and reports which URLs it owns.
type FileStorage interface {
	Upload(ctx context.Context, path string, data io.Reader, opts storage.UploadOptions) (string, error)
	Remove(ctx context.Context, paths []string) error
	Managed(url string) bool
	PathFromURL(url string) (string, bool)
}

// ProductRefLister lists the products to expose in the sitemap.
type ProductRefLister interface {
	ListProductRefs(ctx context.Context) ([]models.ProductRef, error)
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// BuildSitemap renders sitemap.xml for siteURL and the given products.
func BuildSitemap(siteURL string, refs []models.ProductRef) ([]byte, error) {
	base := strings.TrimRight(siteURL, "/")
	set := urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: base + "/", ChangeFreq: "daily", Priority: "1.0"},
			{Loc: base + "/favorites", ChangeFreq: "weekly", Priority: "0.8"},
			{Loc: base + "/dashboard", ChangeFreq: "monthly", Priority: "0.6"},
		},
	}
	for _, ref := range refs {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        base + catalog.ProductPath(ref.ID, ref.Name),
			ChangeFreq: "daily",
			Priority:   "0.9",
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// BuildRobots renders robots.txt for siteURL.
func BuildRobots(siteURL string) []byte {
	base := strings.TrimRight(siteURL, "/")
	return []byte("User-agent: *\n" +
		"Allow: /\n" +
		"\n" +
		"# Sitemap\n" +
		"Sitemap: " + base + "/sitemap.xml\n" +
		"\n" +
		"# Prevent access to admin pages\n" +
		"Disallow: /admin/\n" +
		"Disallow: /admin/*\n")
}

// SitemapService regenerates the public sitemap.xml and robots.txt.
type SitemapService struct {
	products ProductRefLister
	files    FileStorage
	log      *zap.Logger

	attempts int
	delay    time.Duration
}

// NewSitemapService constructs a SitemapService.
func NewSitemapService(products ProductRefLister, files FileStorage, log *zap.Logger) *SitemapService {
	return &SitemapService{
		products: products,
		files:    files,
		log:      log,
		attempts: retryAttempts,
		delay:    retryDelay,
	}
}

// SiteFiles are the URLs of the regenerated files.
type SiteFiles struct {
	SitemapURL string `json:"sitemap_url"`
	RobotsURL  string `json:"robots_url"`
}

// Regenerate rebuilds both files for siteURL. The product listing, the
// removal of the old files and the upload of the new ones each run under a
// bounded retry.
func (s *SitemapService) Regenerate(ctx context.Context, siteURL string) (SiteFiles, error) {
	var refs []models.ProductRef
	err := retry(ctx, s.attempts, s.delay, func(ctx context.Context) error {
		var err error
		refs, err = s.products.ListProductRefs(ctx)
		return err
	})
	if err != nil {
		return SiteFiles{}, remote("list products for sitemap", err)
	}

	sitemap, err := BuildSitemap(siteURL, refs)
	if err != nil {
		return SiteFiles{}, err
	}
	robots := BuildRobots(siteURL)

	err = retry(ctx, s.attempts, s.delay, func(ctx context.Context) error {
		return s.files.Remove(ctx, []string{SitemapPath, RobotsPath})
	})
	if err != nil {
		return SiteFiles{}, remote("remove site files", err)
	}

	var out SiteFiles
	err = retry(ctx, s.attempts, s.delay, func(ctx context.Context) error {
		var err error
		out.SitemapURL, err = s.files.Upload(ctx, SitemapPath, bytes.NewReader(sitemap),
			storage.UploadOptions{ContentType: "application/xml", Overwrite: true})
		if err != nil {
			return err
		}
		out.RobotsURL, err = s.files.Upload(ctx, RobotsPath, bytes.NewReader(robots),
			storage.UploadOptions{ContentType: "text/plain", Overwrite: true})
		return err
	})
	if err != nil {
		return SiteFiles{}, remote("upload site files", err)
	}

	s.log.Info("sitemap regenerated", zap.Int("products", len(refs)), zap.String("site_url", siteURL))
	return out, nil
}
