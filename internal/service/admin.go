package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/catalog"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/storage"
)

// AnalyticsPeriods are the accepted analytics windows, in days.
var AnalyticsPeriods = []int{7, 30, 90}

var (
	hexColor    = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	imageExts   = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif"}
	maxDiscount = decimal.NewFromInt(100)
)

// ProductRepository defines the product persistence operations used by the
// back office.
type ProductRepository interface {
	ProductReader
	CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, id string, in models.ProductInput) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) (models.Product, error)
	AddTagToAll(ctx context.Context, tag string) (int64, error)
	RemoveTagFromAll(ctx context.Context, tag string) (int64, error)
}

// ThemeRepository defines the theme persistence operations.
type ThemeRepository interface {
	ThemeReader
	CreateTheme(ctx context.Context, t models.ThemeSettings) (models.ThemeSettings, error)
	UpdateTheme(ctx context.Context, t models.ThemeSettings) (models.ThemeSettings, error)
}

// StatsReader aggregates interactions.
type StatsReader interface {
	ProductStats(ctx context.Context, since time.Time) ([]models.ProductStats, error)
}

// Regenerator rebuilds the public site files.
type Regenerator interface {
	Regenerate(ctx context.Context, siteURL string) (SiteFiles, error)
}

// Invalidator drops a cache.
type Invalidator interface {
	Invalidate()
}

// AdminDeps groups the collaborators of AdminService.
type AdminDeps struct {
	Products ProductRepository
	Themes   ThemeRepository
	Stats    StatsReader
	Files    FileStorage
	Sitemap  Regenerator
	Catalog  Invalidator
	Log      *zap.Logger
}

// AdminService implements the back office.
type AdminService struct {
	products ProductRepository
	themes   ThemeRepository
	stats    StatsReader
	files    FileStorage
	sitemap  Regenerator
	catalog  Invalidator
	log      *zap.Logger

	now func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(d AdminDeps) *AdminService {
	return &AdminService{
		products: d.Products,
		themes:   d.Themes,
		stats:    d.Stats,
		files:    d.Files,
		sitemap:  d.Sitemap,
		catalog:  d.Catalog,
		log:      d.Log,
		now:      time.Now,
	}
}

func httpURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || t == catalog.AllTags || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ValidateProduct checks and normalizes an admin product form.
func ValidateProduct(in models.ProductInput) (models.ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, invalid("name", "Le nom est requis")
	}
	if in.Price.IsNegative() {
		return in, invalid("price", "Le prix doit être positif")
	}
	if in.Discount != nil && (in.Discount.IsNegative() || in.Discount.GreaterThan(maxDiscount)) {
		return in, invalid("discount", "La réduction doit être comprise entre 0 et 100")
	}
	in.PurchaseURL = strings.TrimSpace(in.PurchaseURL)
	if !httpURL(in.PurchaseURL) {
		return in, invalid("purchase_url", "Lien d'achat invalide")
	}
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.ImageURL != "" && !httpURL(in.ImageURL) {
		return in, invalid("image_url", "URL d'image invalide")
	}
	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		if !httpURL(img) {
			return in, invalid("images", "URL d'image invalide")
		}
		images = append(images, img)
	}
	in.Images = images
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		in.Description = nil
	}
	in.Tags = normalizeTags(in.Tags)
	return in, nil
}

// CreateProduct validates and stores a new product.
func (s *AdminService) CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error) {
	in, err := ValidateProduct(in)
	if err != nil {
		return models.Product{}, err
	}
	p, err := s.products.CreateProduct(ctx, in)
	if err != nil {
		return models.Product{}, remote("create product", err)
	}
	s.catalog.Invalidate()
	return p, nil
}

// UpdateProduct validates and overwrites product id.
func (s *AdminService) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (models.Product, error) {
	in, err := ValidateProduct(in)
	if err != nil {
		return models.Product{}, err
	}
	p, err := s.products.UpdateProduct(ctx, id, in)
	if err != nil {
		return models.Product{}, remote("update product", err)
	}
	s.catalog.Invalidate()
	return p, nil
}

// DeleteProduct removes product id and the images it owns in file storage.
// Failing to remove an image is logged; the product stays deleted.
func (s *AdminService) DeleteProduct(ctx context.Context, id string) (models.Product, error) {
	p, err := s.products.DeleteProduct(ctx, id)
	if err != nil {
		return models.Product{}, remote("delete product", err)
	}
	s.catalog.Invalidate()

	var paths []string
	for _, u := range append([]string{p.ImageURL}, p.Images...) {
		if sp, ok := s.files.PathFromURL(u); ok && !slices.Contains(paths, sp) {
			paths = append(paths, sp)
		}
	}
	if len(paths) > 0 {
		if err := s.files.Remove(ctx, paths); err != nil {
			s.log.Warn("failed to remove product images",
				zap.String("product_id", id), zap.Strings("paths", paths), zap.Error(err))
		}
	}
	return p, nil
}

// UploadImage stores an image under a fresh name and returns its URL.
func (s *AdminService) UploadImage(ctx context.Context, filename string, data io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !slices.Contains(imageExts, ext) {
		return "", invalid("file", "Format d'image non supporté")
	}
	u, err := s.files.Upload(ctx, "products/"+uuid.NewString()+ext, data, storage.UploadOptions{})
	if err != nil {
		return "", remote("upload image", err)
	}
	return u, nil
}

// RemoveImage deletes an image previously returned by UploadImage.
func (s *AdminService) RemoveImage(ctx context.Context, imageURL string) error {
	p, ok := s.files.PathFromURL(imageURL)
	if !ok {
		return invalid("url", "Image non gérée par le stockage du site")
	}
	return remote("remove image", s.files.Remove(ctx, []string{p}))
}

// TagCounts returns every tag with the number of products carrying it.
func (s *AdminService) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, remote("list products", err)
	}
	return catalog.TagCounts(products), nil
}

func normalizeTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", invalid("tag", "Le tag est requis")
	}
	if tag == catalog.AllTags {
		return "", invalid("tag", fmt.Sprintf("%q est réservé", catalog.AllTags))
	}
	return tag, nil
}

// AddTag adds tag to every product lacking it and returns how many changed.
func (s *AdminService) AddTag(ctx context.Context, tag string) (int64, error) {
	tag, err := normalizeTag(tag)
	if err != nil {
		return 0, err
	}
	n, err := s.products.AddTagToAll(ctx, tag)
	if err != nil {
		return 0, remote("add tag", err)
	}
	s.catalog.Invalidate()
	return n, nil
}

// DeleteTag strips tag from every product and returns how many changed.
func (s *AdminService) DeleteTag(ctx context.Context, tag string) (int64, error) {
	tag, err := normalizeTag(tag)
	if err != nil {
		return 0, err
	}
	n, err := s.products.RemoveTagFromAll(ctx, tag)
	if err != nil {
		return 0, remote("delete tag", err)
	}
	s.catalog.Invalidate()
	return n, nil
}

// Theme returns the active theme, or the defaults when none is stored.
func (s *AdminService) Theme(ctx context.Context) (models.ThemeSettings, error) {
	t, err := s.themes.GetActiveTheme(ctx)
	if err != nil {
		err = remote("get theme", err)
		if errors.Is(err, ErrNotFound) {
			return DefaultTheme(), nil
		}
		return models.ThemeSettings{}, err
	}
	return withDefaults(t), nil
}

// ValidateTheme checks a theme form.
func ValidateTheme(t models.ThemeSettings) (models.ThemeSettings, error) {
	t.SiteTitle = strings.TrimSpace(t.SiteTitle)
	if t.SiteTitle == "" {
		return t, invalid("site_title", "Le titre du site est requis")
	}
	for _, c := range []struct{ field, value string }{
		{"primary_color", t.PrimaryColor},
		{"primary_hover_color", t.PrimaryHoverColor},
		{"secondary_color", t.SecondaryColor},
		{"accent_color", t.AccentColor},
	} {
		if !hexColor.MatchString(c.value) {
			return t, invalid(c.field, "Couleur invalide")
		}
	}
	if t.FaviconURL != "" && !httpURL(t.FaviconURL) {
		return t, invalid("favicon_url", "URL du favicon invalide")
	}
	t.SiteURL = strings.TrimRight(strings.TrimSpace(t.SiteURL), "/")
	if t.SiteURL == "" {
		t.SiteURL = DefaultTheme().SiteURL
	}
	if !httpURL(t.SiteURL) {
		return t, invalid("site_url", "URL du site invalide")
	}
	return t, nil
}

// SaveTheme stores t as the active theme: the first save creates the
// record, later saves update it. Connected storefronts pick the change up
// through the theme_settings notifications.
func (s *AdminService) SaveTheme(ctx context.Context, t models.ThemeSettings) (models.ThemeSettings, error) {
	t, err := ValidateTheme(t)
	if err != nil {
		return models.ThemeSettings{}, err
	}

	current, err := s.themes.GetActiveTheme(ctx)
	switch err = remote("get theme", err); {
	case errors.Is(err, ErrNotFound):
		saved, err := s.themes.CreateTheme(ctx, t)
		return saved, remote("create theme", err)
	case err != nil:
		return models.ThemeSettings{}, err
	}

	t.ID = current.ID
	saved, err := s.themes.UpdateTheme(ctx, t)
	return saved, remote("update theme", err)
}

// SaveSiteURL stores the public site URL and regenerates the site files.
func (s *AdminService) SaveSiteURL(ctx context.Context, siteURL string) (SiteFiles, error) {
	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if !httpURL(siteURL) {
		return SiteFiles{}, invalid("site_url", "URL du site invalide")
	}

	t, err := s.Theme(ctx)
	if err != nil {
		return SiteFiles{}, err
	}
	t.SiteURL = siteURL
	if _, err := s.SaveTheme(ctx, t); err != nil {
		return SiteFiles{}, err
	}
	return s.sitemap.Regenerate(ctx, siteURL)
}

// RegenerateSitemap rebuilds the site files for the stored site URL.
func (s *AdminService) RegenerateSitemap(ctx context.Context) (SiteFiles, error) {
	t, err := s.Theme(ctx)
	if err != nil {
		return SiteFiles{}, err
	}
	return s.sitemap.Regenerate(ctx, t.SiteURL)
}

// Analytics returns per-product interactions over the last days days,
// busiest first.
func (s *AdminService) Analytics(ctx context.Context, days int) ([]models.ProductStats, error) {
	if !slices.Contains(AnalyticsPeriods, days) {
		return nil, invalid("days", "Période invalide (7, 30 ou 90 jours)")
	}
	stats, err := s.stats.ProductStats(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, remote("product stats", err)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].TotalInteractions != stats[j].TotalInteractions {
			return stats[i].TotalInteractions > stats[j].TotalInteractions
		}
		return stats[i].Name < stats[j].Name
	})
	return stats, nil
}
