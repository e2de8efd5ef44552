package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/catalog"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

const (
	maxUploadSize = 10 << 20
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AdminService defines the back-office operations.
type AdminService interface {
	CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, id string, in models.ProductInput) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) (models.Product, error)
	UploadImage(ctx context.Context, filename string, data io.Reader) (string, error)
	RemoveImage(ctx context.Context, imageURL string) error
	ExportProducts(ctx context.Context, w io.Writer) error
	TagCounts(ctx context.Context) ([]models.TagCount, error)
	AddTag(ctx context.Context, tag string) (int64, error)
	DeleteTag(ctx context.Context, tag string) (int64, error)
	Theme(ctx context.Context) (models.ThemeSettings, error)
	SaveTheme(ctx context.Context, t models.ThemeSettings) (models.ThemeSettings, error)
	SaveSiteURL(ctx context.Context, siteURL string) (service.SiteFiles, error)
	RegenerateSitemap(ctx context.Context) (service.SiteFiles, error)
	Analytics(ctx context.Context, days int) ([]models.ProductStats, error)
}

// AdminHandler serves the back office. Every route sits behind
// middleware.RequireAdmin.
type AdminHandler struct {
	Admin   AdminService
	Catalog CatalogService
	Log     *zap.Logger
}

// Products handles GET /api/admin/products.
func (h *AdminHandler) Products(w http.ResponseWriter, r *http.Request) {
	res, err := h.Catalog.Browse(r.Context(), &catalog.Selection{})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.Product{"products": res.Products})
}

// CreateProduct handles POST /api/admin/products.
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.Admin.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProduct handles PUT /api/admin/products/{id}.
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.Admin.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /api/admin/products/{id}.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Admin.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /api/admin/images, a multipart form with a
// "file" field.
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid upload", Field: "file"})
		return
	}
	defer file.Close()

	u, err := h.Admin.UploadImage(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": u})
}

// RemoveImage handles DELETE /api/admin/images?url=.
func (h *AdminHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.RemoveImage(r.Context(), r.URL.Query().Get("url")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/admin/products/export.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.Admin.ExportProducts(r.Context(), &buf); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="produits.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// Tags handles GET /api/admin/tags.
func (h *AdminHandler) Tags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Admin.TagCounts(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.TagCount{"tags": counts})
}

// AddTag handles POST /api/admin/tags with {"name": "..."}.
func (h *AdminHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.Admin.AddTag(r.Context(), req.Name)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// DeleteTag handles DELETE /api/admin/tags/{tag}.
func (h *AdminHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	n, err := h.Admin.DeleteTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Theme handles GET /api/admin/theme.
func (h *AdminHandler) Theme(w http.ResponseWriter, r *http.Request) {
	t, err := h.Admin.Theme(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SaveTheme handles PUT /api/admin/theme.
func (h *AdminHandler) SaveTheme(w http.ResponseWriter, r *http.Request) {
	var t models.ThemeSettings
	if !decodeJSON(w, r, &t) {
		return
	}
	saved, err := h.Admin.SaveTheme(r.Context(), t)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// SaveSiteURL handles PUT /api/admin/settings/site-url with {"site_url": "..."}.
func (h *AdminHandler) SaveSiteURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SiteURL string `json:"site_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	files, err := h.Admin.SaveSiteURL(r.Context(), req.SiteURL)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// RegenerateSitemap handles POST /api/admin/sitemap.
func (h *AdminHandler) RegenerateSitemap(w http.ResponseWriter, r *http.Request) {
	files, err := h.Admin.RegenerateSitemap(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// Analytics handles GET /api/admin/analytics?days=7|30|90 (default 7).
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid days", Field: "days"})
			return
		}
		days = n
	}
	stats, err := h.Admin.Analytics(r.Context(), days)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.ProductStats{"products": stats})
}
