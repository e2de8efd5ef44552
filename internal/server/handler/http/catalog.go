package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/catalog"
	"github.com/craquetonbudget/bonsplans/internal/middleware"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

// CatalogService defines the storefront read operations.
type CatalogService interface {
	Browse(ctx context.Context, sel *catalog.Selection) (service.BrowseResult, error)
	Product(ctx context.Context, id string) (models.Product, error)
	Tags(ctx context.Context) ([]string, error)
	PriceRanges(ctx context.Context, tags []string) ([]models.PriceRange, error)
}

// EventRecorder stores storefront interactions.
type EventRecorder interface {
	Record(ctx context.Context, productID string, kind models.EventKind) error
}

// FavoriteChecker reports whether a product is favorited by the viewer.
type FavoriteChecker interface {
	IsFavorite(ctx context.Context, p models.Principal, productID string) bool
}

// CatalogHandler serves the public catalog.
type CatalogHandler struct {
	Catalog   CatalogService
	Events    EventRecorder
	Favorites FavoriteChecker
	Log       *zap.Logger
}

// productView decorates a product with its derived display fields.
type productView struct {
	models.Product
	OriginalPrice   *decimal.Decimal `json:"original_price,omitempty"`
	Path            string           `json:"path"`
	MetaDescription string           `json:"meta_description"`
	MetaKeywords    string           `json:"meta_keywords"`
	Favorite        bool             `json:"favorite"`
}

func (h *CatalogHandler) view(r *http.Request, p models.Product) productView {
	desc := p.Name
	if p.Description != nil {
		desc = *p.Description
	}
	v := productView{
		Product:         p,
		OriginalPrice:   p.OriginalPrice(),
		Path:            catalog.ProductPath(p.ID, p.Name),
		MetaDescription: catalog.MetaDescription(desc),
		MetaKeywords:    catalog.MetaKeywords(p.Tags),
	}
	if h.Favorites != nil {
		v.Favorite = h.Favorites.IsFavorite(r.Context(), middleware.PrincipalFromContext(r.Context()), p.ID)
	}
	return v
}

// queryTags reads tags from a comma separated "tags" parameter and any
// repeated "tag" parameters.
func queryTags(r *http.Request) []string {
	q := r.URL.Query()
	var tags []string
	if raw := q.Get("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			tags = append(tags, strings.TrimSpace(t))
		}
	}
	return append(tags, q["tag"]...)
}

// selectionFromQuery builds the filter state from ?tags=&min=&max=&q=.
// A price range needs both bounds.
func selectionFromQuery(r *http.Request) (*catalog.Selection, error) {
	q := r.URL.Query()
	sel := &catalog.Selection{}
	sel.SetTags(queryTags(r)...)
	sel.SetSearch(strings.TrimSpace(q.Get("q")))

	minRaw, maxRaw := q.Get("min"), q.Get("max")
	if minRaw == "" && maxRaw == "" {
		return sel, nil
	}
	lo, errLo := strconv.ParseInt(minRaw, 10, 64)
	hi, errHi := strconv.ParseInt(maxRaw, 10, 64)
	if errLo != nil || errHi != nil || lo > hi {
		return nil, &service.ValidationError{Field: "price_range", Message: "Tranche de prix invalide"}
	}
	sel.SelectRange(&models.PriceRange{Min: lo, Max: hi})
	return sel, nil
}

// Products handles GET /api/products.
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	res, err := h.Catalog.Browse(r.Context(), sel)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	views := make([]productView, 0, len(res.Products))
	for _, p := range res.Products {
		views = append(views, h.view(r, p))
	}
	writeJSON(w, http.StatusOK, struct {
		service.BrowseResult
		Products []productView `json:"products"`
	}{BrowseResult: res, Products: views})
}

// Product handles GET /api/products/{id}.
func (h *CatalogHandler) Product(w http.ResponseWriter, r *http.Request) {
	h.writeProduct(w, r, chi.URLParam(r, "id"))
}

// ProductByPath handles GET /api/product/{id}/{slug}, the canonical
// storefront path.
func (h *CatalogHandler) ProductByPath(w http.ResponseWriter, r *http.Request) {
	h.writeProduct(w, r, catalog.IDFromPath(r.URL.Path))
}

func (h *CatalogHandler) writeProduct(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.Catalog.Product(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, p))
}

// Buy handles GET /api/products/{id}/buy: it records the click and sends
// the viewer to the marketplace. ?from=home marks clicks from the grid.
func (h *CatalogHandler) Buy(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	kind := models.EventBuyClick
	if r.URL.Query().Get("from") == "home" {
		kind = models.EventHomepageBuyClick
	}
	if err := h.Events.Record(r.Context(), p.ID, kind); err != nil {
		h.Log.Warn("failed to record click", zap.String("product_id", p.ID), zap.Error(err))
	}
	http.Redirect(w, r, p.PurchaseURL, http.StatusFound)
}

// Event handles POST /api/products/{id}/events with {"type": "view"}.
func (h *CatalogHandler) Event(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type models.EventKind `json:"type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Events.Record(r.Context(), chi.URLParam(r, "id"), req.Type); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tags handles GET /api/tags.
func (h *CatalogHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Catalog.Tags(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tags": tags})
}

// PriceRanges handles GET /api/price-ranges?tags=.
func (h *CatalogHandler) PriceRanges(w http.ResponseWriter, r *http.Request) {
	sel := &catalog.Selection{}
	sel.SetTags(queryTags(r)...)
	ranges, err := h.Catalog.PriceRanges(r.Context(), sel.Tags())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.PriceRange{"price_ranges": ranges})
}
