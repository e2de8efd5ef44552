package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/middleware"
	"github.com/craquetonbudget/bonsplans/internal/models"
)

// FavoritesService defines the favorite operations of a signed-in user.
type FavoritesService interface {
	Favorites(ctx context.Context, p models.Principal) ([]string, error)
	FavoriteProducts(ctx context.Context, p models.Principal) ([]models.Product, error)
	Toggle(ctx context.Context, p models.Principal, productID string) (bool, error)
	Notification(p models.Principal) (models.Notification, bool)
	DismissNotification(p models.Principal)
}

// FavoritesHandler serves the favorites page and the toggle action.
type FavoritesHandler struct {
	Favorites FavoritesService
	Log       *zap.Logger
}

// List handles GET /api/favorites.
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	ids, err := h.Favorites.Favorites(r.Context(), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	products, err := h.Favorites.FavoriteProducts(r.Context(), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		IDs      []string         `json:"ids"`
		Products []models.Product `json:"products"`
	}{ids, products})
}

// toggleResponse carries the new state and the notification it produced.
type toggleResponse struct {
	Favorite     bool                 `json:"favorite"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// Toggle handles POST /api/favorites/{id}/toggle.
func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	fav, err := h.Favorites.Toggle(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	res := toggleResponse{Favorite: fav}
	if n, ok := h.Favorites.Notification(p); ok {
		res.Notification = &n
	}
	writeJSON(w, http.StatusOK, res)
}

// Notification handles GET /api/notifications. No visible notification
// answers 204.
func (h *FavoritesHandler) Notification(w http.ResponseWriter, r *http.Request) {
	n, ok := h.Favorites.Notification(middleware.PrincipalFromContext(r.Context()))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DismissNotification handles DELETE /api/notifications.
func (h *FavoritesHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.Favorites.DismissNotification(middleware.PrincipalFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
