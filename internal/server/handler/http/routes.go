// Package http provides HTTP routing and handlers for the bonsplans
// storefront and back office.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/middleware"
)

// Auth endpoints accept authLimit attempts per client per authWindow.
const (
	authLimit  = 10
	authWindow = time.Minute
)

// Handlers groups the route handlers mounted by NewRouter.
type Handlers struct {
	Site      *SiteHandler
	Theme     *ThemeHandler
	Socket    http.Handler
	Catalog   *CatalogHandler
	Auth      *AuthHandler
	Favorites *FavoritesHandler
	Admin     *AdminHandler
}

// NewRouter constructs the HTTP handler serving the API under /api.
//
// Middleware chain (applied in order):
//  1. RequestID, RealIP and Recoverer from chi
//  2. WithRequestLogging(logger)
//  3. Authenticate(resolver), storing the principal in the context
//
// Favorites and notifications require a regular user and send others to
// "/"; the back office requires an administrator and sends others to
// "/admin/login". When limiter is nil auth endpoints are not rate limited.
func NewRouter(
	h Handlers,
	resolver middleware.SessionResolver,
	limiter middleware.Counter,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.Authenticate(resolver, logger))

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Get("/site", h.Site.Site)
		r.Get("/theme", h.Theme.JSON)
		r.Get("/theme.css", h.Theme.CSS)
		r.Method(http.MethodGet, "/theme/ws", h.Socket)

		r.Get("/products", h.Catalog.Products)
		r.Get("/products/{id}", h.Catalog.Product)
		r.Get("/products/{id}/buy", h.Catalog.Buy)
		r.Post("/products/{id}/events", h.Catalog.Event)
		r.Get("/product/{id}/*", h.Catalog.ProductByPath)
		r.Get("/tags", h.Catalog.Tags)
		r.Get("/price-ranges", h.Catalog.PriceRanges)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if limiter != nil {
					r.Use(middleware.RateLimit(limiter, authLimit, authWindow, logger))
				}
				r.Post("/signup", h.Auth.SignUp)
				r.Post("/signin", h.Auth.SignIn)
			})
			r.Post("/signout", h.Auth.SignOut)
			r.Get("/session", h.Auth.Session)
			r.Put("/password", h.Auth.UpdatePassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser("/"))
			r.Get("/favorites", h.Favorites.List)
			r.Post("/favorites/{id}/toggle", h.Favorites.Toggle)
			r.Get("/notifications", h.Favorites.Notification)
			r.Delete("/notifications", h.Favorites.DismissNotification)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin("/admin/login"))
			r.Get("/products", h.Admin.Products)
			r.Post("/products", h.Admin.CreateProduct)
			r.Get("/products/export", h.Admin.Export)
			r.Put("/products/{id}", h.Admin.UpdateProduct)
			r.Delete("/products/{id}", h.Admin.DeleteProduct)
			r.Post("/images", h.Admin.UploadImage)
			r.Delete("/images", h.Admin.RemoveImage)
			r.Get("/tags", h.Admin.Tags)
			r.Post("/tags", h.Admin.AddTag)
			r.Delete("/tags/{tag}", h.Admin.DeleteTag)
			r.Get("/theme", h.Admin.Theme)
			r.Put("/theme", h.Admin.SaveTheme)
			r.Put("/settings/site-url", h.Admin.SaveSiteURL)
			r.Post("/sitemap", h.Admin.RegenerateSitemap)
			r.Get("/analytics", h.Admin.Analytics)
		})
	})

	return r
}
