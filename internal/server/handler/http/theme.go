package http

import (
	"net/http"

	"github.com/craquetonbudget/bonsplans/internal/config"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

// ThemeReader exposes the theme currently applied by the propagation
// service.
type ThemeReader interface {
	Current() models.ThemeSettings
}

// ThemeHandler serves the active theme as JSON and as a stylesheet.
type ThemeHandler struct {
	Theme ThemeReader
}

// JSON handles GET /api/theme.
func (h *ThemeHandler) JSON(w http.ResponseWriter, _ *http.Request) {
	t := h.Theme.Current()
	writeJSON(w, http.StatusOK, struct {
		Theme  models.ThemeSettings `json:"theme"`
		Tokens service.Tokens       `json:"tokens"`
	}{t, service.TokensFor(t)})
}

// CSS handles GET /api/theme.css.
func (h *ThemeHandler) CSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(service.TokensFor(h.Theme.Current()).CSS()))
}

// SiteHandler serves the storefront shell configuration.
type SiteHandler struct {
	Theme ThemeReader
	Ads   config.AdsOptions
}

// Site handles GET /api/site.
func (h *SiteHandler) Site(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Tokens service.Tokens    `json:"tokens"`
		Ads    config.AdsOptions `json:"ads"`
	}{service.TokensFor(h.Theme.Current()), h.Ads})
}
