package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/middleware"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

// AuthService defines the account operations required by the HTTP handlers.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) (service.SignedIn, error)
	SignIn(ctx context.Context, email, password string) (service.SignedIn, error)
	SignOut(ctx context.Context, sessionID string) error
	UpdatePassword(ctx context.Context, userID, password, confirm string) error
}

// SessionTracker keeps per-user state alive between sign-in and sign-out.
type SessionTracker interface {
	Load(ctx context.Context, p models.Principal)
	Forget(userID string)
}

// AuthHandler handles sign-up, sign-in, sign-out and password changes.
type AuthHandler struct {
	AuthService AuthService
	Sessions    SessionTracker
	Log         *zap.Logger
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) signedIn(w http.ResponseWriter, r *http.Request, res service.SignedIn, status int) {
	if h.Sessions != nil {
		h.Sessions.Load(r.Context(), res.Principal)
	}
	setSessionCookie(w, r, res.Token, res.Session.ExpiresAt)
	writeJSON(w, status, res)
}

// SignUp handles POST /api/auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.AuthService.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.signedIn(w, r, res, http.StatusCreated)
}

// SignIn handles POST /api/auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.AuthService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.signedIn(w, r, res, http.StatusOK)
}

// SignOut handles POST /api/auth/signout. Signing out without a session
// is not an error.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p.SessionID != "" {
		if err := h.AuthService.SignOut(r.Context(), p.SessionID); err != nil {
			writeError(w, h.Log, err)
			return
		}
	}
	if h.Sessions != nil && p.UserID != "" {
		h.Sessions.Forget(p.UserID)
	}
	setSessionCookie(w, r, "", time.Unix(0, 0))
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]models.Principal{
		"principal": middleware.PrincipalFromContext(r.Context()),
	})
}

// UpdatePassword handles PUT /api/auth/password.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p.Kind == models.Anonymous {
		writeError(w, h.Log, service.ErrUnauthenticated)
		return
	}
	var req struct {
		Password string `json:"password"`
		Confirm  string `json:"confirm"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.AuthService.UpdatePassword(r.Context(), p.UserID, req.Password, req.Confirm); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
