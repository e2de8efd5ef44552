// Package middleware provides HTTP middlewares for authentication, rate
// limiting and request logging.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

type ctxKey string

const principalKey ctxKey = "principal"

// SessionCookie is the cookie carrying the session token for browser clients.
const SessionCookie = "session"

// SessionResolver turns a token into a classified principal.
type SessionResolver interface {
	Session(ctx context.Context, token string) (models.Session, error)
	Classify(ctx context.Context, sess *models.Session) models.Principal
}

// TokenFromRequest extracts the session token from the Authorization bearer
// header, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate resolves the request's session and stores the resulting
// principal in the request context. Requests without a usable token proceed
// as anonymous; guards decide what anonymous viewers may reach.
func Authenticate(resolver SessionResolver, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := models.AnonymousPrincipal
			if tok := TokenFromRequest(r); tok != "" {
				sess, err := resolver.Session(r.Context(), tok)
				switch {
				case err == nil:
					p = resolver.Classify(r.Context(), &sess)
				case !errors.Is(err, service.ErrUnauthenticated):
					log.Error("session lookup failed", zap.Error(err))
				}
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal stored by Authenticate, or the
// anonymous principal.
func PrincipalFromContext(ctx context.Context) models.Principal {
	if p, ok := ctx.Value(principalKey).(models.Principal); ok {
		return p
	}
	return models.AnonymousPrincipal
}

// RequireUser admits only regular signed-in users. Others are sent to redirect.
func RequireUser(redirect string) func(http.Handler) http.Handler {
	return requirePrincipal(models.Principal.IsUser, redirect)
}

// RequireAdmin admits only administrators. Others are sent to redirect.
func RequireAdmin(redirect string) func(http.Handler) http.Handler {
	return requirePrincipal(models.Principal.IsAdmin, redirect)
}

func requirePrincipal(allowed func(models.Principal) bool, redirect string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if allowed(p) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, r, p, redirect)
		})
	}
}

// deny redirects page navigations and answers API calls with a JSON body
// naming the redirect target.
func deny(w http.ResponseWriter, r *http.Request, p models.Principal, redirect string) {
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}

	status, msg := http.StatusUnauthorized, "authentication required"
	if p.Kind != models.Anonymous {
		status, msg = http.StatusForbidden, "forbidden"
	}
	writeJSON(w, status, map[string]string{"error": msg, "redirect": redirect})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
