package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

// dummyHandler records whether it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type fakeResolver struct {
	sessions map[string]models.Session
	roles    map[string]models.PrincipalKind
	err      error
	lookups  int
}

func (f *fakeResolver) Session(_ context.Context, token string) (models.Session, error) {
	f.lookups++
	if f.err != nil {
		return models.Session{}, f.err
	}
	s, ok := f.sessions[token]
	if !ok {
		return models.Session{}, fmt.Errorf("parse token: %w", service.ErrUnauthenticated)
	}
	return s, nil
}

func (f *fakeResolver) Classify(_ context.Context, s *models.Session) models.Principal {
	kind, ok := f.roles[s.UserID]
	if !ok {
		return models.AnonymousPrincipal
	}
	return models.Principal{Kind: kind, UserID: s.UserID, Email: s.Email, SessionID: s.ID}
}

func newResolver() *fakeResolver {
	return &fakeResolver{
		sessions: map[string]models.Session{
			"tok-user":   {ID: "s1", UserID: "u1", Email: "a@b.fr"},
			"tok-admin":  {ID: "s2", UserID: "u2", Email: "admin@b.fr"},
			"tok-norole": {ID: "s3", UserID: "u3"},
		},
		roles: map[string]models.PrincipalKind{"u1": models.Customer, "u2": models.Administrator},
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(req))

	req.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "from-cookie", TokenFromRequest(req))
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  models.PrincipalKind
	}{
		{"no token", "", models.Anonymous},
		{"unknown token", "forged", models.Anonymous},
		{"user", "tok-user", models.Customer},
		{"admin", "tok-admin", models.Administrator},
		{"missing role", "tok-norole", models.Anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := Authenticate(newResolver(), zap.NewNop())(dummy)

			req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			require.True(t, dummy.called)
			assert.Equal(t, tt.want, PrincipalFromContext(dummy.ctx).Kind)
		})
	}
}

func TestAuthenticate_LookupFailureIsAnonymous(t *testing.T) {
	resolver := newResolver()
	resolver.err = fmt.Errorf("get session: %w", errors.Join(service.ErrRemote, errors.New("db down")))

	dummy := &dummyHandler{}
	h := Authenticate(resolver, zap.NewNop())(dummy)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok-user"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, dummy.called)
	assert.Equal(t, models.AnonymousPrincipal, PrincipalFromContext(dummy.ctx))
	assert.Equal(t, 1, resolver.lookups)
}

func TestPrincipalFromContext(t *testing.T) {
	assert.Equal(t, models.AnonymousPrincipal, PrincipalFromContext(context.Background()))

	p := models.Principal{Kind: models.Customer, UserID: "u1"}
	assert.Equal(t, p, PrincipalFromContext(WithPrincipal(context.Background(), p)))
}

func TestGuards(t *testing.T) {
	user := models.Principal{Kind: models.Customer, UserID: "u1"}
	admin := models.Principal{Kind: models.Administrator, UserID: "u2"}

	tests := []struct {
		name       string
		guard      func(http.Handler) http.Handler
		principal  models.Principal
		html       bool
		wantCalled bool
		wantCode   int
		wantLoc    string
	}{
		{"user passes user guard", RequireUser("/"), user, false, true, http.StatusOK, ""},
		{"admin is not a user", RequireUser("/"), admin, false, false, http.StatusForbidden, ""},
		{"anonymous api call", RequireUser("/"), models.AnonymousPrincipal, false, false, http.StatusUnauthorized, ""},
		{"anonymous page redirected home", RequireUser("/"), models.AnonymousPrincipal, true, false, http.StatusSeeOther, "/"},
		{"admin passes admin guard", RequireAdmin("/admin/login"), admin, false, true, http.StatusOK, ""},
		{"user page redirected to admin login", RequireAdmin("/admin/login"), user, true, false, http.StatusSeeOther, "/admin/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := tt.guard(dummy)

			req := httptest.NewRequest(http.MethodGet, "/page", nil)
			if tt.html {
				req.Header.Set("Accept", "text/html,application/xhtml+xml")
			}
			req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, dummy.called)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
			if !tt.wantCalled && !tt.html {
				assert.Contains(t, rec.Body.String(), `"redirect"`)
			}
		})
	}
}
