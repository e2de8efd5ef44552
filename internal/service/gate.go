package service

import (
	"context"
	"sync"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// Classifier resolves a session into a principal.
type Classifier interface {
	Classify(ctx context.Context, sess *models.Session) models.Principal
}

// Gate holds the principal of one long-lived client connection and
// re-classifies it on every session change.
type Gate struct {
	classifier Classifier

	mu        sync.RWMutex
	principal models.Principal
	gen       uint64
}

// NewGate returns an anonymous Gate.
func NewGate(c Classifier) *Gate {
	return &Gate{classifier: c, principal: models.AnonymousPrincipal}
}

// OnSessionChange handles sign-in, token refresh (sess != nil) and sign-out
// (sess == nil). A classification overtaken by a later change or a Logout
// is discarded.
func (g *Gate) OnSessionChange(ctx context.Context, sess *models.Session) models.Principal {
	g.mu.Lock()
	g.gen++
	gen := g.gen
	if sess == nil {
		g.principal = models.AnonymousPrincipal
		g.mu.Unlock()
		return models.AnonymousPrincipal
	}
	g.mu.Unlock()

	p := g.classifier.Classify(ctx, sess)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return g.principal
	}
	g.principal = p
	return p
}

// Logout clears the principal. No partial state is observable afterwards.
func (g *Gate) Logout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.principal = models.AnonymousPrincipal
}

// Principal returns a snapshot of the current principal.
func (g *Gate) Principal() models.Principal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.principal
}

// IsUser reports whether the current principal is a regular user.
func (g *Gate) IsUser() bool { return g.Principal().IsUser() }

// IsAdmin reports whether the current principal is an administrator.
func (g *Gate) IsAdmin() bool { return g.Principal().IsAdmin() }
