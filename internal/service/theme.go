package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/realtime"
)

// DefaultTheme returns the built-in theme applied before the stored one is
// known and whenever it cannot be fetched.
func DefaultTheme() models.ThemeSettings {
	return models.ThemeSettings{
		SiteTitle:         "CraqueTonBudget",
		PrimaryColor:      "#6366f1",
		PrimaryHoverColor: "#4f46e5",
		SecondaryColor:    "#ec4899",
		AccentColor:       "#8b5cf6",
		SiteURL:           "https://craquetabudget.com",
	}
}

// withDefaults fills blank fields of t from DefaultTheme.
func withDefaults(t models.ThemeSettings) models.ThemeSettings {
	d := DefaultTheme()
	for _, f := range []struct{ dst, def *string }{
		{&t.SiteTitle, &d.SiteTitle},
		{&t.PrimaryColor, &d.PrimaryColor},
		{&t.PrimaryHoverColor, &d.PrimaryHoverColor},
		{&t.SecondaryColor, &d.SecondaryColor},
		{&t.AccentColor, &d.AccentColor},
		{&t.SiteURL, &d.SiteURL},
	} {
		if strings.TrimSpace(*f.dst) == "" {
			*f.dst = *f.def
		}
	}
	return t
}

// Tokens is the rendering projection of a theme.
type Tokens struct {
	Title      string            `json:"title"`
	Icon       string            `json:"icon,omitempty"`
	FaviconURL string            `json:"favicon_url,omitempty"`
	SiteURL    string            `json:"site_url"`
	Vars       map[string]string `json:"vars"`
}

// TokensFor projects t onto CSS custom properties.
func TokensFor(t models.ThemeSettings) Tokens {
	return Tokens{
		Title:      t.SiteTitle,
		Icon:       t.Icon,
		FaviconURL: t.FaviconURL,
		SiteURL:    t.SiteURL,
		Vars: map[string]string{
			"--primary":       t.PrimaryColor,
			"--primary-hover": t.PrimaryHoverColor,
			"--secondary":     t.SecondaryColor,
			"--accent":        t.AccentColor,
		},
	}
}

// CSS renders the variables as a :root rule.
func (t Tokens) CSS() string {
	names := make([]string, 0, len(t.Vars))
	for name := range t.Vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, name := range names {
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(t.Vars[name])
		b.WriteString(";\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// TokenSink receives every applied token set.
type TokenSink interface {
	ApplyTokens(Tokens)
}

// ThemeReader defines the read side of theme persistence.
type ThemeReader interface {
	GetActiveTheme(ctx context.Context) (models.ThemeSettings, error)
}

// ThemeService propagates the active theme to a TokenSink and keeps it in
// sync with theme_settings changes.
type ThemeService struct {
	repo ThemeReader
	hub  *realtime.Hub
	sink TokenSink
	log  *zap.Logger

	mu      sync.RWMutex
	current models.ThemeSettings
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewThemeService constructs a ThemeService.
func NewThemeService(repo ThemeReader, hub *realtime.Hub, sink TokenSink, log *zap.Logger) *ThemeService {
	return &ThemeService{repo: repo, hub: hub, sink: sink, log: log, current: DefaultTheme()}
}

func (s *ThemeService) apply(t models.ThemeSettings) {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	s.sink.ApplyTokens(TokensFor(t))
}

// Start applies the default theme synchronously, then fetches the active
// theme in the background and re-fetches it on every theme change until
// ctx is done or Stop is called.
func (s *ThemeService) Start(ctx context.Context) {
	s.apply(DefaultTheme())

	sub := s.hub.Subscribe(realtime.ThemeSettings)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer sub.Close()

		s.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				s.Refresh(ctx)
			}
		}
	}()
}

// Stop unsubscribes and waits for the background loop to exit.
func (s *ThemeService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run is Start followed by Stop once ctx is done.
func (s *ThemeService) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

// Refresh fetches the active theme and applies it. A failed fetch falls back
// to the default theme and is only logged.
func (s *ThemeService) Refresh(ctx context.Context) {
	t, err := s.repo.GetActiveTheme(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if err = remote("fetch theme", err); errors.Is(err, ErrNotFound) {
			s.log.Info("no active theme, using defaults")
		} else {
			s.log.Error("theme fetch failed", zap.Error(err))
		}
		s.apply(DefaultTheme())
		return
	}
	s.apply(withDefaults(t))
}

// Current returns the last applied theme.
func (s *ThemeService) Current() models.ThemeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
