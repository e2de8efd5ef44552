package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/catalog"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/service"
)

var (
	customer = models.Principal{Kind: models.Customer, UserID: "u1", Email: "a@b.fr", SessionID: "s1"}
	admin    = models.Principal{Kind: models.Administrator, UserID: "u2", Email: "admin@b.fr", SessionID: "s2"}
)

// fakeResolver maps tokens to principals.
type fakeResolver struct {
	mu     sync.Mutex
	tokens map[string]models.Principal
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{tokens: map[string]models.Principal{"tok-user": customer, "tok-admin": admin}}
}

func (f *fakeResolver) Session(_ context.Context, token string) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.tokens[token]
	if !ok {
		return models.Session{}, fmt.Errorf("parse token: %w", service.ErrUnauthenticated)
	}
	return models.Session{ID: p.SessionID, UserID: p.UserID, Email: p.Email}, nil
}

func (f *fakeResolver) Classify(_ context.Context, s *models.Session) models.Principal {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.tokens {
		if p.SessionID == s.ID {
			return p
		}
	}
	return models.AnonymousPrincipal
}

func product(id, name string, price int64, tags ...string) models.Product {
	return models.Product{
		ID: id, Name: name, Price: decimal.NewFromInt(price), Tags: tags,
		PurchaseURL: "https://www.amazon.fr/dp/" + id,
	}
}

type fakeCatalog struct {
	products []models.Product
	lastSel  *catalog.Selection
	err      error
}

func (f *fakeCatalog) Browse(_ context.Context, sel *catalog.Selection) (service.BrowseResult, error) {
	f.lastSel = sel
	if f.err != nil {
		return service.BrowseResult{}, f.err
	}
	return service.BrowseResult{
		Products:     sel.Apply(f.products),
		PriceRanges:  sel.Ranges(f.products),
		Tags:         catalog.Tags(f.products),
		SelectedTags: sel.Tags(),
		PriceRange:   sel.Range(),
	}, nil
}

func (f *fakeCatalog) Product(_ context.Context, id string) (models.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, fmt.Errorf("get product: %w", service.ErrNotFound)
}

func (f *fakeCatalog) Tags(context.Context) ([]string, error) {
	return catalog.Tags(f.products), f.err
}

func (f *fakeCatalog) PriceRanges(_ context.Context, tags []string) ([]models.PriceRange, error) {
	return catalog.ComputeRanges(f.products, tags), f.err
}

type recordedEvent struct {
	ProductID string
	Kind      models.EventKind
}

type fakeEvents struct {
	events []recordedEvent
	err    error
}

func (f *fakeEvents) Record(_ context.Context, productID string, kind models.EventKind) error {
	if f.err != nil {
		return f.err
	}
	if !kind.Valid() {
		return &service.ValidationError{Field: "type", Message: "type d'événement inconnu"}
	}
	f.events = append(f.events, recordedEvent{productID, kind})
	return nil
}

type fakeAuth struct {
	SignUpFunc         func(ctx context.Context, email, password string) (service.SignedIn, error)
	SignInFunc         func(ctx context.Context, email, password string) (service.SignedIn, error)
	signedOut          []string
	passwordUpdates    []string
	UpdatePasswordFunc func(ctx context.Context, userID, password, confirm string) error
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (service.SignedIn, error) {
	return f.SignUpFunc(ctx, email, password)
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (service.SignedIn, error) {
	return f.SignInFunc(ctx, email, password)
}

func (f *fakeAuth) SignOut(_ context.Context, sessionID string) error {
	f.signedOut = append(f.signedOut, sessionID)
	return nil
}

func (f *fakeAuth) UpdatePassword(ctx context.Context, userID, password, confirm string) error {
	f.passwordUpdates = append(f.passwordUpdates, userID)
	if f.UpdatePasswordFunc != nil {
		return f.UpdatePasswordFunc(ctx, userID, password, confirm)
	}
	return nil
}

type fakeTracker struct {
	loaded    []string
	forgotten []string
}

func (f *fakeTracker) Load(_ context.Context, p models.Principal) { f.loaded = append(f.loaded, p.UserID) }
func (f *fakeTracker) Forget(userID string) { f.forgotten = append(f.forgotten, userID) }

type fakeFavorites struct {
	sets map[string]map[string]bool
	note map[string]models.Notification
}

func newFakeFavorites() *fakeFavorites {
	return &fakeFavorites{sets: map[string]map[string]bool{}, note: map[string]models.Notification{}}
}

func (f *fakeFavorites) IsFavorite(_ context.Context, p models.Principal, productID string) bool {
	return f.sets[p.UserID][productID]
}

func (f *fakeFavorites) Favorites(_ context.Context, p models.Principal) ([]string, error) {
	var ids []string
	for id := range f.sets[p.UserID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeFavorites) FavoriteProducts(context.Context, models.Principal) ([]models.Product, error) {
	return nil, nil
}

func (f *fakeFavorites) Toggle(_ context.Context, p models.Principal, productID string) (bool, error) {
	if !p.IsUser() {
		return false, fmt.Errorf("toggle favorite: %w", service.ErrUnauthenticated)
	}
	if f.sets[p.UserID] == nil {
		f.sets[p.UserID] = map[string]bool{}
	}
	now := !f.sets[p.UserID][productID]
	f.sets[p.UserID][productID] = now
	f.note[p.UserID] = models.Notification{Message: service.MsgFavoriteAdded, Kind: models.NotifySuccess}
	return now, nil
}

func (f *fakeFavorites) Notification(p models.Principal) (models.Notification, bool) {
	n, ok := f.note[p.UserID]
	return n, ok
}

func (f *fakeFavorites) DismissNotification(p models.Principal) { delete(f.note, p.UserID) }

type fakeTheme struct{ t models.ThemeSettings }

func (f fakeTheme) Current() models.ThemeSettings { return f.t }

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (f *fakeCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

// fakeAdmin implements AdminService with func fields; nil funcs return
// zero values.
type fakeAdmin struct {
	UploadImageFunc func(ctx context.Context, filename string, data io.Reader) (string, error)
	ExportFunc      func(ctx context.Context, w io.Writer) error
	AnalyticsFunc   func(ctx context.Context, days int) ([]models.ProductStats, error)
	AddTagFunc      func(ctx context.Context, tag string) (int64, error)
	SaveSiteURLFunc func(ctx context.Context, siteURL string) (service.SiteFiles, error)
	deleted         []string
}

func (f *fakeAdmin) CreateProduct(_ context.Context, in models.ProductInput) (models.Product, error) {
	if _, err := service.ValidateProduct(in); err != nil {
		return models.Product{}, err
	}
	return models.Product{ID: "new", Name: in.Name}, nil
}

func (f *fakeAdmin) UpdateProduct(_ context.Context, id string, in models.ProductInput) (models.Product, error) {
	return models.Product{ID: id, Name: in.Name}, nil
}

func (f *fakeAdmin) DeleteProduct(_ context.Context, id string) (models.Product, error) {
	f.deleted = append(f.deleted, id)
	return models.Product{ID: id}, nil
}

func (f *fakeAdmin) UploadImage(ctx context.Context, filename string, data io.Reader) (string, error) {
	return f.UploadImageFunc(ctx, filename, data)
}

func (f *fakeAdmin) RemoveImage(context.Context, string) error { return nil }

func (f *fakeAdmin) ExportProducts(ctx context.Context, w io.Writer) error {
	return f.ExportFunc(ctx, w)
}

func (f *fakeAdmin) TagCounts(context.Context) ([]models.TagCount, error) {
	return []models.TagCount{{Name: "audio", Count: 2}}, nil
}

func (f *fakeAdmin) AddTag(ctx context.Context, tag string) (int64, error) {
	return f.AddTagFunc(ctx, tag)
}

func (f *fakeAdmin) DeleteTag(context.Context, string) (int64, error) { return 1, nil }

func (f *fakeAdmin) Theme(context.Context) (models.ThemeSettings, error) {
	return service.DefaultTheme(), nil
}

func (f *fakeAdmin) SaveTheme(_ context.Context, t models.ThemeSettings) (models.ThemeSettings, error) {
	return service.ValidateTheme(t)
}

func (f *fakeAdmin) SaveSiteURL(ctx context.Context, siteURL string) (service.SiteFiles, error) {
	return f.SaveSiteURLFunc(ctx, siteURL)
}

func (f *fakeAdmin) RegenerateSitemap(context.Context) (service.SiteFiles, error) {
	return service.SiteFiles{SitemapURL: "https://cdn.test/sitemap.xml"}, nil
}

func (f *fakeAdmin) Analytics(ctx context.Context, days int) ([]models.ProductStats, error) {
	return f.AnalyticsFunc(ctx, days)
}

// testServer wires every handler with fakes behind the real router.
type testServer struct {
	router    http.Handler
	catalog   *fakeCatalog
	events    *fakeEvents
	auth      *fakeAuth
	tracker   *fakeTracker
	favorites *fakeFavorites
	admin     *fakeAdmin
	resolver  *fakeResolver
}

func newTestServer() *testServer {
	ts := &testServer{
		catalog: &fakeCatalog{products: []models.Product{
			product("p1", "Casque Audio", 19, "audio"),
			product("p2", "Enceinte", 45, "audio", "promo"),
			product("p3", "Crème Solaire", 80, "beauté"),
		}},
		events:    &fakeEvents{},
		auth:      &fakeAuth{},
		tracker:   &fakeTracker{},
		favorites: newFakeFavorites(),
		admin:     &fakeAdmin{},
		resolver:  newFakeResolver(),
	}
	log := zap.NewNop()
	theme := fakeTheme{t: service.DefaultTheme()}
	ts.router = NewRouter(Handlers{
		Site:      &SiteHandler{Theme: theme},
		Theme:     &ThemeHandler{Theme: theme},
		Socket:    NewThemeSocket(ts.resolver, log),
		Catalog:   &CatalogHandler{Catalog: ts.catalog, Events: ts.events, Favorites: ts.favorites, Log: log},
		Auth:      &AuthHandler{AuthService: ts.auth, Sessions: ts.tracker, Log: log},
		Favorites: &FavoritesHandler{Favorites: ts.favorites, Log: log},
		Admin:     &AdminHandler{Admin: ts.admin, Catalog: ts.catalog, Log: log},
	}, ts.resolver, &fakeCounter{counts: map[string]int64{}}, log)
	return ts
}

// do sends a request through the router, authenticated with token when set.
func (ts *testServer) do(method, target, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}
