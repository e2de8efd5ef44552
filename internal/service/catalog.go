package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/catalog"
	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/realtime"
)

// CatalogTTL bounds how long the product list is served from memory.
const CatalogTTL = 5 * time.Minute

// ProductReader defines the read side of product persistence.
type ProductReader interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (models.Product, error)
}

type catalogEntry struct {
	products  []models.Product
	fetchedAt time.Time
}

// CatalogService serves the storefront catalog from a TTL cache that is
// dropped on every product change.
type CatalogService struct {
	repo ProductReader
	ttl  time.Duration
	log  *zap.Logger
	now  func() time.Time

	mu    sync.RWMutex
	entry *catalogEntry
	gen   uint64
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo ProductReader, ttl time.Duration, log *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, ttl: ttl, log: log, now: time.Now}
}

func (s *CatalogService) cached() ([]models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry != nil && s.now().Sub(s.entry.fetchedAt) < s.ttl {
		return s.entry.products, true
	}
	return nil, false
}

// Products returns every product, newest first. A fetch overtaken by an
// Invalidate is returned to its caller but not cached.
func (s *CatalogService) Products(ctx context.Context) ([]models.Product, error) {
	if products, ok := s.cached(); ok {
		return slices.Clone(products), nil
	}

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, remote("list products", err)
	}

	s.mu.Lock()
	if s.gen == gen {
		s.entry = &catalogEntry{products: products, fetchedAt: s.now()}
	}
	s.mu.Unlock()
	return slices.Clone(products), nil
}

// Invalidate drops the cached product list and any fetch in flight.
func (s *CatalogService) Invalidate() {
	s.mu.Lock()
	s.entry = nil
	s.gen++
	s.mu.Unlock()
}

// Watch invalidates the cache on every products change until ctx is done.
func (s *CatalogService) Watch(ctx context.Context, hub *realtime.Hub) error {
	sub := hub.Subscribe(realtime.Products)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C:
			if !ok {
				return nil
			}
			s.log.Debug("catalog cache invalidated")
			s.Invalidate()
		}
	}
}

// Product fetches one product from storage. An unknown id yields ErrNotFound.
func (s *CatalogService) Product(ctx context.Context, id string) (models.Product, error) {
	if id == "" {
		return models.Product{}, fmt.Errorf("get product: %w", ErrNotFound)
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		err = remote("get product", err)
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("product fetch failed", zap.String("product_id", id), zap.Error(err))
		}
		return models.Product{}, err
	}
	return p, nil
}

// Tags returns the tag vocabulary of the catalog.
func (s *CatalogService) Tags(ctx context.Context) ([]string, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Tags(products), nil
}

// PriceRanges returns the populated price buckets for the products carrying
// every tag in tags.
func (s *CatalogService) PriceRanges(ctx context.Context, tags []string) ([]models.PriceRange, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.ComputeRanges(products, tags), nil
}

// BrowseResult is one storefront page.
type BrowseResult struct {
	Products     []models.Product    `json:"products"`
	PriceRanges  []models.PriceRange `json:"price_ranges"`
	Tags         []string            `json:"tags"`
	SelectedTags []string            `json:"selected_tags"`
	PriceRange   *models.PriceRange  `json:"price_range,omitempty"`
	Search       string              `json:"search,omitempty"`
}

// Browse applies sel to the catalog.
func (s *CatalogService) Browse(ctx context.Context, sel *catalog.Selection) (BrowseResult, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return BrowseResult{}, err
	}
	selected := sel.Tags()
	if selected == nil {
		selected = []string{}
	}
	return BrowseResult{
		Products:     sel.Apply(products),
		PriceRanges:  sel.Ranges(products),
		Tags:         catalog.Tags(products),
		SelectedTags: selected,
		PriceRange:   sel.Range(),
		Search:       sel.Search(),
	}, nil
}
