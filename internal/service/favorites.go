package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/realtime"
)

// Favorite toggle notifications.
const (
	MsgFavoriteAdded   = "Produit ajouté aux favoris"
	MsgFavoriteRemoved = "Produit retiré des favoris"
	MsgFavoriteFailed  = "Une erreur est survenue"
)

// FavoriteRepository defines the favorite persistence operations.
type FavoriteRepository interface {
	ListFavoriteIDs(ctx context.Context, userID string) ([]string, error)
	ListFavoriteProducts(ctx context.Context, userID string) ([]models.Product, error)
	AddFavorite(ctx context.Context, userID, productID string) (models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, productID string) error
}

// favoriteSet is the loaded favorite ids of one user. version changes on
// every confirmed toggle so a reload fetched before it is discarded.
type favoriteSet struct {
	ids     map[string]struct{}
	version uint64
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// FavoritesService tracks the favorite set of each signed-in user. Writes
// are confirmed: the in-memory set changes only after storage acknowledged
// the create or delete.
type FavoritesService struct {
	repo     FavoriteRepository
	notifier *Notifier
	log      *zap.Logger

	mu   sync.Mutex
	sets map[string]*favoriteSet
}

// NewFavoritesService constructs a FavoritesService.
func NewFavoritesService(repo FavoriteRepository, notifier *Notifier, log *zap.Logger) *FavoritesService {
	return &FavoritesService{
		repo:     repo,
		notifier: notifier,
		log:      log,
		sets:     make(map[string]*favoriteSet),
	}
}

// Load fetches the favorite set of p in bulk. It is a no-op for anyone but a
// regular user. A failure is logged and the set stays unloaded, so the next
// access retries.
func (s *FavoritesService) Load(ctx context.Context, p models.Principal) {
	if !p.IsUser() {
		return
	}
	if _, err := s.load(ctx, p.UserID); err != nil {
		s.log.Warn("favorites prefetch failed", zap.String("user_id", p.UserID), zap.Error(err))
	}
}

func (s *FavoritesService) load(ctx context.Context, userID string) (*favoriteSet, error) {
	s.mu.Lock()
	set, ok := s.sets[userID]
	s.mu.Unlock()
	if ok {
		return set, nil
	}

	ids, err := s.repo.ListFavoriteIDs(ctx, userID)
	if err != nil {
		return nil, remote("load favorites", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sets[userID]; ok {
		return existing, nil
	}
	set = &favoriteSet{ids: idSet(ids)}
	s.sets[userID] = set
	return set, nil
}

// Watch refreshes every loaded set from storage on each favorites change
// until ctx is done, so writes made through another instance are picked up.
func (s *FavoritesService) Watch(ctx context.Context, hub *realtime.Hub) error {
	sub := hub.Subscribe(realtime.Favorites)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C:
			if !ok {
				return nil
			}
			s.reload(ctx)
		}
	}
}

// reload refetches the loaded sets. A set toggled while its fetch was in
// flight keeps its local state; a failed fetch unloads the set.
func (s *FavoritesService) reload(ctx context.Context) {
	s.mu.Lock()
	versions := make(map[string]uint64, len(s.sets))
	for userID, set := range s.sets {
		versions[userID] = set.version
	}
	s.mu.Unlock()

	for userID, version := range versions {
		ids, err := s.repo.ListFavoriteIDs(ctx, userID)
		if err != nil {
			s.log.Warn("favorites reload failed", zap.String("user_id", userID), zap.Error(err))
		}

		s.mu.Lock()
		if set, ok := s.sets[userID]; ok && set.version == version {
			if err != nil {
				delete(s.sets, userID)
			} else {
				set.ids = idSet(ids)
			}
		}
		s.mu.Unlock()
	}
}

// Forget drops the cached set of userID, e.g. on sign-out.
func (s *FavoritesService) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, userID)
}

// Toggle flips productID in the favorite set of p and reports the new
// state. Non-users get ErrUnauthenticated without any storage call. On
// failure the set is left unchanged and an error notification is pushed.
func (s *FavoritesService) Toggle(ctx context.Context, p models.Principal, productID string) (bool, error) {
	if !p.IsUser() {
		return false, fmt.Errorf("toggle favorite: %w", ErrUnauthenticated)
	}

	set, err := s.load(ctx, p.UserID)
	if err != nil {
		s.fail(p.UserID, err)
		return false, err
	}

	s.mu.Lock()
	_, favorited := set.ids[productID]
	s.mu.Unlock()

	if favorited {
		err = s.repo.RemoveFavorite(ctx, p.UserID, productID)
	} else {
		_, err = s.repo.AddFavorite(ctx, p.UserID, productID)
	}
	if err != nil {
		err = remote("toggle favorite", err)
		s.fail(p.UserID, err)
		return favorited, err
	}

	s.mu.Lock()
	if favorited {
		delete(set.ids, productID)
	} else {
		set.ids[productID] = struct{}{}
	}
	set.version++
	s.mu.Unlock()

	msg := MsgFavoriteAdded
	if favorited {
		msg = MsgFavoriteRemoved
	}
	s.notifier.Push(p.UserID, models.Notification{Message: msg, Kind: models.NotifySuccess})
	return !favorited, nil
}

func (s *FavoritesService) fail(userID string, err error) {
	level := s.log.Error
	if errors.Is(err, ErrNotFound) {
		level = s.log.Warn
	}
	level("favorite toggle failed", zap.String("user_id", userID), zap.Error(err))
	s.notifier.Push(userID, models.Notification{Message: MsgFavoriteFailed, Kind: models.NotifyError})
}

// IsFavorite reports whether productID is favorited by p, loading the set
// from storage on first access. A failed load reports false.
func (s *FavoritesService) IsFavorite(ctx context.Context, p models.Principal, productID string) bool {
	if !p.IsUser() {
		return false
	}
	set, err := s.load(ctx, p.UserID)
	if err != nil {
		s.log.Warn("favorites lookup failed", zap.String("user_id", p.UserID), zap.Error(err))
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := set.ids[productID]
	return ok
}

// Favorites returns the sorted product ids favorited by p.
func (s *FavoritesService) Favorites(ctx context.Context, p models.Principal) ([]string, error) {
	if !p.IsUser() {
		return nil, fmt.Errorf("list favorites: %w", ErrUnauthenticated)
	}
	set, err := s.load(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	ids := make([]string, 0, len(set.ids))
	for id := range set.ids {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)
	return ids, nil
}

// FavoriteProducts returns the products favorited by p, most recent first.
func (s *FavoritesService) FavoriteProducts(ctx context.Context, p models.Principal) ([]models.Product, error) {
	if !p.IsUser() {
		return nil, fmt.Errorf("list favorite products: %w", ErrUnauthenticated)
	}
	products, err := s.repo.ListFavoriteProducts(ctx, p.UserID)
	if err != nil {
		return nil, remote("list favorite products", err)
	}
	return products, nil
}

// Notification returns the visible notification of p, if any.
func (s *FavoritesService) Notification(p models.Principal) (models.Notification, bool) {
	if p.UserID == "" {
		return models.Notification{}, false
	}
	return s.notifier.Current(p.UserID)
}

// DismissNotification hides the visible notification of p.
func (s *FavoritesService) DismissNotification(p models.Principal) {
	if p.UserID != "" {
		s.notifier.Dismiss(p.UserID)
	}
}
