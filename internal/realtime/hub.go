// Package realtime fans out table change notifications to in-process
// subscribers.
package realtime

import (
	"sync"
	"time"
)

// Collection names match the table names carried by change notifications.
const (
	Products      = "products"
	ThemeSettings = "theme_settings"
	Favorites     = "favorites"
)

// Change signals that a collection was modified and should be re-fetched.
type Change struct {
	Collection string
	At         time.Time
}

// Hub delivers changes to subscribers of a collection. Every subscriber has
// a buffer of one change: a pending change already means "re-fetch", so
// further publications are coalesced into it instead of blocking.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription is a live registration on a collection.
type Subscription struct {
	// C receives coalesced changes. It is closed by Close.
	C <-chan Change

	c          chan Change
	hub        *Hub
	collection string
	once       sync.Once
}

// Subscribe registers interest in collection.
func (h *Hub) Subscribe(collection string) *Subscription {
	c := make(chan Change, 1)
	s := &Subscription{C: c, c: c, hub: h, collection: collection}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[collection]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[collection] = set
	}
	set[s] = struct{}{}
	return s
}

// Close unregisters the subscription and closes C. It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if set, ok := s.hub.subs[s.collection]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.collection)
			}
		}
		close(s.c)
	})
}

// Publish notifies every subscriber of collection. It never blocks.
func (h *Hub) Publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publishLocked(collection, time.Now())
}

// PublishAll notifies the subscribers of every collection. It is used after
// a lost connection, when individual notifications may have been missed.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for collection := range h.subs {
		h.publishLocked(collection, now)
	}
}

func (h *Hub) publishLocked(collection string, at time.Time) {
	for s := range h.subs[collection] {
		select {
		case s.c <- Change{Collection: collection, At: at}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions on collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}
