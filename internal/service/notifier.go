package service

import (
	"sync"
	"time"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// NotificationTTL is how long a notification stays visible.
const NotificationTTL = 2 * time.Second

type slot struct {
	n       models.Notification
	expires time.Time
}

// Notifier keeps at most one visible notification per user. A newer push
// replaces the pending one.
type Notifier struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	slots map[string]slot
}

// NewNotifier creates a Notifier whose notifications expire after ttl.
func NewNotifier(ttl time.Duration) *Notifier {
	return &Notifier{ttl: ttl, now: time.Now, slots: make(map[string]slot)}
}

// Push shows n to userID, replacing any pending notification.
func (n *Notifier) Push(userID string, note models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	for id, s := range n.slots {
		if !now.Before(s.expires) {
			delete(n.slots, id)
		}
	}
	n.slots[userID] = slot{n: note, expires: now.Add(n.ttl)}
}

// Current returns the visible notification of userID, if any.
func (n *Notifier) Current(userID string) (models.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	s, ok := n.slots[userID]
	if !ok {
		return models.Notification{}, false
	}
	if !n.now().Before(s.expires) {
		delete(n.slots, userID)
		return models.Notification{}, false
	}
	return s.n, true
}

// Dismiss hides the notification of userID.
func (n *Notifier) Dismiss(userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.slots, userID)
}
