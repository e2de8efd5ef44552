package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestNotifier() (*Notifier, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	n := NewNotifier(NotificationTTL)
	n.now = clock.Now
	return n, clock
}

func TestNotifier_Expires(t *testing.T) {
	n, clock := newTestNotifier()
	n.Push("u1", models.Notification{Message: MsgFavoriteAdded, Kind: models.NotifySuccess})

	got, ok := n.Current("u1")
	assert.True(t, ok)
	assert.Equal(t, MsgFavoriteAdded, got.Message)

	clock.Advance(NotificationTTL - time.Millisecond)
	_, ok = n.Current("u1")
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = n.Current("u1")
	assert.False(t, ok)
}

func TestNotifier_ReplaceAndDismiss(t *testing.T) {
	n, clock := newTestNotifier()
	n.Push("u1", models.Notification{Message: MsgFavoriteAdded, Kind: models.NotifySuccess})
	clock.Advance(time.Second)
	n.Push("u1", models.Notification{Message: MsgFavoriteFailed, Kind: models.NotifyError})

	got, ok := n.Current("u1")
	assert.True(t, ok)
	assert.Equal(t, models.NotifyError, got.Kind)

	// the replacement restarts the timer
	clock.Advance(1500 * time.Millisecond)
	_, ok = n.Current("u1")
	assert.True(t, ok)

	n.Dismiss("u1")
	_, ok = n.Current("u1")
	assert.False(t, ok)

	_, ok = n.Current("u2")
	assert.False(t, ok, "notifications are per user")
}
