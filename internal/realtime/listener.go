package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/craquetonbudget/bonsplans/internal/db"
)

// pingInterval bounds how long a silently dropped connection goes unnoticed.
const pingInterval = 90 * time.Second

type notificationSource interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Listener bridges PostgreSQL LISTEN/NOTIFY on db.ChangeChannel into a Hub.
type Listener struct {
	src notificationSource
	hub *Hub
	log *zap.Logger
}

// NewListener creates a Listener connected to dsn. The connection is
// established and re-established in the background by lib/pq.
func NewListener(dsn string, hub *Hub, log *zap.Logger) *Listener {
	l := &Listener{hub: hub, log: log}
	l.src = pq.NewListener(dsn, 10*time.Second, time.Minute, l.report)
	return l
}

func (l *Listener) report(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.log.Info("realtime listener connected")
	case pq.ListenerEventDisconnected:
		l.log.Warn("realtime listener disconnected", zap.Error(err))
	case pq.ListenerEventReconnected:
		l.log.Info("realtime listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.log.Error("realtime listener connection attempt failed", zap.Error(err))
	}
}

// Run listens until ctx is done. Each notification payload names the
// changed table and is published to that collection. A nil notification
// marks a reconnect, after which every collection is re-published.
func (l *Listener) Run(ctx context.Context) error {
	defer l.src.Close()

	if err := l.src.Listen(db.ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", db.ChangeChannel, err)
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	notifications := l.src.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			if n == nil {
				l.hub.PublishAll()
				continue
			}
			l.log.Debug("table changed", zap.String("table", n.Extra))
			l.hub.Publish(n.Extra)
		case <-ticker.C:
			if err := l.src.Ping(); err != nil {
				l.log.Warn("realtime listener ping failed", zap.Error(err))
			}
		}
	}
}
