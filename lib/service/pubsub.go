package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer bounds how far a slow stream may fall behind before
// notifications to it are dropped.
const subscriberBuffer = 16

// Pubsub fans notifications out to the live streams of a user. It is a
// Notifier, so the service feeds it next to the configured one.
type Pubsub struct {
	mu   sync.RWMutex
	subs map[int64]map[string]chan Notification
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[int64]map[string]chan Notification)
	return ps
}

// Subscribe registers a stream for userID. The channel is closed by Unsubscribe.
func (ps *Pubsub) Subscribe(userID int64) (subID string, ch <-chan Notification) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[userID] == nil {
		ps.subs[userID] = make(map[string]chan Notification)
	}
	subID = uuid.NewString()
	sub := make(chan Notification, subscriberBuffer)
	ps.subs[userID][subID] = sub
	return subID, sub
}

func (ps *Pubsub) Unsubscribe(subID string, userID int64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	sub, ok := ps.subs[userID][subID]
	if !ok {
		return
	}
	close(sub)
	delete(ps.subs[userID], subID)
	if len(ps.subs[userID]) == 0 {
		delete(ps.subs, userID)
	}
}

// Publish never blocks: a subscriber with a full buffer misses the notification.
func (ps *Pubsub) Publish(notification Notification) (dropped int) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, sub := range ps.subs[notification.UserID] {
		select {
		case sub <- notification:
		default:
			dropped++
		}
	}
	return dropped
}

func (ps *Pubsub) Subscribers(userID int64) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[userID])
}

func (ps *Pubsub) Notify(ctx context.Context, userID int64, kind string, payload interface{}) error {
	ps.Publish(NewNotification(userID, kind, payload))
	return nil
}
