package ledger

import (
	"context"
	"sync"
)

// Broker is an in-process Notifier. Handlers run synchronously on the
// publishing goroutine.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]brokerSub
}

type brokerSub struct {
	userID string
	fn     func(Change)
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]brokerSub)}
}

func (b *Broker) Publish(_ context.Context, c Change) error {
	b.mu.RLock()
	targets := make([]func(Change), 0, len(b.subs))
	for _, s := range b.subs {
		if s.userID == "" || s.userID == c.UserID {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(c)
	}
	return nil
}

func (b *Broker) Subscribe(userID string, fn func(Change)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = brokerSub{userID: userID, fn: fn}
	return &brokerSubscription{broker: b, id: id}, nil
}

// Len reports the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type brokerSubscription struct {
	broker *Broker
	id     int
	once   sync.Once
}

func (s *brokerSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
	})
}
