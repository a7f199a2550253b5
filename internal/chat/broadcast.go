package chat

import (
	"sync"
	"sync/atomic"

	"github.com/omochice/social-chat/pkg/protocol"
)

// Listener receives the store contents after every mutation. ok is false
// when no snapshot is held (nothing joined yet, or just cleared).
type Listener func(snap protocol.Snapshot, ok bool)

type subscription struct {
	listener Listener
	removed  atomic.Bool
}

// Broadcast fans store mutations out to every subscribed listener.
// Delivery is synchronous, in subscription order.
type Broadcast struct {
	mu   sync.Mutex
	subs []*subscription
}

// NewBroadcast creates an empty Broadcast.
func NewBroadcast() *Broadcast {
	return &Broadcast{}
}

// Subscribe registers l and returns a function that removes it again.
// The returned function may be called more than once, including from
// inside a notification.
func (b *Broadcast) Subscribe(l Listener) (unsubscribe func()) {
	sub := &subscription{listener: l}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		if sub.removed.Swap(true) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of subscribed listeners.
func (b *Broadcast) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// notify calls every listener subscribed at the time of the call. Listeners
// removed while the notification is in progress are skipped.
func (b *Broadcast) notify(snap protocol.Snapshot, ok bool) {
	b.mu.Lock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if s.removed.Load() {
			continue
		}
		s.listener(snap, ok)
	}
}
