package chat

import (
	"slices"
	"sync"

	"github.com/omochice/social-chat/pkg/protocol"
)

// Store holds the snapshot of the one active conversation.
//
// A snapshot is only accepted for the identity that is currently active, so
// a late reply for a conversation the user already left can never overwrite
// the data of the conversation that replaced it. "No data yet" and "empty
// conversation" are distinct: Current reports ok=false for the former.
type Store struct {
	// dispatch serializes mutation+notification so listeners observe
	// mutations in the order they were applied.
	dispatch  sync.Mutex
	mu        sync.RWMutex
	active    *protocol.Identity
	snap      *protocol.Snapshot
	broadcast *Broadcast
}

// NewStore creates an empty Store with no active conversation.
func NewStore() *Store {
	return &Store{broadcast: NewBroadcast()}
}

// Subscribe registers a listener invoked after every Activate, Replace and
// Clear. Listeners may call Current and Active but must not mutate the store.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	return s.broadcast.Subscribe(l)
}

// Activate makes id the active conversation and drops the held snapshot.
func (s *Store) Activate(id protocol.Identity) {
	s.mutate(func() bool {
		s.active = &id
		s.snap = nil
		return true
	})
}

// Clear drops the held snapshot and the active conversation.
func (s *Store) Clear() {
	s.mutate(func() bool {
		s.active = nil
		s.snap = nil
		return true
	})
}

// Replace swaps in snap as the full history of conversation id. It returns
// false, leaving the store untouched, when id is not the active conversation.
func (s *Store) Replace(id protocol.Identity, snap protocol.Snapshot) bool {
	return s.mutate(func() bool {
		if s.active == nil || *s.active != id {
			return false
		}
		conv := id
		s.snap = &protocol.Snapshot{
			Chat:         slices.Clone(snap.Chat),
			Conversation: &conv,
		}
		if s.snap.Chat == nil {
			s.snap.Chat = []protocol.ServerMessage{}
		}
		return true
	})
}

// Current returns a copy of the held snapshot.
func (s *Store) Current() (protocol.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked()
}

// Active returns the active conversation, if any.
func (s *Store) Active() (protocol.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return protocol.Identity{}, false
	}
	return *s.active, true
}

func (s *Store) currentLocked() (protocol.Snapshot, bool) {
	if s.snap == nil {
		return protocol.Snapshot{}, false
	}
	conv := *s.snap.Conversation
	return protocol.Snapshot{
		Chat:         slices.Clone(s.snap.Chat),
		Conversation: &conv,
	}, true
}

func (s *Store) mutate(apply func() bool) bool {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	changed := apply()
	snap, ok := s.currentLocked()
	s.mu.Unlock()

	if changed {
		s.broadcast.notify(snap, ok)
	}
	return changed
}
