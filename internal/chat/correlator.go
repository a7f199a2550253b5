package chat

import (
	"sync"

	"github.com/omochice/social-chat/pkg/protocol"
)

// Correlator attributes inbound snapshots to the join they answer.
//
// A snapshot that echoes its conversation identity is attributed directly.
// An untagged snapshot answers the oldest outstanding join; with no join
// outstanding it is a push for the most recently answered conversation.
// Frames on one connection arrive in order, so the first reply after each
// join belongs to that join, except for pushes the server emitted for the
// answered conversation before it saw the join. Those are recognised because
// a snapshot carries the full history: one that extends the last history
// seen for the answered conversation is still a push for it.
type Correlator struct {
	mu       sync.Mutex
	pending  []protocol.Identity
	answered *protocol.Identity
	history  []protocol.ServerMessage // last snapshot attributed to answered
}

// NewCorrelator creates a Correlator with no outstanding joins.
func NewCorrelator() *Correlator {
	return &Correlator{}
}

// Expect records that a join for id is about to be sent.
func (c *Correlator) Expect(id protocol.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, id)
}

// Cancel forgets the most recent Expect for id, used when its join frame
// could not be sent.
func (c *Correlator) Cancel(id protocol.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.pending) - 1; i >= 0; i-- {
		if c.pending[i] == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Reset forgets all outstanding joins and the last answered conversation.
// Called when a fresh connection replaces the old one.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	c.answered = nil
	c.history = nil
}

// Pending returns the number of joins still waiting for their first reply.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Attribute returns the conversation snap belongs to. ok is false when no
// join has been sent yet and the snapshot carries no identity.
func (c *Correlator) Attribute(snap protocol.Snapshot) (id protocol.Identity, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap.Conversation != nil {
		id = *snap.Conversation
		matched := len(c.pending) == 0
		for i, p := range c.pending {
			if p == id {
				c.pending = c.pending[i+1:]
				matched = true
				break
			}
		}
		if matched {
			c.answered = &id
		}
		if c.answered != nil && *c.answered == id {
			c.history = snap.Chat
		}
		return id, true
	}

	if len(c.pending) > 0 && !(c.answered != nil && extends(snap.Chat, c.history)) {
		id = c.pending[0]
		c.pending = c.pending[1:]
		c.answered = &id
		c.history = snap.Chat
		return id, true
	}

	if c.answered != nil {
		c.history = snap.Chat
		return *c.answered, true
	}
	return protocol.Identity{}, false
}

// extends reports whether chat starts with the non-empty history prev.
func extends(chat, prev []protocol.ServerMessage) bool {
	if len(prev) == 0 || len(chat) < len(prev) {
		return false
	}
	for i, m := range prev {
		if chat[i].UserID != m.UserID || chat[i].Text != m.Text || !chat[i].CreationDate.Equal(m.CreationDate.Time) {
			return false
		}
	}
	return true
}
