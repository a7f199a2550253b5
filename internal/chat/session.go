package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/omochice/social-chat/internal/metrics"
	"github.com/omochice/social-chat/pkg/protocol"
)

var (
	// ErrEmptySubmission is returned by Submit for blank input. No frame is sent.
	ErrEmptySubmission = errors.New("message is empty")

	// ErrNoConversation is returned by Submit and Rejoin when no
	// conversation is joined.
	ErrNoConversation = errors.New("no conversation joined")
)

// Transport is the part of the connection manager a Session drives.
type Transport interface {
	// Send queues a frame for the server without waiting for it to be written.
	Send(frame []byte) error
	// OnMessage registers the sole handler for inbound frames.
	OnMessage(handler func(frame []byte))
}

// availability is implemented by transports that can report whether
// messages can currently be delivered.
type availability interface {
	Available() bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics sets the collectors updated by the session.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is the chat controller for one authenticated user. It owns the
// conversation store and is the only caller of Join, Leave and Submit;
// any number of listeners may observe the store.
type Session struct {
	transport  Transport
	store      *Store
	correlator *Correlator
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu     sync.Mutex
	joined *protocol.Identity
}

// NewSession creates a Session and registers it as the transport's inbound
// handler.
func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		transport:  t,
		store:      NewStore(),
		correlator: NewCorrelator(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}

	t.OnMessage(s.HandleFrame)
	return s
}

// Store returns the conversation store.
func (s *Session) Store() *Store {
	return s.store
}

// Subscribe registers a listener on the conversation store.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	return s.store.Subscribe(l)
}

// Current returns the snapshot of the active conversation, if one arrived.
func (s *Session) Current() (protocol.Snapshot, bool) {
	return s.store.Current()
}

// Join switches to conversation id. The store is cleared first so listeners
// show a loading state instead of the previous conversation while the reply
// is in flight; a late reply for the previous conversation is discarded.
func (s *Session) Join(id protocol.Identity) error {
	s.store.Activate(id)
	s.correlator.Expect(id)

	if err := s.transport.Send(protocol.EncodeJoin(id)); err != nil {
		s.correlator.Cancel(id)
		s.store.Clear()
		s.mu.Lock()
		s.joined = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to join %s: %w", id, err)
	}

	s.mu.Lock()
	s.joined = &id
	s.mu.Unlock()

	s.logger.Debug("joined conversation", "conversation", id.String())
	return nil
}

// Leave clears the store without joining another conversation. No frame is
// sent; the server has no explicit leave event.
func (s *Session) Leave() {
	s.store.Clear()

	s.mu.Lock()
	s.joined = nil
	s.mu.Unlock()
}

// Rejoin re-sends the join for the current conversation. Callers use it
// after reconnecting, since replies owed by the old connection never arrive.
func (s *Session) Rejoin() error {
	s.mu.Lock()
	joined := s.joined
	s.mu.Unlock()

	s.correlator.Reset()
	if joined == nil {
		return ErrNoConversation
	}
	return s.Join(*joined)
}

// Submit sends text to the active conversation. Whitespace-only text is
// rejected with ErrEmptySubmission and nothing is sent. Non-blank text is
// sent unmodified.
func (s *Session) Submit(text string) error {
	if strings.TrimSpace(text) == "" {
		s.metrics.SendRejected.WithLabelValues("empty").Inc()
		return ErrEmptySubmission
	}
	if _, ok := s.store.Active(); !ok {
		s.metrics.SendRejected.WithLabelValues("no_conversation").Inc()
		return ErrNoConversation
	}

	if err := s.transport.Send(protocol.EncodeMessage(text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Unavailable reports whether the transport can no longer deliver messages,
// i.e. the UI should show its "messages unavailable" state.
func (s *Session) Unavailable() bool {
	if a, ok := s.transport.(availability); ok {
		return !a.Available()
	}
	return false
}

// HandleFrame processes one inbound frame. Frames that fail to decode are
// logged and counted; the store keeps its previous contents.
func (s *Session) HandleFrame(data []byte) {
	snap, err := protocol.Decode(data)
	if err != nil {
		s.metrics.DecodeErrors.Inc()
		s.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
		return
	}

	id, ok := s.correlator.Attribute(snap)
	if !ok || !s.store.Replace(id, snap) {
		s.metrics.StaleSnapshots.Inc()
		s.logger.Debug("discarding stale snapshot", "conversation", id.String(), "messages", len(snap.Chat))
	}
}
