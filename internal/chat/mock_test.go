package chat_test

import (
	"errors"
	"sync"

	"github.com/omochice/social-chat/internal/chat"
)

// mockTransport is a mock implementation of chat.Transport for testing.
type mockTransport struct {
	mu        sync.Mutex
	sent      [][]byte
	sendErr   error
	handler   func([]byte)
	available bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{available: true}
}

func (m *mockTransport) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	copied := make([]byte, len(frame))
	copy(copied, frame)
	m.sent = append(m.sent, copied)
	return nil
}

func (m *mockTransport) OnMessage(handler func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *mockTransport) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// deliver feeds an inbound frame to the registered handler.
func (m *mockTransport) deliver(frame []byte) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(frame)
}

func (m *mockTransport) GetSent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

var errBroken = errors.New("broken pipe")

// Compile-time check that mockTransport implements chat.Transport
var _ chat.Transport = (*mockTransport)(nil)
