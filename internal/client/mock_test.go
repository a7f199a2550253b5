package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/omochice/social-chat/internal/chat"
	"github.com/omochice/social-chat/internal/client"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	inbound chan []byte
	readErr chan error
	closed  chan struct{}

	mu       sync.Mutex
	written  [][]byte
	writeErr error
	pings    int
	isClosed bool
	wrote    chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan []byte, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
		wrote:   make(chan struct{}, 64),
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-m.inbound:
		return data, nil
	case err := <-m.readErr:
		return nil, err
	case <-m.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockConn) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isClosed {
		return errors.New("connection is closed")
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	m.wrote <- struct{}{}
	return nil
}

func (m *mockConn) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isClosed {
		return errors.New("connection is closed")
	}
	m.pings++
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isClosed {
		m.isClosed = true
		close(m.closed)
	}
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return "mock"
}

func (m *mockConn) GetWritten() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

func (m *mockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isClosed
}

// mockDialer hands out conns in order and records the dial parameters.
type mockDialer struct {
	mu       sync.Mutex
	conns    []*mockConn
	err      error
	endpoint string
	header   http.Header
	dials    int
	block    chan struct{} // when set, Dial waits on it
}

func (d *mockDialer) Dial(ctx context.Context, endpoint string, header http.Header) (chat.Conn, error) {
	d.mu.Lock()
	d.endpoint = endpoint
	d.header = header
	d.dials++
	block := d.block
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no more connections")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

var errRefused = errors.New("connection refused")

// Compile-time checks
var (
	_ chat.Conn     = (*mockConn)(nil)
	_ client.Dialer = (*mockDialer)(nil)
)
