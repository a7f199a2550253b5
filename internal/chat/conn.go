// Package chat provides the transport-agnostic core of the chat client:
// the conversation store, subscriber broadcast and conversation switching.
package chat

import "context"

// Conn abstracts a bidirectional frame connection to the chat server.
// This interface isolates transport details from chat logic.
type Conn interface {
	// Read reads a single data frame.
	// Returns an error once the connection is closed or ctx is done.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single data frame.
	Write(ctx context.Context, data []byte) error

	// Ping sends a keep-alive control frame.
	Ping(ctx context.Context) error

	// Close closes the connection. Safe to call more than once.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
