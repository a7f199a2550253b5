package client

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is matched by every *ConnectionError.
	ErrConnection = errors.New("connection error")

	// ErrNotConnected is returned by Send after the connection failed.
	ErrNotConnected = errors.New("not connected to server")

	// ErrClosed is returned by Send and Connect after Close.
	ErrClosed = errors.New("client closed")

	// ErrAlreadyConnected is returned by Connect while connecting or open.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrQueueFull is returned by Send when the outbound queue is full.
	ErrQueueFull = errors.New("outbound queue full")
)

// ConnectionError reports a failure to establish or keep the connection.
type ConnectionError struct {
	// Op is "dial", "read", "write" or "ping".
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is reports ErrConnection as a match so callers can use errors.Is.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
